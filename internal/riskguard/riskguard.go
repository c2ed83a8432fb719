// Package riskguard implements the portfolio-wide exposure/hedge/drawdown
// gate (spec.md §4.C7). Grounded on predator_engine.go's GlobalExposureGuard
// (max-concurrent trades, total-notional cap, per-symbol cooldown) and its
// circuit-breaker ("3 consecutive losses -> 2h SafetyModeUntil lockdown,
// StopAll()"), generalized from a single-asset cap to the spec's portfolio
// health classification with issues/recommendations.
package riskguard

import (
	"fmt"
	"sync"
	"time"
)

// Health is the portfolio health classification.
type Health string

const (
	HealthHealthy  Health = "HEALTHY"
	HealthCaution  Health = "CAUTION"
	HealthCritical Health = "CRITICAL"
)

// Config holds the limits named in spec.md §4.C7.
type Config struct {
	MinWalletBalanceUsd        float64
	MaxTotalDeploymentFraction float64
	MaxHedgedPositions         int
	MaxTotalHedgeUsd           float64
	MaxGlobalHedgeExposure     float64 // fraction
	HedgeCooldown              time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinWalletBalanceUsd:        50,
		MaxTotalDeploymentFraction: 0.80,
		MaxHedgedPositions:         10,
		MaxTotalHedgeUsd:           1000,
		MaxGlobalHedgeExposure:     0.35,
		HedgeCooldown:              30 * time.Second,
	}
}

// PortfolioState is the snapshot the guard evaluates against.
type PortfolioState struct {
	WalletBalanceUsd   float64
	TotalDeployedUsd   float64
	EffectiveBankroll  float64
	HedgedPositions    int
	TotalHedgeUsd      float64
}

// Report is the PortfolioHealth result.
type Report struct {
	Health          Health
	Issues          []string
	Recommendations []string
}

// EntryGateResult is the gate decision for a proposed entry/hedge size.
type EntryGateResult struct {
	Allowed      bool
	Reason       string
	AdjustedSize float64 // shrunk size if the original overshoots the deployment cap
}

// Guard evaluates PortfolioState against Config.
type Guard struct {
	cfg Config
	now func() time.Time

	mu            sync.Mutex
	hedgeCooldown map[string]time.Time
}

// New creates a risk guard.
func New(cfg Config) *Guard {
	return &Guard{
		cfg:           cfg,
		now:           time.Now,
		hedgeCooldown: make(map[string]time.Time),
	}
}

// EvaluatePortfolio classifies the current portfolio state.
func (g *Guard) EvaluatePortfolio(s PortfolioState) Report {
	var issues, recs []string
	health := HealthHealthy

	if s.WalletBalanceUsd < g.cfg.MinWalletBalanceUsd {
		issues = append(issues, "wallet balance below minimum")
		recs = append(recs, "halt entries until balance recovers")
		health = HealthCritical
	} else if s.WalletBalanceUsd < 1.5*g.cfg.MinWalletBalanceUsd {
		issues = append(issues, "wallet balance close to minimum")
		recs = append(recs, "reduce position sizing")
		if health == HealthHealthy {
			health = HealthCaution
		}
	}

	if s.EffectiveBankroll > 0 {
		deployedFraction := s.TotalDeployedUsd / s.EffectiveBankroll
		if deployedFraction > g.cfg.MaxTotalDeploymentFraction {
			issues = append(issues, "total deployment exceeds cap")
			recs = append(recs, "shrink new entries to fit remaining headroom")
			if health != HealthCritical {
				health = HealthCaution
			}
		}
	}

	if s.HedgedPositions > g.cfg.MaxHedgedPositions {
		issues = append(issues, "hedged position count exceeds cap")
		health = HealthCritical
	}

	if s.TotalHedgeUsd > g.cfg.MaxTotalHedgeUsd {
		issues = append(issues, "total hedge notional exceeds cap")
		health = HealthCritical
	}

	if s.EffectiveBankroll > 0 {
		exposure := s.TotalHedgeUsd / s.EffectiveBankroll
		if exposure > g.cfg.MaxGlobalHedgeExposure {
			issues = append(issues, "global hedge exposure exceeds cap")
			if health != HealthCritical {
				health = HealthCaution
			}
		}
	}

	return Report{Health: health, Issues: issues, Recommendations: recs}
}

// IsProtectiveModeActive reports whether new entries should be blocked,
// per spec.md: CRITICAL health, or balance below 1.5x the minimum.
func (g *Guard) IsProtectiveModeActive(s PortfolioState) bool {
	report := g.EvaluatePortfolio(s)
	return report.Health == HealthCritical || s.WalletBalanceUsd < 1.5*g.cfg.MinWalletBalanceUsd
}

// GateEntry evaluates a proposed entry/hedge size against the deployment
// cap, shrinking it to fit rather than outright rejecting when possible.
func (g *Guard) GateEntry(s PortfolioState, proposedSizeUsd float64) EntryGateResult {
	projectedBalance := s.WalletBalanceUsd - proposedSizeUsd
	if projectedBalance < g.cfg.MinWalletBalanceUsd {
		return EntryGateResult{
			Allowed: false,
			Reason:  "Entry would reduce wallet below minimum",
		}
	}

	if s.EffectiveBankroll <= 0 {
		return EntryGateResult{Allowed: false, Reason: "no effective bankroll"}
	}

	maxDeployed := s.EffectiveBankroll * g.cfg.MaxTotalDeploymentFraction
	projectedDeployed := s.TotalDeployedUsd + proposedSizeUsd
	if projectedDeployed <= maxDeployed {
		return EntryGateResult{Allowed: true, AdjustedSize: proposedSizeUsd}
	}

	remaining := maxDeployed - s.TotalDeployedUsd
	if remaining <= 0 {
		return EntryGateResult{Allowed: false, Reason: "deployment cap already reached"}
	}
	return EntryGateResult{Allowed: true, AdjustedSize: remaining, Reason: "shrunk to fit deployment cap"}
}

// IsHedgeOnCooldown reports whether a position's ~30s post-hedge cooldown
// is still active.
func (g *Guard) IsHedgeOnCooldown(positionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.hedgeCooldown[positionID]
	return ok && g.now().Before(until)
}

// MarkHedged starts the per-position hedge cooldown.
func (g *Guard) MarkHedged(positionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hedgeCooldown[positionID] = g.now().Add(g.cfg.HedgeCooldown)
}

// String implements a compact description for logging.
func (r Report) String() string {
	return fmt.Sprintf("%s issues=%v recs=%v", r.Health, r.Issues, r.Recommendations)
}
