// Package decision implements the stateless entry/exit/hedge evaluator
// (spec.md §4.C9). Every function here is CPU-only and never suspends,
// grounded on signal_filter.go's pure scoring functions (computeATR,
// checkVolumeConfirmation, calculateDynamicZone) which the teacher already
// keeps free of I/O and mutable state — this generalizes that shape from a
// futures long/short signal to the exchange's long-only entry/exit/hedge
// contract.
package decision

import (
	"time"

	"predatorbook/internal/clobtypes"
)

// Urgency classifies an exit's priority.
type Urgency string

const (
	UrgencyLow      Urgency = "LOW"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyCritical Urgency = "CRITICAL"
)

// ExitReason enumerates evaluateExit's possible reasons.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitHardExit   ExitReason = "HARD_EXIT"
	ExitTimeStop   ExitReason = "TIME_STOP"
	ExitBiasFlip   ExitReason = "BIAS_FLIP"
	ExitEVDegraded ExitReason = "EV_DEGRADED"
)

// Config holds the capital/band/liquidity thresholds named in spec.md §6.
type Config struct {
	// Capital
	MaxTradeUsd              float64
	TradeFraction            float64
	MaxDeployedFractionTotal float64

	// Bands
	EntryBandCents    float64
	TPCents           float64
	HedgeTriggerCents float64
	MaxAdverseCents   float64
	MaxHoldSeconds    float64
	EntryBufferCents  float64
	MinEntryCents     float64
	MaxEntryCents     float64
	PreferredLowCents float64
	PreferredHighCents float64

	// Liquidity gates
	MinSpreadCents        int
	MinDepthUsdAtExit     float64
	MinTradesLastX        int
	MinBookUpdatesLastX   int

	// Risk limits
	MaxOpenPositionsTotal     int
	MaxOpenPositionsPerMarket int
}

// DefaultConfig returns thresholds consistent with spec.md's seed scenario
// ("spread 4¢ < minSpreadCents=6", "size = min(500*0.05, 25) = 25").
func DefaultConfig() Config {
	return Config{
		MaxTradeUsd:              25,
		TradeFraction:            0.05,
		MaxDeployedFractionTotal: 0.80,

		EntryBandCents:     2,
		TPCents:            8,
		HedgeTriggerCents:  15,
		MaxAdverseCents:    30,
		MaxHoldSeconds:     3600,
		EntryBufferCents:   3,
		MinEntryCents:      20,
		MaxEntryCents:      80,
		PreferredLowCents:  35,
		PreferredHighCents: 65,

		MinSpreadCents:      6,
		MinDepthUsdAtExit:   150,
		MinTradesLastX:      1,
		MinBookUpdatesLastX: 1,

		MaxOpenPositionsTotal:     15,
		MaxOpenPositionsPerMarket: 1,
	}
}

// EntryParams is the input to evaluateEntry.
type EntryParams struct {
	Bias                  clobtypes.Side
	SpreadCents           int
	BidDepthUsd           float64
	AskDepthUsd           float64
	TradesLastX           int
	BookUpdatesLastX      int
	MidPriceCents         float64
	ReferencePriceCents   float64 // pass MidPriceCents itself for "new entry"
	BestAskCents          float64
	OpenPositionsTotal    int
	OpenPositionsForToken int
	TotalDeployedUsd      float64
	EffectiveBankroll     float64
	EVAllowed             bool
}

// EntryResult is evaluateEntry's result.
type EntryResult struct {
	Allowed    bool
	Side       clobtypes.Side
	PriceCents float64
	SizeUsd    float64
	Reason     string
	Checks     map[string]bool
}

// Engine evaluates EntryParams/PositionViews against Config. It holds no
// mutable state; `now` exists only so tests can inject a clock.
type Engine struct {
	cfg Config
	now func() time.Time
}

// New creates a decision engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// EvaluateEntry runs every check in spec.md §4.C9, all of which must pass.
func (e *Engine) EvaluateEntry(p EntryParams) EntryResult {
	checks := make(map[string]bool)

	if p.Bias == clobtypes.SHORT {
		checks["bias"] = false
		return EntryResult{Allowed: false, Reason: "long-only exchange", Checks: checks}
	}
	if p.Bias != clobtypes.LONG {
		checks["bias"] = false
		return EntryResult{Allowed: false, Reason: "no directional bias", Checks: checks}
	}
	checks["bias"] = true

	minDepth := p.BidDepthUsd
	if p.AskDepthUsd < minDepth {
		minDepth = p.AskDepthUsd
	}
	liquidityOk := p.SpreadCents <= e.cfg.MinSpreadCents &&
		minDepth >= e.cfg.MinDepthUsdAtExit &&
		(p.TradesLastX >= e.cfg.MinTradesLastX || p.BookUpdatesLastX >= e.cfg.MinBookUpdatesLastX)
	checks["liquidity"] = liquidityOk
	if !liquidityOk {
		return EntryResult{Allowed: false, Reason: "NO_LIQUIDITY", Checks: checks}
	}

	isNewEntry := absf(p.MidPriceCents-p.ReferencePriceCents) <= 0.01
	deviationOk := true
	if !isNewEntry {
		deviationOk = absf(p.MidPriceCents-p.ReferencePriceCents) >= e.cfg.EntryBandCents
	}
	checks["priceDeviation"] = deviationOk
	if !deviationOk {
		return EntryResult{Allowed: false, Reason: "price deviation below entry band", Checks: checks}
	}

	priceBoundsOk := p.BestAskCents >= e.cfg.MinEntryCents && p.BestAskCents <= e.cfg.MaxEntryCents
	checks["priceBounds"] = priceBoundsOk
	if !priceBoundsOk {
		return EntryResult{Allowed: false, Reason: "price outside entry bounds", Checks: checks}
	}

	riskOk := p.OpenPositionsTotal < e.cfg.MaxOpenPositionsTotal &&
		p.OpenPositionsForToken < e.cfg.MaxOpenPositionsPerMarket &&
		p.EffectiveBankroll > 0 &&
		p.TotalDeployedUsd+sizeFor(p, e.cfg) <= p.EffectiveBankroll*e.cfg.MaxDeployedFractionTotal
	checks["riskLimits"] = riskOk
	if !riskOk {
		return EntryResult{Allowed: false, Reason: "risk limits exceeded", Checks: checks}
	}

	checks["evAllowed"] = p.EVAllowed
	if !p.EVAllowed {
		return EntryResult{Allowed: false, Reason: "EV_BLOCKED", Checks: checks}
	}

	size := sizeFor(p, e.cfg)
	return EntryResult{
		Allowed:    true,
		Side:       clobtypes.LONG,
		PriceCents: p.BestAskCents,
		SizeUsd:    size,
		Checks:     checks,
	}
}

func sizeFor(p EntryParams, cfg Config) float64 {
	size := p.EffectiveBankroll * cfg.TradeFraction
	if size > cfg.MaxTradeUsd {
		size = cfg.MaxTradeUsd
	}
	return size
}

// PositionView is the minimal read-only view of a ManagedPosition that
// evaluateExit needs; C10 owns the authoritative struct.
type PositionView struct {
	Side            clobtypes.Side
	EntryPriceCents float64
	EntryTime       time.Time
	HedgeTriggerHit bool
}

// ExitResult is evaluateExit's result.
type ExitResult struct {
	ShouldExit bool
	Reason     ExitReason
	Urgency    Urgency
}

// EvaluateExit runs the ordered checks of spec.md §4.C9.
func (e *Engine) EvaluateExit(pos PositionView, midPriceCents float64, bias clobtypes.Side, evAllowed bool) ExitResult {
	pnl := midPriceCents - pos.EntryPriceCents

	if pnl >= e.cfg.TPCents {
		return ExitResult{ShouldExit: true, Reason: ExitTakeProfit, Urgency: UrgencyMedium}
	}
	if pnl <= -e.cfg.MaxAdverseCents {
		return ExitResult{ShouldExit: true, Reason: ExitHardExit, Urgency: UrgencyCritical}
	}

	heldSeconds := e.now().Sub(pos.EntryTime).Seconds()
	if heldSeconds >= e.cfg.MaxHoldSeconds {
		urgency := UrgencyLow
		if pnl >= 0 {
			urgency = UrgencyMedium
		}
		return ExitResult{ShouldExit: true, Reason: ExitTimeStop, Urgency: urgency}
	}

	if bias != clobtypes.NONE && bias != pos.Side && pnl > -e.cfg.HedgeTriggerCents {
		return ExitResult{ShouldExit: true, Reason: ExitBiasFlip, Urgency: UrgencyLow}
	}

	if !evAllowed && pnl > 0 {
		return ExitResult{ShouldExit: true, Reason: ExitEVDegraded, Urgency: UrgencyLow}
	}

	return ExitResult{ShouldExit: false}
}

// NeedsHedge reports whether a position's adverse move has crossed the
// hedge trigger and there is still hedge-ratio headroom.
func (e *Engine) NeedsHedge(entryPriceCents, midPriceCents, currentHedgeRatio, maxHedgeRatio float64) bool {
	pnl := midPriceCents - entryPriceCents
	return pnl <= -e.cfg.HedgeTriggerCents && currentHedgeRatio < maxHedgeRatio
}

// CalculateHedgeSize returns the USD size of the next hedge leg: the
// remaining headroom under maxHedgeRatio, applied to the original entry
// size.
func (e *Engine) CalculateHedgeSize(entrySizeUsd, currentHedgeRatio, maxHedgeRatio, legRatio float64) float64 {
	remaining := maxHedgeRatio - currentHedgeRatio
	if remaining <= 0 {
		return 0
	}
	ratio := legRatio
	if ratio > remaining {
		ratio = remaining
	}
	return entrySizeUsd * ratio
}

// IsInPreferredZone reports whether priceCents sits inside the configured
// preferred entry band, as opposed to merely within the hard bounds.
func (e *Engine) IsInPreferredZone(priceCents float64) bool {
	return priceCents >= e.cfg.PreferredLowCents && priceCents <= e.cfg.PreferredHighCents
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
