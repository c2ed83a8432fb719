// Package evtracker implements the static EV tracker (spec.md §4.C3): a
// fixed-size ring of closed trade results feeding rolling win/loss
// statistics and a pause-based circuit breaker. Grounded on the teacher's
// ExecutionService win/loss bookkeeping (TotalFees, WinCount, BestTrade,
// consecutiveLosses) in execution_service.go, generalized from a running
// tally into a proper ring buffer with EV/profit-factor math.
package evtracker

import (
	"math"
	"time"
)

// TradeResult is a single closed trade, per spec.md §3.
type TradeResult struct {
	PnLCents  int
	ClosedAt  time.Time
}

// Metrics is the EvMetrics aggregate of spec.md §3.
type Metrics struct {
	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64
	AvgWinCents  float64
	AvgLossCents float64
	EVCents      float64
	ProfitFactor float64
	TotalPnLUsd  float64
}

// Config holds the tunables named in spec.md §6 (EV group).
type Config struct {
	RollingWindowTrades int
	ChurnCostCents      float64
	MinEVCents          float64
	MinProfitFactor     float64
	PauseDuration       time.Duration
	WarmupTrades        int // default 10
}

// DefaultConfig matches spec.md §3's default static values (avg_win=14,
// avg_loss=9, churn=2 => breakeven ~= 47.8%).
func DefaultConfig() Config {
	return Config{
		RollingWindowTrades: 100,
		ChurnCostCents:      2,
		MinEVCents:          0,
		MinProfitFactor:     1.0,
		PauseDuration:       15 * time.Minute,
		WarmupTrades:        10,
	}
}

// Allowed is the isTradingAllowed() result.
type Allowed string

const (
	AllowedYes       Allowed = "Allowed"
	AllowedEVBlocked Allowed = "EV_BLOCKED"
	AllowedPaused    Allowed = "PAUSED"
)

// Tracker owns a ring buffer of TradeResult and the pause state.
type Tracker struct {
	cfg      Config
	ring     []TradeResult
	next     int
	filled   bool
	pausedUntil time.Time
	now      func() time.Time
}

// New creates a tracker with the given config.
func New(cfg Config) *Tracker {
	return &Tracker{
		cfg:  cfg,
		ring: make([]TradeResult, cfg.RollingWindowTrades),
		now:  time.Now,
	}
}

// RecordTrade appends a closed trade to the ring, overwriting the oldest
// entry once full, and re-evaluates the pause condition.
func (t *Tracker) RecordTrade(tr TradeResult) {
	t.ring[t.next] = tr
	t.next = (t.next + 1) % len(t.ring)
	if t.next == 0 {
		t.filled = true
	}

	m := t.Metrics()
	if m.TotalTrades >= t.cfg.WarmupTrades &&
		(m.EVCents < t.cfg.MinEVCents || m.ProfitFactor < t.cfg.MinProfitFactor) {
		t.pausedUntil = t.now().Add(t.cfg.PauseDuration)
	}
}

// trades returns the live slice of recorded trades (oldest first is not
// guaranteed; order does not matter for aggregate stats).
func (t *Tracker) trades() []TradeResult {
	if t.filled {
		return t.ring
	}
	return t.ring[:t.next]
}

// Metrics computes the rolling statistics over the current window.
func (t *Tracker) Metrics() Metrics {
	trades := t.trades()
	m := Metrics{TotalTrades: len(trades)}
	if len(trades) == 0 {
		m.ProfitFactor = math.Inf(1)
		return m
	}

	var sumWin, sumLoss, sumPnlUsd float64
	for _, tr := range trades {
		sumPnlUsd += float64(tr.PnLCents) / 100.0
		if tr.PnLCents > 0 {
			m.Wins++
			sumWin += float64(tr.PnLCents)
		} else if tr.PnLCents < 0 {
			m.Losses++
			sumLoss += float64(-tr.PnLCents)
		}
	}
	m.TotalPnLUsd = sumPnlUsd
	m.WinRate = float64(m.Wins) / float64(m.TotalTrades)
	if m.Wins > 0 {
		m.AvgWinCents = sumWin / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLossCents = sumLoss / float64(m.Losses)
	}

	p := m.WinRate
	m.EVCents = p*m.AvgWinCents - (1-p)*m.AvgLossCents - t.cfg.ChurnCostCents

	if sumLoss == 0 {
		m.ProfitFactor = math.Inf(1)
	} else {
		m.ProfitFactor = sumWin / sumLoss
	}
	return m
}

// IsTradingAllowed implements spec.md §4.C3's circuit breaker.
func (t *Tracker) IsTradingAllowed() Allowed {
	if t.now().Before(t.pausedUntil) {
		return AllowedPaused
	}
	m := t.Metrics()
	if m.TotalTrades < t.cfg.WarmupTrades {
		return AllowedYes
	}
	if m.EVCents < t.cfg.MinEVCents || m.ProfitFactor < t.cfg.MinProfitFactor {
		return AllowedEVBlocked
	}
	return AllowedYes
}
