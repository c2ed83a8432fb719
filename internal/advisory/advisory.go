// Package advisory adapts co_pilot_service.go's per-session advisor loop
// into a passive, read-only commentary layer over open positions: it
// observes ManagedPositions and liquidity and emits human-readable advice
// strings (for notification/diagnostics display only). It never feeds back
// into entry/exit/hedge decisions — those remain C9's exclusive contract —
// matching spec.md §9's listener-pattern design note ("notifiers are
// downstream consumers and never feedback into core logic").
package advisory

import (
	"fmt"
	"sync"
	"time"

	"predatorbook/internal/position"
)

// Advice levels, renamed from the teacher's emoji-tagged constants to
// plain identifiers.
type Advice string

const (
	AdviceHold      Advice = "STRONG_HOLD"
	AdviceTrim      Advice = "TRIM_POSITION"
	AdviceExit      Advice = "IMMEDIATE_EXIT"
	AdviceWarning   Advice = "TREND_FLIP"
	AdviceLiquidity Advice = "SUPPORT_THIN"
	AdviceNeutral   Advice = "MONITORING"
)

// Note is one position's current commentary.
type Note struct {
	PositionID string
	Advice     Advice
	Reason     string
	PnLPercent float64
	At         time.Time
}

// LiquidityView reports the aggregate bid/ask depth around a token,
// supplied by the control loop from its last book-resolver fetch.
type LiquidityView struct {
	BidDepthUsd float64
	AskDepthUsd float64
}

// Advisor observes open positions and produces commentary; it holds no
// authority over trading decisions.
type Advisor struct {
	pos *position.Manager
	now func() time.Time

	mu    sync.Mutex
	notes map[string]Note

	liquidity func(tokenID string) (LiquidityView, bool)
}

// New creates an advisor over pos. liquidity may be nil.
func New(pos *position.Manager, liquidity func(tokenID string) (LiquidityView, bool)) *Advisor {
	return &Advisor{
		pos:       pos,
		now:       time.Now,
		notes:     make(map[string]Note),
		liquidity: liquidity,
	}
}

// Evaluate recomputes commentary for every open position. Call this once
// per control-loop cycle; it never blocks or mutates position state.
func (a *Advisor) Evaluate() []Note {
	var out []Note
	for _, p := range a.pos.OpenPositions() {
		n := a.evaluateOne(p)
		a.mu.Lock()
		a.notes[p.ID] = n
		a.mu.Unlock()
		out = append(out, n)
	}
	return out
}

func (a *Advisor) evaluateOne(p *position.ManagedPosition) Note {
	pnlPct := 0.0
	if p.EntryPriceCents != 0 {
		pnlPct = p.UnrealizedPnLCents() / p.EntryPriceCents * 100
	}

	note := Note{PositionID: p.ID, PnLPercent: pnlPct, At: a.now()}

	if a.liquidity != nil {
		if lv, ok := a.liquidity(p.TokenID); ok {
			if lv.BidDepthUsd < lv.AskDepthUsd*0.5 {
				note.Advice = AdviceLiquidity
				note.Reason = "support is thin relative to resistance"
				return note
			}
		}
	}

	switch {
	case pnlPct <= -5:
		note.Advice = AdviceExit
		note.Reason = fmt.Sprintf("drawdown %.1f%% approaching hard exit", pnlPct)
	case pnlPct >= 5:
		note.Advice = AdviceTrim
		note.Reason = "well past take-profit band, consider locking in"
	case p.State == position.StateHedged:
		note.Advice = AdviceWarning
		note.Reason = "position is hedged, adverse move in progress"
	default:
		note.Advice = AdviceNeutral
		note.Reason = "within normal range"
	}
	return note
}

// Notes returns the most recent commentary for every tracked position.
func (a *Advisor) Notes() map[string]Note {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]Note, len(a.notes))
	for k, v := range a.notes {
		out[k] = v
	}
	return out
}
