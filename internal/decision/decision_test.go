package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"predatorbook/internal/clobtypes"
)

func TestEvaluateEntryHealthyPath(t *testing.T) {
	e := New(DefaultConfig())
	p := EntryParams{
		Bias:                  clobtypes.LONG,
		SpreadCents:           4,
		BidDepthUsd:           200,
		AskDepthUsd:           200,
		TradesLastX:           3,
		BookUpdatesLastX:      0,
		MidPriceCents:         50,
		ReferencePriceCents:   50,
		BestAskCents:          52,
		OpenPositionsTotal:    0,
		OpenPositionsForToken: 0,
		TotalDeployedUsd:      0,
		EffectiveBankroll:     500,
		EVAllowed:             true,
	}
	r := e.EvaluateEntry(p)
	assert.True(t, r.Allowed)
	assert.Equal(t, clobtypes.LONG, r.Side)
	assert.Equal(t, 25.0, r.SizeUsd)
	assert.Equal(t, 52.0, r.PriceCents)
}

func TestEvaluateEntryRejectsShortBias(t *testing.T) {
	e := New(DefaultConfig())
	p := EntryParams{Bias: clobtypes.SHORT, EffectiveBankroll: 500}
	r := e.EvaluateEntry(p)
	assert.False(t, r.Allowed)
	assert.Equal(t, "long-only exchange", r.Reason)
}

func TestEvaluateEntryRejectsWideSpread(t *testing.T) {
	e := New(DefaultConfig())
	p := EntryParams{
		Bias:             clobtypes.LONG,
		SpreadCents:      20,
		BidDepthUsd:      200,
		AskDepthUsd:      200,
		TradesLastX:      1,
		MidPriceCents:    50,
		ReferencePriceCents: 50,
		BestAskCents:     52,
		EffectiveBankroll: 500,
		EVAllowed:        true,
	}
	r := e.EvaluateEntry(p)
	assert.False(t, r.Allowed)
}

func TestEvaluateExitHardExitWithHedge(t *testing.T) {
	e := New(DefaultConfig())
	pos := PositionView{Side: clobtypes.LONG, EntryPriceCents: 60, EntryTime: time.Now()}
	r := e.EvaluateExit(pos, 29, clobtypes.LONG, true)
	assert.True(t, r.ShouldExit)
	assert.Equal(t, ExitHardExit, r.Reason)
	assert.Equal(t, UrgencyCritical, r.Urgency)
}

func TestEvaluateExitTakeProfit(t *testing.T) {
	e := New(DefaultConfig())
	pos := PositionView{Side: clobtypes.LONG, EntryPriceCents: 50, EntryTime: time.Now()}
	r := e.EvaluateExit(pos, 60, clobtypes.LONG, true)
	assert.True(t, r.ShouldExit)
	assert.Equal(t, ExitTakeProfit, r.Reason)
}

func TestEvaluateExitNoExit(t *testing.T) {
	e := New(DefaultConfig())
	pos := PositionView{Side: clobtypes.LONG, EntryPriceCents: 50, EntryTime: time.Now()}
	r := e.EvaluateExit(pos, 53, clobtypes.LONG, true)
	assert.False(t, r.ShouldExit)
}

func TestNeedsHedge(t *testing.T) {
	e := New(DefaultConfig())
	assert.True(t, e.NeedsHedge(60, 44, 0, 1.0))
	assert.False(t, e.NeedsHedge(60, 44, 1.0, 1.0))
}

func TestIsInPreferredZone(t *testing.T) {
	e := New(DefaultConfig())
	assert.True(t, e.IsInPreferredZone(50))
	assert.False(t, e.IsInPreferredZone(22))
}
