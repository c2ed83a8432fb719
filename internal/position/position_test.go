package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPositionComputesThresholdsOnce(t *testing.T) {
	m := New(DefaultConfig())
	pos := m.OpenPosition("tok1", 50, 25)
	assert.Equal(t, StateOpen, pos.State)
	assert.Equal(t, 58.0, pos.TakeProfitPriceCents)
	assert.Equal(t, 35.0, pos.HedgeTriggerPriceCents)
	assert.Equal(t, 20.0, pos.HardExitPriceCents)
}

func TestUpdatePriceTakeProfit(t *testing.T) {
	m := New(DefaultConfig())
	pos := m.OpenPosition("tok1", 50, 25)
	action, reason := m.UpdatePrice(pos.ID, 60, 3600)
	assert.Equal(t, ActionExit, action)
	assert.Equal(t, "TAKE_PROFIT", reason)
}

func TestUpdatePriceHardExit(t *testing.T) {
	m := New(DefaultConfig())
	pos := m.OpenPosition("tok1", 60, 25)
	action, reason := m.UpdatePrice(pos.ID, 29, 3600)
	assert.Equal(t, ActionExit, action)
	assert.Equal(t, "HARD_EXIT", reason)
}

func TestUpdatePriceHedgeTrigger(t *testing.T) {
	m := New(DefaultConfig())
	pos := m.OpenPosition("tok1", 60, 25)
	action, reason := m.UpdatePrice(pos.ID, 44, 3600)
	assert.Equal(t, ActionHedge, action)
	assert.Equal(t, "HEDGE_TRIGGER", reason)
}

func TestRecordHedgeTransitionsToHedged(t *testing.T) {
	m := New(DefaultConfig())
	pos := m.OpenPosition("tok1", 60, 25)
	err := m.RecordHedge(pos.ID, HedgeLeg{TokenID: "sib1", PriceCents: 40, SizeUsd: 12.5, Ratio: 0.5})
	require.NoError(t, err)
	got, ok := m.Get(pos.ID)
	require.True(t, ok)
	assert.Equal(t, StateHedged, got.State)
	assert.Equal(t, 0.5, got.TotalHedgeRatio)
}

func TestStateMachineFullLifecycle(t *testing.T) {
	m := New(DefaultConfig())
	pos := m.OpenPosition("tok1", 60, 25)
	require.NoError(t, m.BeginExit(pos.ID, "TAKE_PROFIT"))
	got, _ := m.Get(pos.ID)
	assert.Equal(t, StateExiting, got.State)

	require.NoError(t, m.ClosePosition(pos.ID, 68, "TAKE_PROFIT"))
	got, _ = m.Get(pos.ID)
	assert.Equal(t, StateClosed, got.State)

	// A closed position cannot be re-exited or re-closed.
	assert.Error(t, m.BeginExit(pos.ID, "again"))
	assert.Error(t, m.ClosePosition(pos.ID, 70, "again"))
}

func TestListenerReceivesTransitions(t *testing.T) {
	m := New(DefaultConfig())
	var received []Transition
	m.AddListener(func(tr Transition) { received = append(received, tr) })
	pos := m.OpenPosition("tok1", 50, 25)
	require.NoError(t, m.BeginExit(pos.ID, "TIME_STOP"))
	require.NoError(t, m.ClosePosition(pos.ID, 51, "TIME_STOP"))
	assert.Len(t, received, 3) // open, exiting, closed
}

func TestPruneClosedPositions(t *testing.T) {
	m := New(DefaultConfig())
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }
	pos := m.OpenPosition("tok1", 50, 25)
	require.NoError(t, m.BeginExit(pos.ID, "TAKE_PROFIT"))
	require.NoError(t, m.ClosePosition(pos.ID, 58, "TAKE_PROFIT"))

	m.now = func() time.Time { return fixed.Add(2 * time.Hour) }
	pruned := m.PruneClosedPositions(1 * time.Hour)
	assert.Equal(t, 1, pruned)
	_, ok := m.Get(pos.ID)
	assert.False(t, ok)
}

func TestCountForToken(t *testing.T) {
	m := New(DefaultConfig())
	m.OpenPosition("tok1", 50, 25)
	m.OpenPosition("tok1", 51, 25)
	m.OpenPosition("tok2", 50, 25)
	assert.Equal(t, 2, m.CountForToken("tok1"))
	assert.Equal(t, 1, m.CountForToken("tok2"))
}
