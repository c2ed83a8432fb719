package riskguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateEntryBlocksBelowMinimum(t *testing.T) {
	g := New(DefaultConfig())
	r := g.GateEntry(PortfolioState{WalletBalanceUsd: 100, EffectiveBankroll: 100}, 55)
	assert.False(t, r.Allowed)
	assert.Equal(t, "Entry would reduce wallet below minimum", r.Reason)
}

func TestGateEntryShrinksToFitDeploymentCap(t *testing.T) {
	g := New(DefaultConfig())
	s := PortfolioState{WalletBalanceUsd: 1000, EffectiveBankroll: 1000, TotalDeployedUsd: 790}
	r := g.GateEntry(s, 50)
	assert.True(t, r.Allowed)
	assert.InDelta(t, 10, r.AdjustedSize, 1e-9) // cap at 800, 790 already deployed
}

func TestProtectiveModeOnCriticalHealth(t *testing.T) {
	g := New(DefaultConfig())
	s := PortfolioState{WalletBalanceUsd: 10, EffectiveBankroll: 100}
	assert.True(t, g.IsProtectiveModeActive(s))
}

func TestHedgeCooldown(t *testing.T) {
	g := New(DefaultConfig())
	assert.False(t, g.IsHedgeOnCooldown("pos1"))
	g.MarkHedged("pos1")
	assert.True(t, g.IsHedgeOnCooldown("pos1"))
}

func TestPortfolioHealthy(t *testing.T) {
	g := New(DefaultConfig())
	s := PortfolioState{WalletBalanceUsd: 1000, EffectiveBankroll: 1000, TotalDeployedUsd: 100}
	r := g.EvaluatePortfolio(s)
	assert.Equal(t, HealthHealthy, r.Health)
}
