package evtracker

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWarmupAllowsTrading(t *testing.T) {
	tr := New(DefaultConfig())
	for i := 0; i < 5; i++ {
		tr.RecordTrade(TradeResult{PnLCents: -50, ClosedAt: time.Now()})
	}
	assert.Equal(t, AllowedYes, tr.IsTradingAllowed())
}

func TestBlocksOnNegativeEVAfterWarmup(t *testing.T) {
	tr := New(DefaultConfig())
	for i := 0; i < 20; i++ {
		tr.RecordTrade(TradeResult{PnLCents: -10, ClosedAt: time.Now()})
	}
	assert.Equal(t, AllowedPaused, tr.IsTradingAllowed())
}

func TestProfitFactorInfinityWhenAllWins(t *testing.T) {
	tr := New(DefaultConfig())
	for i := 0; i < 3; i++ {
		tr.RecordTrade(TradeResult{PnLCents: 14, ClosedAt: time.Now()})
	}
	m := tr.Metrics()
	assert.True(t, math.IsInf(m.ProfitFactor, 1))
}

func TestEVCentsFormula(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WarmupTrades = 100
	tr := New(cfg)
	tr.RecordTrade(TradeResult{PnLCents: 14})
	tr.RecordTrade(TradeResult{PnLCents: -9})
	m := tr.Metrics()
	// p=0.5, w=14, l=9, churn=2 => 0.5*14 - 0.5*9 - 2 = 0.5
	assert.InDelta(t, 0.5, m.EVCents, 1e-9)
}
