package bias

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"predatorbook/internal/clobtypes"
)

func TestGetActiveBiasesConservativeMode(t *testing.T) {
	a := New(DefaultConfig())
	now := time.Now()
	a.now = func() time.Time { return now }

	a.Ingest(LeaderboardTrade{TradeID: "1", Wallet: "w1", TokenID: "tok1", Side: clobtypes.LONG, SizeUsd: 300, Timestamp: now.Add(-time.Minute)})
	a.Ingest(LeaderboardTrade{TradeID: "2", Wallet: "w2", TokenID: "tok1", Side: clobtypes.LONG, SizeUsd: 300, Timestamp: now.Add(-30 * time.Second)})

	biases := a.GetActiveBiases()
	assert.Len(t, biases, 1)
	assert.Equal(t, clobtypes.LONG, biases[0].Side)
	assert.Equal(t, 600.0, biases[0].NetUsd)
}

func TestGetActiveBiasesRejectsBelowMinTrades(t *testing.T) {
	a := New(DefaultConfig())
	now := time.Now()
	a.now = func() time.Time { return now }
	a.Ingest(LeaderboardTrade{TradeID: "1", Wallet: "w1", TokenID: "tok1", Side: clobtypes.LONG, SizeUsd: 1000, Timestamp: now})
	assert.Empty(t, a.GetActiveBiases())
}

func TestGetActiveBiasesRejectsStale(t *testing.T) {
	a := New(DefaultConfig())
	now := time.Now()
	a.now = func() time.Time { return now }
	a.Ingest(LeaderboardTrade{TradeID: "1", Wallet: "w1", TokenID: "tok1", Side: clobtypes.LONG, SizeUsd: 1000, Timestamp: now.Add(-time.Hour)})
	a.Ingest(LeaderboardTrade{TradeID: "2", Wallet: "w2", TokenID: "tok1", Side: clobtypes.LONG, SizeUsd: 1000, Timestamp: now.Add(-time.Hour)})
	assert.Empty(t, a.GetActiveBiases())
}

func TestGetActiveBiasesCopyAnyWhaleBuy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CopyAnyWhaleBuy = true
	a := New(cfg)
	now := time.Now()
	a.now = func() time.Time { return now }
	a.Ingest(LeaderboardTrade{TradeID: "1", Wallet: "w1", TokenID: "tok1", Side: clobtypes.LONG, SizeUsd: 10, Timestamp: now})
	biases := a.GetActiveBiases()
	assert.Len(t, biases, 1)
	assert.Equal(t, clobtypes.LONG, biases[0].Side)
}

func TestIngestDeduplicatesAcrossFeeds(t *testing.T) {
	a := New(DefaultConfig())
	now := time.Now()
	a.now = func() time.Time { return now }
	trade := LeaderboardTrade{TradeID: "onchain-1", Wallet: "w1", TokenID: "tok1", Side: clobtypes.LONG, SizeUsd: 1000, Timestamp: now}
	a.Ingest(trade)
	dup := trade
	dup.TradeID = "api-1" // same wallet/token/timestamp/size, different feed id
	a.Ingest(dup)
	a.mu.Lock()
	count := len(a.trades["tok1"])
	a.mu.Unlock()
	assert.Equal(t, 1, count)
}
