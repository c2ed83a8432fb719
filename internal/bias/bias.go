// Package bias implements the bias accumulator (spec.md §4.C12): a sliding
// window of watched-wallet net USD flow per token, de-duplicated across
// feeds. Grounded on signal_aggregator.go's per-symbol trade window and
// app_signal_distributor.go's de-duplication-by-signal-id, generalized from
// a multi-exchange futures signal feed to a single binary-outcome-token
// whale-flow accumulator.
package bias

import (
	"sync"
	"time"

	"predatorbook/internal/clobtypes"
)

// LeaderboardTrade is one observed whale trade, per spec.md §4.C12.
type LeaderboardTrade struct {
	TradeID   string
	Wallet    string
	TokenID   string
	Side      clobtypes.Side // LONG (buy) or SHORT (sell) at the outcome-token level
	SizeUsd   float64
	PriceCents float64
	Timestamp time.Time
}

// Config holds the bias tunables named in spec.md §6.
type Config struct {
	WindowSeconds    time.Duration
	MinNetUsd        float64
	MinTrades        int
	StaleSeconds     time.Duration
	CopyAnyWhaleBuy  bool
}

func DefaultConfig() Config {
	return Config{
		WindowSeconds:   10 * time.Minute,
		MinNetUsd:       500,
		MinTrades:       2,
		StaleSeconds:    5 * time.Minute,
		CopyAnyWhaleBuy: false,
	}
}

// ActiveBias is one token's current signal.
type ActiveBias struct {
	TokenID string
	Side    clobtypes.Side
	NetUsd  float64
	Count   int
	LastSeen time.Time
}

// Accumulator maintains per-token sliding windows of LeaderboardTrade.
type Accumulator struct {
	cfg Config
	now func() time.Time

	mu     sync.Mutex
	trades map[string][]LeaderboardTrade
	seen   map[string]bool // de-dup key: wallet|token|timestamp|size
}

// New creates a bias accumulator.
func New(cfg Config) *Accumulator {
	return &Accumulator{
		cfg:    cfg,
		now:    time.Now,
		trades: make(map[string][]LeaderboardTrade),
		seen:   make(map[string]bool),
	}
}

func dedupKey(t LeaderboardTrade) string {
	return t.Wallet + "|" + t.TokenID + "|" + t.Timestamp.String() + "|" + formatSizeUsd(t.SizeUsd)
}

func formatSizeUsd(v float64) string {
	// fixed precision is sufficient for a de-dup key; trades differing only
	// past the cent is treated as the same fill reported twice.
	cents := int64(v * 100)
	return itoa(cents)
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Ingest records a LeaderboardTrade, ignoring duplicates seen from another
// feed (on-chain vs API), matched on (wallet, token, timestamp, size).
func (a *Accumulator) Ingest(t LeaderboardTrade) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := dedupKey(t)
	if a.seen[key] {
		return
	}
	a.seen[key] = true
	a.trades[t.TokenID] = append(a.trades[t.TokenID], t)
}

func (a *Accumulator) prune(tokenID string) []LeaderboardTrade {
	cutoff := a.now().Add(-a.cfg.WindowSeconds)
	existing := a.trades[tokenID]
	filtered := existing[:0]
	for _, t := range existing {
		if t.Timestamp.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	a.trades[tokenID] = filtered
	return filtered
}

// GetActiveBiases returns the current per-token bias signals, per spec.md
// §4.C12: filters stale tokens and, in conservative mode, applies the
// minimum trade count / net USD thresholds.
func (a *Accumulator) GetActiveBiases() []ActiveBias {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []ActiveBias
	for tokenID := range a.trades {
		trades := a.prune(tokenID)
		if len(trades) == 0 {
			continue
		}
		lastSeen := trades[0].Timestamp
		var netUsd float64
		nonStaleBuy := false
		for _, t := range trades {
			if t.Timestamp.After(lastSeen) {
				lastSeen = t.Timestamp
			}
			signed := t.SizeUsd
			if t.Side == clobtypes.SHORT {
				signed = -signed
			}
			netUsd += signed
			if t.Side == clobtypes.LONG && a.now().Sub(t.Timestamp) < a.cfg.StaleSeconds {
				nonStaleBuy = true
			}
		}

		isStale := a.now().Sub(lastSeen) >= a.cfg.StaleSeconds
		if isStale {
			continue
		}

		if a.cfg.CopyAnyWhaleBuy {
			if nonStaleBuy {
				out = append(out, ActiveBias{TokenID: tokenID, Side: clobtypes.LONG, NetUsd: netUsd, Count: len(trades), LastSeen: lastSeen})
			}
			continue
		}

		if len(trades) < a.cfg.MinTrades || absf(netUsd) < a.cfg.MinNetUsd {
			continue
		}

		side := clobtypes.LONG
		if netUsd < 0 {
			side = clobtypes.SHORT
		}
		out = append(out, ActiveBias{TokenID: tokenID, Side: side, NetUsd: netUsd, Count: len(trades), LastSeen: lastSeen})
	}
	return out
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
