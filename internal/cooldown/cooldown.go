// Package cooldown implements the per-token backoff manager (spec.md §4.C2),
// generalized from the teacher's per-symbol hysteresis/kill-switch state in
// execution_service.go (lastTradeTime, consecutiveLosses, chaosModeUntil)
// into an explicit reason-keyed strike ladder.
package cooldown

import (
	"sync"
	"time"

	"predatorbook/internal/reason"
)

// BackoffSchedule is the strike-based expiry ladder: 10m, 30m, 2h, 24h.
var BackoffSchedule = []time.Duration{
	10 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	24 * time.Hour,
}

const transientCooldown = 30 * time.Second

// Entry is a per-token CooldownEntry, per spec.md §3.
type Entry struct {
	StrikeCount  int
	NextEligible time.Time
	LastReason   reason.Reason
}

// Manager owns the token -> Entry map. All methods are safe for concurrent
// use, matching the teacher's mutex-guarded per-symbol maps.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time

	CooldownHits       int
	ResolvedLaterCount int
}

// New creates an empty cooldown manager.
func New() *Manager {
	return &Manager{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// NewWithClock is used by tests to control time.
func NewWithClock(now func() time.Time) *Manager {
	return &Manager{
		entries: make(map[string]*Entry),
		now:     now,
	}
}

// IsOnCooldown reports whether the token is currently blocked and, if so,
// increments CooldownHits.
func (m *Manager) IsOnCooldown(tok string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[tok]
	if !ok {
		return false
	}
	if m.now().Before(e.NextEligible) {
		m.CooldownHits++
		return true
	}
	return false
}

// RecordFailure applies the backoff rules of spec.md §4.C2. Reasons that are
// permanent market conditions (INVALID_LIQUIDITY, DUST_BOOK, INVALID_PRICES)
// are rejected silently: the caller must not pass them at this layer.
func (m *Manager) RecordFailure(tok string, r reason.Reason) {
	if reason.IsPermanentMarketCondition(r) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	existing, ok := m.entries[tok]

	if reason.IsTransient(r) {
		strikes := 0
		if ok && existing.StrikeCount > 1 {
			strikes = existing.StrikeCount
		}
		m.entries[tok] = &Entry{
			StrikeCount:  strikes,
			NextEligible: now.Add(transientCooldown),
			LastReason:   r,
		}
		return
	}

	if !reason.IsStrikeBased(r) {
		// Not a recognized cooldown-causing reason at this layer; ignore.
		return
	}

	strikes := 1
	if ok && (reason.IsStrikeBased(existing.LastReason) || existing.StrikeCount > 1) {
		strikes = existing.StrikeCount + 1
	}

	idx := strikes - 1
	if idx > len(BackoffSchedule)-1 {
		idx = len(BackoffSchedule) - 1
	}
	if idx < 0 {
		idx = 0
	}

	m.entries[tok] = &Entry{
		StrikeCount:  strikes,
		NextEligible: now.Add(BackoffSchedule[idx]),
		LastReason:   r,
	}
}

// RecordSuccess removes any cooldown entry for the token.
func (m *Manager) RecordSuccess(tok string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[tok]; ok {
		delete(m.entries, tok)
		m.ResolvedLaterCount++
	}
}

// Cleanup removes entries whose cooldown expired more than an hour ago.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for tok, e := range m.entries {
		if now.Sub(e.NextEligible) > time.Hour {
			delete(m.entries, tok)
		}
	}
}

// Snapshot returns a copy of the current entry for a token, for diagnostics
// and tests.
func (m *Manager) Snapshot(tok string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[tok]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}
