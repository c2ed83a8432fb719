// Package reserve implements the dynamic reserve manager (spec.md §4.C6):
// the fraction of the bankroll held back from deployment adapts toward a
// target set by recent missed-opportunity pressure. Grounded on
// execution_service.go's CheckBalance / fixed-dollar-risk sizing, which the
// teacher computes against a static available balance; this generalizes it
// to a dynamically shrinking/growing reserve instead of a fixed buffer.
package reserve

import "time"

// Config holds the bounds named in spec.md §4.C6.
type Config struct {
	BaseReserveFraction   float64
	MaxReserveFraction    float64
	MinReserveFraction    float64 // 0.10 floor
	MinReserveUsd         float64
	ReserveAdaptationRate float64 // smoothing factor toward target, (0,1]
	MissedWindow          time.Duration // 30 minutes
}

// DefaultConfig provides sane defaults consistent with spec.md's stated
// bound [0.10, maxReserveFraction].
func DefaultConfig() Config {
	return Config{
		BaseReserveFraction:   0.20,
		MaxReserveFraction:    0.50,
		MinReserveFraction:    0.10,
		MinReserveUsd:         25,
		ReserveAdaptationRate: 0.1,
		MissedWindow:          30 * time.Minute,
	}
}

type event struct {
	at          time.Time
	missedEntry bool
	missedHedge bool
}

// Manager tracks the DynamicReserveState of spec.md §3.
type Manager struct {
	cfg   Config
	now   func() time.Time
	adapted float64
	events  []event
}

// New creates a reserve manager seeded at the base fraction.
func New(cfg Config) *Manager {
	return &Manager{
		cfg:     cfg,
		now:     time.Now,
		adapted: cfg.BaseReserveFraction,
	}
}

// RecordMissedEntry records a missed-opportunity event (insufficient
// reserve blocked an otherwise-allowed entry): reserves should shrink.
func (m *Manager) RecordMissedEntry() {
	m.events = append(m.events, event{at: m.now(), missedEntry: true})
	m.adapt()
}

// RecordMissedHedge records a missed-hedge event: reserves should grow.
func (m *Manager) RecordMissedHedge() {
	m.events = append(m.events, event{at: m.now(), missedHedge: true})
	m.adapt()
}

// Tick re-evaluates the adapted fraction without a new event, pruning stale
// events from the window. Call this periodically so old pressure decays
// even without new misses.
func (m *Manager) Tick() {
	m.adapt()
}

func (m *Manager) adapt() {
	cutoff := m.now().Add(-m.cfg.MissedWindow)
	filtered := m.events[:0]
	missedEntries, missedHedges := 0, 0
	for _, e := range m.events {
		if e.at.After(cutoff) {
			filtered = append(filtered, e)
			if e.missedEntry {
				missedEntries++
			}
			if e.missedHedge {
				missedHedges++
			}
		}
	}
	m.events = filtered

	target := m.cfg.BaseReserveFraction
	target -= float64(missedEntries) * 0.01
	target += float64(missedHedges) * 0.01

	if target < m.cfg.MinReserveFraction {
		target = m.cfg.MinReserveFraction
	}
	if target > m.cfg.MaxReserveFraction {
		target = m.cfg.MaxReserveFraction
	}

	m.adapted += m.cfg.ReserveAdaptationRate * (target - m.adapted)
	if m.adapted < m.cfg.MinReserveFraction {
		m.adapted = m.cfg.MinReserveFraction
	}
	if m.adapted > m.cfg.MaxReserveFraction {
		m.adapted = m.cfg.MaxReserveFraction
	}
}

// ReserveFraction returns the current adapted fraction.
func (m *Manager) ReserveFraction() float64 {
	return m.adapted
}

// GetEffectiveBankroll returns the capital available for deployment, per
// spec.md §4.C6: max(0, balance - max(reserveFraction*balance, minReserveUsd)).
func (m *Manager) GetEffectiveBankroll(balanceUsd float64) float64 {
	reserve := m.adapted * balanceUsd
	if reserve < m.cfg.MinReserveUsd {
		reserve = m.cfg.MinReserveUsd
	}
	effective := balanceUsd - reserve
	if effective < 0 {
		return 0
	}
	return effective
}

// MissedEntryCount and MissedHedgeCount and counts of recent missed events
// within the window, for the DynamicReserveState view.
func (m *Manager) MissedEntryCount() int {
	n := 0
	for _, e := range m.events {
		if e.missedEntry {
			n++
		}
	}
	return n
}

func (m *Manager) MissedHedgeCount() int {
	n := 0
	for _, e := range m.events {
		if e.missedHedge {
			n++
		}
	}
	return n
}
