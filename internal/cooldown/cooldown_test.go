package cooldown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"predatorbook/internal/reason"
)

func TestBackoffSchedule(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	m := NewWithClock(func() time.Time { return clock })

	m.RecordFailure("tok1", reason.NoOrderbook)
	e, ok := m.Snapshot("tok1")
	assert.True(t, ok)
	assert.Equal(t, base.Add(10*time.Minute), e.NextEligible)

	m.RecordFailure("tok1", reason.NoOrderbook)
	e, _ = m.Snapshot("tok1")
	assert.Equal(t, base.Add(30*time.Minute), e.NextEligible)

	m.RecordFailure("tok1", reason.NoOrderbook)
	e, _ = m.Snapshot("tok1")
	assert.Equal(t, base.Add(2*time.Hour), e.NextEligible)

	m.RecordFailure("tok1", reason.NoOrderbook)
	e, _ = m.Snapshot("tok1")
	assert.Equal(t, base.Add(24*time.Hour), e.NextEligible)

	// fifth failure clamps at 24h, does not exceed it.
	m.RecordFailure("tok1", reason.NoOrderbook)
	e, _ = m.Snapshot("tok1")
	assert.Equal(t, base.Add(24*time.Hour), e.NextEligible)
}

func TestTransientReasonsDoNotAccumulateStrikes(t *testing.T) {
	m := New()
	m.RecordFailure("tok1", reason.NetworkError)
	e, ok := m.Snapshot("tok1")
	assert.True(t, ok)
	assert.Equal(t, 0, e.StrikeCount)
}

func TestPermanentConditionsNeverCooldown(t *testing.T) {
	m := New()
	m.RecordFailure("tok1", reason.DustBook)
	_, ok := m.Snapshot("tok1")
	assert.False(t, ok)
}

func TestIsOnCooldownCountsHits(t *testing.T) {
	m := New()
	m.RecordFailure("tok1", reason.NoOrderbook)
	assert.True(t, m.IsOnCooldown("tok1"))
	assert.Equal(t, 1, m.CooldownHits)
	assert.False(t, m.IsOnCooldown("tok2"))
}

func TestRecordSuccessClearsEntry(t *testing.T) {
	m := New()
	m.RecordFailure("tok1", reason.NoOrderbook)
	m.RecordSuccess("tok1")
	_, ok := m.Snapshot("tok1")
	assert.False(t, ok)
	assert.Equal(t, 1, m.ResolvedLaterCount)
}

func TestCleanupRemovesLongExpired(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	m := NewWithClock(func() time.Time { return clock })
	m.RecordFailure("tok1", reason.NetworkError) // expires base+30s
	clock = base.Add(2 * time.Hour)
	m.Cleanup()
	_, ok := m.Snapshot("tok1")
	assert.False(t, ok)
}
