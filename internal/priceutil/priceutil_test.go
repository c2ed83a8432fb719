package priceutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"predatorbook/internal/clobtypes"
)

func TestRoundToTick(t *testing.T) {
	got, err := RoundToTick(52.3, 1.0, clobtypes.LONG)
	assert.NoError(t, err)
	assert.Equal(t, 53.0, got)

	got, err = RoundToTick(52.7, 1.0, clobtypes.SHORT)
	assert.NoError(t, err)
	assert.Equal(t, 52.0, got)
}

func TestRoundToTickInvalid(t *testing.T) {
	_, err := RoundToTick(math.NaN(), 1.0, clobtypes.LONG)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = RoundToTick(50, 0, clobtypes.LONG)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestClampHardBounds(t *testing.T) {
	got, err := ClampHardBounds(150)
	assert.NoError(t, err)
	assert.Equal(t, float64(HardMaxCents), got)

	got, err = ClampHardBounds(-10)
	assert.NoError(t, err)
	assert.Equal(t, float64(HardMinCents), got)

	got, err = ClampHardBounds(50)
	assert.NoError(t, err)
	assert.Equal(t, float64(50), got)
}

func TestIsDeadBook(t *testing.T) {
	assert.True(t, IsDeadBook(1, 99))
	assert.True(t, IsDeadBook(0, 100))
	assert.False(t, IsDeadBook(2, 99))
	assert.False(t, IsDeadBook(1, 98))
}
