// Package priceutil implements tick rounding, hard-bound clamping, and the
// dead-book predicate (spec.md §4.C1). It is purely functional: no state, no
// I/O, mirroring the teacher's own precision helpers in
// execution_service.go (FormatPrice/FormatQty/getPrecision), generalized
// from Binance tick/step sizes to a binary-outcome market's [0,1] cent
// ladder.
package priceutil

import (
	"errors"
	"math"

	"predatorbook/internal/clobtypes"
)

// HardMinCents and HardMaxCents are the API-level absolute price bounds.
const (
	HardMinCents = 1
	HardMaxCents = 99
)

// ErrInvalidPrice is returned for non-finite or out-of-range input, per
// spec.md's "Fails with InvalidPrice on non-finite or out-of-range input."
var ErrInvalidPrice = errors.New("InvalidPrice")

// RoundToTick rounds a price (in cents, as a float for sub-cent ticks) to
// the given tick size in the direction that never crosses the quoted best
// price: BUY rounds up, SELL rounds down.
func RoundToTick(priceCents float64, tickCents float64, side clobtypes.Side) (float64, error) {
	if !isFinite(priceCents) || !isFinite(tickCents) || tickCents <= 0 {
		return 0, ErrInvalidPrice
	}
	ticks := priceCents / tickCents
	switch side {
	case clobtypes.LONG:
		return math.Ceil(ticks) * tickCents, nil
	default:
		return math.Floor(ticks) * tickCents, nil
	}
}

// ClampHardBounds clamps a price in cents to [HardMinCents, HardMaxCents].
func ClampHardBounds(priceCents float64) (float64, error) {
	if !isFinite(priceCents) {
		return 0, ErrInvalidPrice
	}
	if priceCents < HardMinCents {
		return HardMinCents, nil
	}
	if priceCents > HardMaxCents {
		return HardMaxCents, nil
	}
	return priceCents, nil
}

// IsDeadBook reports whether the book leaves no tradeable interior: best bid
// at or below 1 cent and best ask at or above 99 cents.
func IsDeadBook(bidCents, askCents int) bool {
	return bidCents <= 1 && askCents >= 99
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
