// Package tax implements the Harberger tax accrual formula.
//
// Tax owed is linear in declared price, tax rate, and elapsed time:
//
//	due = price * rateBps * elapsedSeconds / (SecondsPerYear * BasisPoints)
//
// The quotient is computed in a fixed-point representation scaled by 10^18
// and floored at the scaled level before de-scaling, so rounding loses at
// most one 10^-18 base unit. A naive single division would round short
// accruals on small prices down to zero.
//
// All functions here are pure: no clock reads, no stores, no globals.
package tax

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// SecondsPerYear is the accrual year of 365 days.
	SecondsPerYear int64 = 365 * 24 * 60 * 60

	// BasisPoints is the denominator of the tax rate: 10000 bps = 100%.
	BasisPoints int64 = 10_000

	// ScaleDigits is the number of decimal digits in the fixed-point scale.
	// Amounts are floored at 10^-ScaleDigits.
	ScaleDigits int32 = 18

	// maxElapsedSeconds bounds the accrual window at 250 years. Anything
	// larger indicates a corrupted settlement timestamp, not a real interval.
	maxElapsedSeconds int64 = 250 * SecondsPerYear
)

var (
	// ErrClockViolation reports a now earlier than the last settlement.
	// Elapsed time must be non-negative; regressing clocks are never clamped.
	ErrClockViolation = errors.New("tax: clock regressed before last settlement")

	// ErrIntervalTooLarge reports an elapsed interval beyond the supported
	// accrual horizon.
	ErrIntervalTooLarge = errors.New("tax: elapsed interval exceeds accrual horizon")

	// ErrInvalidRate reports a tax rate outside [0, BasisPoints].
	ErrInvalidRate = errors.New("tax: rate outside [0, 10000] basis points")
)

// divisor is the combined constant denominator of the accrual formula.
var divisor = decimal.NewFromInt(SecondsPerYear * BasisPoints)

// Due returns the tax accrued on price at rateBps over elapsed.
//
// The result is floored at 10^-18 units: strictly positive whenever the
// true value is at least one scaled unit, and never off by more than one
// scaled unit from the true value.
func Due(price decimal.Decimal, rateBps int64, elapsed time.Duration) (decimal.Decimal, error) {
	if elapsed < 0 {
		return decimal.Zero, ErrClockViolation
	}
	if rateBps < 0 || rateBps > BasisPoints {
		return decimal.Zero, ErrInvalidRate
	}

	seconds := int64(elapsed / time.Second)
	if seconds > maxElapsedSeconds {
		return decimal.Zero, ErrIntervalTooLarge
	}
	if seconds == 0 || rateBps == 0 || price.IsZero() {
		return decimal.Zero, nil
	}

	// Scale up before the constant division so the floor happens on scaled
	// units, then de-scale. Decimal arithmetic is exact up to this point.
	scaled := price.
		Mul(decimal.NewFromInt(rateBps)).
		Mul(decimal.NewFromInt(seconds)).
		Shift(ScaleDigits)

	quot, _ := scaled.QuoRem(divisor, 0)

	return quot.Shift(-ScaleDigits), nil
}

// Elapsed returns the accrual interval between a settlement timestamp and
// now, failing if now precedes the settlement.
func Elapsed(lastSettlement, now time.Time) (time.Duration, error) {
	d := now.Sub(lastSettlement)
	if d < 0 {
		return 0, ErrClockViolation
	}
	return d, nil
}
