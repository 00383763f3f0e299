package tax_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openlots/harberger/tax"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDue(t *testing.T) {
	year := 365 * 24 * time.Hour

	tests := []struct {
		name    string
		price   decimal.Decimal
		rateBps int64
		elapsed time.Duration
		want    decimal.Decimal
	}{
		{"zero elapsed", dec("100"), 1000, 0, decimal.Zero},
		{"zero rate", dec("100"), 0, year, decimal.Zero},
		{"zero price", decimal.Zero, 1000, year, decimal.Zero},
		// 10% of 1 unit over a full year is exactly 0.1.
		{"one unit one year ten percent", dec("1"), 1000, year, dec("0.1")},
		// Linear over a decade: 10 * 10% = 100% of price.
		{"decade at ten percent", dec("1"), 1000, 10 * year, dec("1")},
		{"decade at ten percent large price", dec("1000000000000"), 1000, 10 * year, dec("1000000000000")},
		// Full rate for a full year taxes the entire price.
		{"full rate full year", dec("42.5"), 10000, year, dec("42.5")},
		// One second of 1 bp on one unit: 1*1*1/(31536000*10000),
		// floored at 1e-18.
		{"one second one bp", dec("1"), 1, time.Second, dec("0.000000000003170979")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tax.Due(tt.price, tt.rateBps, tt.elapsed)
			if err != nil {
				t.Fatalf("Due returned error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Due = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDueSmallAccrualNotZero(t *testing.T) {
	// A minimal price held for one hour at a nonzero rate must accrue a
	// strictly positive amount rather than rounding to zero.
	got, err := tax.Due(dec("0.000001"), 1, time.Hour)
	if err != nil {
		t.Fatalf("Due returned error: %v", err)
	}
	if !got.IsPositive() {
		t.Errorf("Due = %s, want > 0", got)
	}
}

func TestDueMonotonicInElapsed(t *testing.T) {
	price := dec("123.45")
	prev := decimal.Zero
	for _, elapsed := range []time.Duration{
		time.Second, time.Minute, time.Hour, 24 * time.Hour,
		30 * 24 * time.Hour, 365 * 24 * time.Hour,
	} {
		got, err := tax.Due(price, 700, elapsed)
		if err != nil {
			t.Fatalf("Due(%v) returned error: %v", elapsed, err)
		}
		if got.LessThan(prev) {
			t.Errorf("Due(%v) = %s decreased below %s", elapsed, got, prev)
		}
		prev = got
	}
}

func TestDueFloorsAtScaledUnit(t *testing.T) {
	// The true value here has an infinite decimal expansion; the result must
	// be the floor at 18 digits, i.e. within one scaled unit below the true
	// value and never above it.
	got, err := tax.Due(dec("1"), 1000, time.Second)
	if err != nil {
		t.Fatalf("Due returned error: %v", err)
	}
	// 0.1 / 31536000 = 3.1709791983...e-9
	want := dec("0.000000003170979198")
	if !got.Equal(want) {
		t.Errorf("Due = %s, want floored %s", got, want)
	}
}

func TestDueErrors(t *testing.T) {
	tests := []struct {
		name    string
		rateBps int64
		elapsed time.Duration
		wantErr error
	}{
		{"negative elapsed", 1000, -time.Second, tax.ErrClockViolation},
		{"rate above cap", 10001, time.Hour, tax.ErrInvalidRate},
		{"negative rate", -1, time.Hour, tax.ErrInvalidRate},
		{"interval beyond horizon", 1000, 251 * 365 * 24 * time.Hour, tax.ErrIntervalTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tax.Due(dec("1"), tt.rateBps, tt.elapsed)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Due error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestElapsed(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)

	d, err := tax.Elapsed(base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Elapsed returned error: %v", err)
	}
	if d != time.Hour {
		t.Errorf("Elapsed = %v, want 1h", d)
	}

	if _, err := tax.Elapsed(base, base.Add(-time.Second)); !errors.Is(err, tax.ErrClockViolation) {
		t.Errorf("Elapsed error = %v, want ErrClockViolation", err)
	}
}
