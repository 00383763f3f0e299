package harberger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openlots/harberger/tax"
	"github.com/openlots/harberger/types"
)

// Params holds the global taxation parameters. Treasury and the price
// bounds are fixed at construction; the tax rate and cliff may be adjusted
// later through SetTaxRate and SetCliff. Changes are never retroactive: the
// accrual formula applies the current rate to the whole window since the
// last settlement.
type Params struct {
	// Treasury receives all tax and repossessed assets.
	Treasury types.Account

	// MinPrice and MaxPrice bound every declared price. MinPrice must be
	// strictly positive: a zero price would make the asset free to take and
	// its tax zero forever.
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal

	// TaxRateBps is the annual tax rate in basis points (0-10000).
	TaxRateBps int64

	// Cliff is the grace period after the last settlement before an asset
	// becomes foreclosure-eligible.
	Cliff time.Duration

	// Margin is a fixed delay enforced before price changes and purchases,
	// and added to the cliff before foreclosure. It models confirmation
	// slack on hosts whose clocks have coarse or adversarially-influenceable
	// resolution.
	Margin time.Duration
}

// DefaultParams returns parameters suitable for experimentation: a 7%
// annual rate, a 30-day cliff and a 25-second margin.
func DefaultParams(treasury types.Account) Params {
	return Params{
		Treasury:   treasury,
		MinPrice:   decimal.New(1, -6),
		MaxPrice:   decimal.New(1, 12),
		TaxRateBps: 700,
		Cliff:      30 * 24 * time.Hour,
		Margin:     25 * time.Second,
	}
}

// Validate checks the parameter set at construction time.
func (p Params) Validate() error {
	if p.Treasury.IsZero() {
		return ValidationError{Field: "Treasury", Message: "must not be empty"}
	}
	if !p.MinPrice.IsPositive() {
		return ValidationError{Field: "MinPrice", Message: "must be strictly positive"}
	}
	if p.MaxPrice.LessThan(p.MinPrice) {
		return ValidationError{Field: "MaxPrice", Message: "must be at least MinPrice"}
	}
	if p.TaxRateBps < 0 || p.TaxRateBps > tax.BasisPoints {
		return ValidationError{Field: "TaxRateBps", Message: "must be within [0, 10000]"}
	}
	if p.Cliff <= 0 {
		return ValidationError{Field: "Cliff", Message: "must be positive"}
	}
	if p.Margin < 0 {
		return ValidationError{Field: "Margin", Message: "must not be negative"}
	}
	return nil
}

// validPrice reports whether a declared price is inside the configured
// bounds. Zero is never valid.
func (p Params) validPrice(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(p.MinPrice) && price.LessThanOrEqual(p.MaxPrice)
}
