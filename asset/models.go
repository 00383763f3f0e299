// Package asset defines the Harberger asset record.
//
// A record is created at mint and never deleted: a defaulted record is a
// terminal, queryable tombstone with its price frozen at the last
// pre-default value.
package asset

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openlots/harberger/id"
	"github.com/openlots/harberger/types"
)

// Status describes the lifecycle state of an asset.
type Status string

const (
	// StatusActive means the asset is held, taxable and purchasable.
	StatusActive Status = "active"

	// StatusDefaulted means the asset was repossessed for unpaid tax.
	// Terminal: no settlement operation succeeds on a defaulted asset.
	StatusDefaulted Status = "defaulted"
)

// Asset is the per-asset ledger record.
type Asset struct {
	types.Entity
	ID id.ID `json:"id"`

	// Price is the self-declared value. It determines both the tax
	// obligation and the forced-sale price. Never zero for an active asset.
	Price decimal.Decimal `json:"price"`

	// LastSettlement is the instant tax accrual was last reset (mint,
	// price change, purchase, or tax payment). It only increases.
	LastSettlement time.Time `json:"last_settlement"`

	// Defaulted transitions false to true exactly once, set only by the
	// foreclosure evaluator.
	Defaulted bool `json:"defaulted"`
}

// Status returns the lifecycle status of the asset.
func (a *Asset) Status() Status {
	if a.Defaulted {
		return StatusDefaulted
	}
	return StatusActive
}

// Clone returns a deep copy. Stores hand out clones so callers can stage
// changes without mutating shared state before commit.
func (a *Asset) Clone() *Asset {
	cp := *a
	return &cp
}

// ListOpts filters and pages asset listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
