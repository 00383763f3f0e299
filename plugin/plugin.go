// Package plugin provides an extensible plugin system for the Harberger
// engine. Plugins can hook into lifecycle events to extend functionality:
// audit trails, metrics, indexers, notification fan-out.
package plugin

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openlots/harberger/id"
	"github.com/openlots/harberger/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Event payloads
// ──────────────────────────────────────────────────

// MintEvent records the creation of an asset.
type MintEvent struct {
	AssetID id.ID
	Owner   types.Account
	Price   decimal.Decimal
	At      time.Time
}

// ModifyEvent records a declared-price change. TaxPaid is the tax settled
// on the old price for the elapsed interval.
type ModifyEvent struct {
	AssetID  id.ID
	Owner    types.Account
	OldPrice decimal.Decimal
	NewPrice decimal.Decimal
	TaxPaid  decimal.Decimal
	At       time.Time
}

// PurchaseEvent records a forced sale at the declared price. Refund is the
// tendered excess left with the buyer.
type PurchaseEvent struct {
	AssetID id.ID
	Seller  types.Account
	Buyer   types.Account
	Price   decimal.Decimal
	TaxPaid decimal.Decimal
	Refund  decimal.Decimal
	At      time.Time
}

// TaxPaidEvent records a standalone tax settlement.
type TaxPaidEvent struct {
	AssetID id.ID
	Owner   types.Account
	Amount  decimal.Decimal
	At      time.Time
}

// DefaultEvent records a foreclosure: custody moved to the treasury and the
// record frozen at its last declared price.
type DefaultEvent struct {
	AssetID      id.ID
	FormerHolder types.Account
	Treasury     types.Account
	FrozenPrice  decimal.Decimal
	At           time.Time
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnAssetMinted is called after an asset is minted.
type OnAssetMinted interface {
	Plugin
	OnAssetMinted(ctx context.Context, ev MintEvent) error
}

// OnPriceModified is called after a holder changes an asset's declared price.
type OnPriceModified interface {
	Plugin
	OnPriceModified(ctx context.Context, ev ModifyEvent) error
}

// OnAssetPurchased is called after a forced sale settles.
type OnAssetPurchased interface {
	Plugin
	OnAssetPurchased(ctx context.Context, ev PurchaseEvent) error
}

// OnTaxPaid is called after a standalone tax payment settles.
type OnTaxPaid interface {
	Plugin
	OnTaxPaid(ctx context.Context, ev TaxPaidEvent) error
}

// OnAssetDefaulted is called after the foreclosure evaluator repossesses an
// asset.
type OnAssetDefaulted interface {
	Plugin
	OnAssetDefaulted(ctx context.Context, ev DefaultEvent) error
}
