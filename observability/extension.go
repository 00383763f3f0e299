// Package observability provides a metrics extension for Harberger that
// records settlement event counts and magnitudes.
package observability

import (
	"context"

	"github.com/openlots/harberger/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin           = (*MetricsExtension)(nil)
	_ plugin.OnInit           = (*MetricsExtension)(nil)
	_ plugin.OnAssetMinted    = (*MetricsExtension)(nil)
	_ plugin.OnPriceModified  = (*MetricsExtension)(nil)
	_ plugin.OnAssetPurchased = (*MetricsExtension)(nil)
	_ plugin.OnTaxPaid        = (*MetricsExtension)(nil)
	_ plugin.OnAssetDefaulted = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide settlement metrics.
// Register it as a Harberger plugin to automatically track ledger activity.
type MetricsExtension struct {
	factory MetricFactory

	// Settlement metrics
	AssetsMinted    Counter
	PricesModified  Counter
	AssetsPurchased Counter
	TaxPayments     Counter

	// Magnitude metrics
	DeclaredPrice Histogram
	TaxCollected  Histogram
	SalePrice     Histogram

	// Foreclosure metrics
	AssetsDefaulted Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Settlement metrics
		AssetsMinted:    factory.Counter("harberger.asset.minted"),
		PricesModified:  factory.Counter("harberger.price.modified"),
		AssetsPurchased: factory.Counter("harberger.asset.purchased"),
		TaxPayments:     factory.Counter("harberger.tax.paid"),

		// Magnitude metrics
		DeclaredPrice: factory.Histogram("harberger.price.declared"),
		TaxCollected:  factory.Histogram("harberger.tax.collected"),
		SalePrice:     factory.Histogram("harberger.sale.price"),

		// Foreclosure metrics
		AssetsDefaulted: factory.Counter("harberger.asset.defaulted"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnAssetMinted implements plugin.OnAssetMinted.
func (m *MetricsExtension) OnAssetMinted(_ context.Context, ev plugin.MintEvent) error {
	m.AssetsMinted.Inc()
	m.DeclaredPrice.Observe(ev.Price.InexactFloat64())
	return nil
}

// OnPriceModified implements plugin.OnPriceModified.
func (m *MetricsExtension) OnPriceModified(_ context.Context, ev plugin.ModifyEvent) error {
	m.PricesModified.Inc()
	m.DeclaredPrice.Observe(ev.NewPrice.InexactFloat64())
	m.TaxCollected.Observe(ev.TaxPaid.InexactFloat64())
	return nil
}

// OnAssetPurchased implements plugin.OnAssetPurchased.
func (m *MetricsExtension) OnAssetPurchased(_ context.Context, ev plugin.PurchaseEvent) error {
	m.AssetsPurchased.Inc()
	m.SalePrice.Observe(ev.Price.InexactFloat64())
	m.TaxCollected.Observe(ev.TaxPaid.InexactFloat64())
	return nil
}

// OnTaxPaid implements plugin.OnTaxPaid.
func (m *MetricsExtension) OnTaxPaid(_ context.Context, ev plugin.TaxPaidEvent) error {
	m.TaxPayments.Inc()
	m.TaxCollected.Observe(ev.Amount.InexactFloat64())
	return nil
}

// ──────────────────────────────────────────────────
// Foreclosure hooks
// ──────────────────────────────────────────────────

// OnAssetDefaulted implements plugin.OnAssetDefaulted.
func (m *MetricsExtension) OnAssetDefaulted(_ context.Context, _ plugin.DefaultEvent) error {
	m.AssetsDefaulted.Inc()
	return nil
}
