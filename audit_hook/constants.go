package audithook

// Action constants for audit events.
const (
	// Settlement actions
	ActionAssetMinted    = "asset.minted"
	ActionPriceModified  = "price.modified"
	ActionAssetPurchased = "asset.purchased"
	ActionTaxPaid        = "tax.paid"

	// Foreclosure actions
	ActionAssetDefaulted = "asset.defaulted"
)

// Resource constants for audit events.
const (
	ResourceAsset = "asset"
)

// Category constants for audit events.
const (
	CategorySettlement  = "settlement"
	CategoryForeclosure = "foreclosure"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
