package extension

import "time"

// Config holds the Harberger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.harberger" or "harberger" keys).
type Config struct {
	// Treasury is the account receiving tax and repossessed assets.
	Treasury string `json:"treasury" mapstructure:"treasury" yaml:"treasury"`

	// MinPrice and MaxPrice bound declared prices, as decimal strings
	// (defaults: "0.000001" and "1000000000000").
	MinPrice string `json:"min_price" mapstructure:"min_price" yaml:"min_price"`
	MaxPrice string `json:"max_price" mapstructure:"max_price" yaml:"max_price"`

	// TaxRateBps is the annual tax rate in basis points (default: 700).
	TaxRateBps int64 `json:"tax_rate_bps" mapstructure:"tax_rate_bps" yaml:"tax_rate_bps"`

	// Cliff is the grace period before an asset becomes foreclosure-eligible
	// (default: 720h).
	Cliff time.Duration `json:"cliff" mapstructure:"cliff" yaml:"cliff"`

	// Margin is the settlement delay enforced before price changes and
	// purchases (default: 25s).
	Margin time.Duration `json:"margin" mapstructure:"margin" yaml:"margin"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinPrice:   "0.000001",
		MaxPrice:   "1000000000000",
		TaxRateBps: 700,
		Cliff:      720 * time.Hour,
		Margin:     25 * time.Second,
	}
}
