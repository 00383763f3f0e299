package extension

import (
	harberger "github.com/openlots/harberger"
	"github.com/openlots/harberger/custody"
	"github.com/openlots/harberger/plugin"
	"github.com/openlots/harberger/rail"
	"github.com/openlots/harberger/store"
)

// Option configures the Harberger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithCustody sets the ownership ledger for the engine.
func WithCustody(c custody.Ledger) Option {
	return func(e *Extension) {
		e.custody = c
	}
}

// WithRail sets the value-transfer rail for the engine.
func WithRail(r rail.Rail) Option {
	return func(e *Extension) {
		e.rail = r
	}
}

// WithEngineOption passes a harberger.Option through to the underlying engine.
func WithEngineOption(opt harberger.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, harberger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithTreasury sets the treasury account.
func WithTreasury(account string) Option {
	return func(e *Extension) { e.config.Treasury = account }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
