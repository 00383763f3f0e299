// Package extension provides the Forge extension adapter for Harberger.
//
// It implements the forge.Extension interface to integrate the Harberger
// engine into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.harberger" or
// "harberger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	harberger "github.com/openlots/harberger"
	"github.com/openlots/harberger/custody"
	"github.com/openlots/harberger/rail"
	"github.com/openlots/harberger/store"
	"github.com/openlots/harberger/store/memory"
	"github.com/openlots/harberger/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "harberger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Harberger-tax asset ledger engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Harberger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *harberger.Ledger
	store      store.Store
	custody    custody.Ledger
	rail       rail.Rail
	engineOpts []harberger.Option
}

// New creates a new Harberger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Harberger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *harberger.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Fall back to in-memory collaborators where none were provided
	// programmatically.
	if e.store == nil {
		e.store = memory.New()
	}
	if e.custody == nil {
		e.custody = custody.NewMemory()
	}
	if e.rail == nil {
		e.rail = rail.NewMemory()
	}

	params, err := e.buildParams()
	if err != nil {
		return err
	}

	eng, err := harberger.New(e.store, e.custody, e.rail, params, e.engineOpts...)
	if err != nil {
		return err
	}
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*harberger.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("harberger: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("harberger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildParams constructs harberger.Params from the resolved config.
func (e *Extension) buildParams() (harberger.Params, error) {
	p := harberger.DefaultParams(types.Account(e.config.Treasury))

	if e.config.MinPrice != "" {
		min, err := decimal.NewFromString(e.config.MinPrice)
		if err != nil {
			return harberger.Params{}, fmt.Errorf("harberger: invalid min_price %q: %w", e.config.MinPrice, err)
		}
		p.MinPrice = min
	}
	if e.config.MaxPrice != "" {
		max, err := decimal.NewFromString(e.config.MaxPrice)
		if err != nil {
			return harberger.Params{}, fmt.Errorf("harberger: invalid max_price %q: %w", e.config.MaxPrice, err)
		}
		p.MaxPrice = max
	}
	if e.config.TaxRateBps > 0 {
		p.TaxRateBps = e.config.TaxRateBps
	}
	if e.config.Cliff > 0 {
		p.Cliff = e.config.Cliff
	}
	if e.config.Margin > 0 {
		p.Margin = e.config.Margin
	}

	return p, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("harberger: configuration is required but not found in config files; " +
				"ensure 'extensions.harberger' or 'harberger' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("harberger: configuration loaded",
		forge.F("treasury", e.config.Treasury),
		forge.F("tax_rate_bps", e.config.TaxRateBps),
		forge.F("cliff", e.config.Cliff),
		forge.F("margin", e.config.Margin),
		forge.F("disable_migrate", e.config.DisableMigrate),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.harberger" first (namespaced pattern).
	if cm.IsSet("extensions.harberger") {
		if err := cm.Bind("extensions.harberger", &cfg); err == nil {
			e.Logger().Debug("harberger: loaded config from file",
				forge.F("key", "extensions.harberger"),
			)
			return cfg, true
		}
		e.Logger().Warn("harberger: failed to bind extensions.harberger config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "harberger" key.
	if cm.IsSet("harberger") {
		if err := cm.Bind("harberger", &cfg); err == nil {
			e.Logger().Debug("harberger: loaded config from file",
				forge.F("key", "harberger"),
			)
			return cfg, true
		}
		e.Logger().Warn("harberger: failed to bind harberger config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.MinPrice == "" {
		cfg.MinPrice = defaults.MinPrice
	}
	if cfg.MaxPrice == "" {
		cfg.MaxPrice = defaults.MaxPrice
	}
	if cfg.TaxRateBps == 0 {
		cfg.TaxRateBps = defaults.TaxRateBps
	}
	if cfg.Cliff == 0 {
		cfg.Cliff = defaults.Cliff
	}
	if cfg.Margin == 0 {
		cfg.Margin = defaults.Margin
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Treasury == "" && programmaticConfig.Treasury != "" {
		yamlConfig.Treasury = programmaticConfig.Treasury
	}
	if yamlConfig.MinPrice == "" && programmaticConfig.MinPrice != "" {
		yamlConfig.MinPrice = programmaticConfig.MinPrice
	}
	if yamlConfig.MaxPrice == "" && programmaticConfig.MaxPrice != "" {
		yamlConfig.MaxPrice = programmaticConfig.MaxPrice
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.TaxRateBps == 0 && programmaticConfig.TaxRateBps != 0 {
		yamlConfig.TaxRateBps = programmaticConfig.TaxRateBps
	}
	if yamlConfig.Cliff == 0 && programmaticConfig.Cliff != 0 {
		yamlConfig.Cliff = programmaticConfig.Cliff
	}
	if yamlConfig.Margin == 0 && programmaticConfig.Margin != 0 {
		yamlConfig.Margin = programmaticConfig.Margin
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
