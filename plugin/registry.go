package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit           []OnInit
	onShutdown       []OnShutdown
	onAssetMinted    []OnAssetMinted
	onPriceModified  []OnPriceModified
	onAssetPurchased []OnAssetPurchased
	onTaxPaid        []OnTaxPaid
	onAssetDefaulted []OnAssetDefaulted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAssetMinted); ok {
		r.onAssetMinted = append(r.onAssetMinted, v)
	}
	if v, ok := p.(OnPriceModified); ok {
		r.onPriceModified = append(r.onPriceModified, v)
	}
	if v, ok := p.(OnAssetPurchased); ok {
		r.onAssetPurchased = append(r.onAssetPurchased, v)
	}
	if v, ok := p.(OnTaxPaid); ok {
		r.onTaxPaid = append(r.onTaxPaid, v)
	}
	if v, ok := p.(OnAssetDefaulted); ok {
		r.onAssetDefaulted = append(r.onAssetDefaulted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnAssetMinted)(nil)).Elem(), "OnAssetMinted")
	checkInterface(reflect.TypeOf((*OnPriceModified)(nil)).Elem(), "OnPriceModified")
	checkInterface(reflect.TypeOf((*OnAssetPurchased)(nil)).Elem(), "OnAssetPurchased")
	checkInterface(reflect.TypeOf((*OnTaxPaid)(nil)).Elem(), "OnTaxPaid")
	checkInterface(reflect.TypeOf((*OnAssetDefaulted)(nil)).Elem(), "OnAssetDefaulted")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAssetMinted emits an asset minted event.
func (r *Registry) EmitAssetMinted(ctx context.Context, ev MintEvent) {
	r.mu.RLock()
	plugins := r.onAssetMinted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAssetMinted(ctx, ev)
		}); err != nil {
			r.logger.Warn("plugin OnAssetMinted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPriceModified emits a price modified event.
func (r *Registry) EmitPriceModified(ctx context.Context, ev ModifyEvent) {
	r.mu.RLock()
	plugins := r.onPriceModified
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPriceModified(ctx, ev)
		}); err != nil {
			r.logger.Warn("plugin OnPriceModified failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAssetPurchased emits an asset purchased event.
func (r *Registry) EmitAssetPurchased(ctx context.Context, ev PurchaseEvent) {
	r.mu.RLock()
	plugins := r.onAssetPurchased
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAssetPurchased(ctx, ev)
		}); err != nil {
			r.logger.Warn("plugin OnAssetPurchased failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTaxPaid emits a tax paid event.
func (r *Registry) EmitTaxPaid(ctx context.Context, ev TaxPaidEvent) {
	r.mu.RLock()
	plugins := r.onTaxPaid
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTaxPaid(ctx, ev)
		}); err != nil {
			r.logger.Warn("plugin OnTaxPaid failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAssetDefaulted emits an asset defaulted event.
func (r *Registry) EmitAssetDefaulted(ctx context.Context, ev DefaultEvent) {
	r.mu.RLock()
	plugins := r.onAssetDefaulted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAssetDefaulted(ctx, ev)
		}); err != nil {
			r.logger.Warn("plugin OnAssetDefaulted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the settlement pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
