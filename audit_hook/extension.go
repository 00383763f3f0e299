// Package audithook bridges Harberger settlement events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter that
// bridges to their trail at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openlots/harberger/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Extension)(nil)
	_ plugin.OnAssetMinted    = (*Extension)(nil)
	_ plugin.OnPriceModified  = (*Extension)(nil)
	_ plugin.OnAssetPurchased = (*Extension)(nil)
	_ plugin.OnTaxPaid        = (*Extension)(nil)
	_ plugin.OnAssetDefaulted = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit_hook package does not import a
// concrete trail implementation; callers inject one at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Harberger settlement events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnAssetMinted implements plugin.OnAssetMinted.
func (e *Extension) OnAssetMinted(ctx context.Context, ev plugin.MintEvent) error {
	return e.record(ctx, ActionAssetMinted, SeverityInfo, OutcomeSuccess,
		ResourceAsset, ev.AssetID.String(), CategorySettlement, nil,
		"owner", ev.Owner.String(),
		"price", ev.Price.String(),
	)
}

// OnPriceModified implements plugin.OnPriceModified.
func (e *Extension) OnPriceModified(ctx context.Context, ev plugin.ModifyEvent) error {
	return e.record(ctx, ActionPriceModified, SeverityInfo, OutcomeSuccess,
		ResourceAsset, ev.AssetID.String(), CategorySettlement, nil,
		"owner", ev.Owner.String(),
		"old_price", ev.OldPrice.String(),
		"new_price", ev.NewPrice.String(),
		"tax_paid", ev.TaxPaid.String(),
	)
}

// OnAssetPurchased implements plugin.OnAssetPurchased.
func (e *Extension) OnAssetPurchased(ctx context.Context, ev plugin.PurchaseEvent) error {
	return e.record(ctx, ActionAssetPurchased, SeverityInfo, OutcomeSuccess,
		ResourceAsset, ev.AssetID.String(), CategorySettlement, nil,
		"seller", ev.Seller.String(),
		"buyer", ev.Buyer.String(),
		"price", ev.Price.String(),
		"tax_paid", ev.TaxPaid.String(),
	)
}

// OnTaxPaid implements plugin.OnTaxPaid.
func (e *Extension) OnTaxPaid(ctx context.Context, ev plugin.TaxPaidEvent) error {
	return e.record(ctx, ActionTaxPaid, SeverityInfo, OutcomeSuccess,
		ResourceAsset, ev.AssetID.String(), CategorySettlement, nil,
		"owner", ev.Owner.String(),
		"amount", ev.Amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Foreclosure hooks
// ──────────────────────────────────────────────────

// OnAssetDefaulted implements plugin.OnAssetDefaulted.
func (e *Extension) OnAssetDefaulted(ctx context.Context, ev plugin.DefaultEvent) error {
	return e.record(ctx, ActionAssetDefaulted, SeverityWarning, OutcomeSuccess,
		ResourceAsset, ev.AssetID.String(), CategoryForeclosure, nil,
		"former_holder", ev.FormerHolder.String(),
		"treasury", ev.Treasury.String(),
		"frozen_price", ev.FrozenPrice.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
