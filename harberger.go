package harberger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openlots/harberger/asset"
	"github.com/openlots/harberger/custody"
	"github.com/openlots/harberger/guard"
	"github.com/openlots/harberger/id"
	"github.com/openlots/harberger/plugin"
	"github.com/openlots/harberger/rail"
	"github.com/openlots/harberger/store"
	"github.com/openlots/harberger/tax"
	"github.com/openlots/harberger/types"
)

// Outcome is the result of a foreclosure evaluation.
type Outcome int

const (
	// NotDue means the asset is inside its cliff+margin window; nothing
	// was mutated.
	NotDue Outcome = iota

	// Foreclosed means the asset is defaulted, either by this call or a
	// previous one.
	Foreclosed
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	if o == Foreclosed {
		return "foreclosed"
	}
	return "not_due"
}

// Ledger is the Harberger taxation engine. Every settlement operation runs
// as one serialized unit per asset: a per-asset guard is held for the
// operation's duration so a rail callback cannot re-enter and observe
// partially-updated state.
type Ledger struct {
	store   store.Store
	custody custody.Ledger
	rail    rail.Rail
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   Clock
	locks   *guard.Keyed

	mu     sync.RWMutex
	params Params
}

// New creates a new Ledger instance over the given collaborators.
func New(s store.Store, c custody.Ledger, r rail.Rail, p Params, opts ...Option) (*Ledger, error) {
	if s == nil {
		return nil, ValidationError{Field: "store", Message: "must not be nil"}
	}
	if c == nil {
		return nil, ValidationError{Field: "custody", Message: "must not be nil"}
	}
	if r == nil {
		return nil, ValidationError{Field: "rail", Message: "must not be nil"}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	l := &Ledger{
		store:   s,
		custody: c,
		rail:    r,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		clock:   systemClock{},
		locks:   guard.New(),
		params:  p,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithClock sets the time source. Tests use ClockFunc to drive the
// settlement timeline.
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	p := l.snapshotParams()
	l.logger.Info("harberger ledger started",
		"treasury", p.Treasury.String(),
		"tax_rate_bps", p.TaxRateBps,
		"cliff", p.Cliff,
		"margin", p.Margin,
	)

	return nil
}

// Stop shuts down the Ledger.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Parameter management
// ──────────────────────────────────────────────────

// Params returns a snapshot of the current global parameters.
func (l *Ledger) Params() Params {
	return l.snapshotParams()
}

// SetTaxRate changes the annual tax rate. The change is not retroactive:
// the next settlement of each asset applies the new rate to its whole
// elapsed window.
func (l *Ledger) SetTaxRate(bps int64) error {
	if bps < 0 || bps > tax.BasisPoints {
		return ValidationError{Field: "TaxRateBps", Message: "must be within [0, 10000]"}
	}

	l.mu.Lock()
	l.params.TaxRateBps = bps
	l.mu.Unlock()

	l.logger.Info("tax rate changed", "tax_rate_bps", bps)
	return nil
}

// SetCliff changes the foreclosure grace period.
func (l *Ledger) SetCliff(d time.Duration) error {
	if d <= 0 {
		return ValidationError{Field: "Cliff", Message: "must be positive"}
	}

	l.mu.Lock()
	l.params.Cliff = d
	l.mu.Unlock()

	l.logger.Info("cliff changed", "cliff", d)
	return nil
}

func (l *Ledger) snapshotParams() Params {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.params
}

// acquire takes the per-asset settlement lock. It fails, without blocking,
// when the asset is already mid-settlement: that is a re-entrant call.
func (l *Ledger) acquire(assetID id.ID) (func(), error) {
	key := assetID.String()
	if !l.locks.Acquire(key) {
		return nil, fmt.Errorf("%w: %s", ErrReentrantCall, key)
	}
	return func() { l.locks.Release(key) }, nil
}

// ──────────────────────────────────────────────────
// Settlement operations
// ──────────────────────────────────────────────────

// Mint registers a new asset for to at the given declared price. A nil
// assetID generates a fresh identifier; a caller-supplied one must be
// unused. Tax accrual starts now.
func (l *Ledger) Mint(ctx context.Context, to types.Account, assetID id.ID, price decimal.Decimal) (id.ID, error) {
	p := l.snapshotParams()

	if to.IsZero() {
		return id.Nil, ErrInvalidRecipient
	}
	if !p.validPrice(price) {
		return id.Nil, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	if assetID.IsNil() {
		assetID = id.NewAssetID()
	}

	release, err := l.acquire(assetID)
	if err != nil {
		return id.Nil, err
	}
	defer release()

	if _, err := l.store.GetAsset(ctx, assetID); err == nil {
		return id.Nil, fmt.Errorf("%w: %s", ErrDuplicateAsset, assetID)
	} else if !errors.Is(err, ErrAssetNotFound) {
		return id.Nil, fmt.Errorf("harberger: mint lookup: %w", err)
	}

	if err := l.custody.RegisterNew(ctx, assetID, to); err != nil {
		if !errors.Is(err, custody.ErrAlreadyRegistered) {
			return id.Nil, fmt.Errorf("harberger: register custody: %w", err)
		}
		// No record exists for this id (checked above), so the registration
		// can only be left over from a mint whose record write failed. Finish
		// that mint when the recipient matches; anything else is a duplicate.
		holder, herr := l.custody.CurrentHolder(ctx, assetID)
		if herr != nil {
			return id.Nil, fmt.Errorf("harberger: current holder: %w", herr)
		}
		if holder != to {
			return id.Nil, fmt.Errorf("%w: %s", ErrDuplicateAsset, assetID)
		}
		l.logger.Warn("resuming mint over stranded custody registration",
			"asset", assetID.String(), "owner", to.String())
	}

	now := l.clock.Now()
	rec := &asset.Asset{
		Entity:         types.NewEntity(),
		ID:             assetID,
		Price:          price,
		LastSettlement: now,
	}
	if err := l.store.CreateAsset(ctx, rec); err != nil {
		l.logger.Error("custody registered but record write failed",
			"asset", assetID.String(), "owner", to.String(), "error", err)
		return id.Nil, fmt.Errorf("harberger: persist mint: %w", err)
	}

	l.plugins.EmitAssetMinted(ctx, plugin.MintEvent{
		AssetID: assetID,
		Owner:   to,
		Price:   price,
		At:      now,
	})
	l.logger.Debug("asset minted", "asset", assetID.String(), "owner", to.String(), "price", price)

	return assetID, nil
}

// Modify changes the declared price of an asset. Only the current holder
// may call it, the margin must have elapsed, and the accrued tax, charged
// on the old price for the elapsed interval, must be covered by tendered.
// Tendered value above the tax due is consumed, not refunded.
func (l *Ledger) Modify(ctx context.Context, assetID id.ID, newPrice, tendered decimal.Decimal) error {
	p := l.snapshotParams()

	caller := CallerFrom(ctx)
	if caller.IsZero() {
		return ErrNoCaller
	}

	release, err := l.acquire(assetID)
	if err != nil {
		return err
	}
	defer release()

	rec, err := l.store.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	if rec.Defaulted {
		return fmt.Errorf("%w: %s", ErrAssetDefaulted, assetID)
	}

	holder, err := l.custody.CurrentHolder(ctx, assetID)
	if err != nil {
		return fmt.Errorf("harberger: current holder: %w", err)
	}
	if holder != caller {
		return ErrUnauthorized
	}

	if !p.validPrice(newPrice) {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, newPrice)
	}

	now := l.clock.Now()
	elapsed, err := tax.Elapsed(rec.LastSettlement, now)
	if err != nil {
		return err
	}
	if elapsed < p.Margin {
		return fmt.Errorf("%w: %s until eligible", ErrMarginNotMet, p.Margin-elapsed)
	}

	due, err := tax.Due(rec.Price, p.TaxRateBps, elapsed)
	if err != nil {
		return err
	}
	if tendered.LessThan(due) {
		return fmt.Errorf("%w: owed %s, tendered %s", ErrInsufficientPayment, due, tendered)
	}

	// The whole tendered amount goes to the treasury, not just the tax due.
	// Overpaying a price change is a donation.
	tx, err := rail.Begin(ctx, l.rail)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if tendered.IsPositive() {
		if err := tx.Send(caller, p.Treasury, tendered); err != nil {
			_ = tx.Abort(ctx) //nolint:errcheck // already failing
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	oldPrice := rec.Price
	rec.Price = newPrice
	rec.LastSettlement = now
	rec.Touch()
	if err := l.store.UpdateAsset(ctx, rec); err != nil {
		l.logger.Error("price change settled but state write failed",
			"asset", assetID.String(), "error", err)
		return fmt.Errorf("harberger: persist modify: %w", err)
	}

	l.plugins.EmitPriceModified(ctx, plugin.ModifyEvent{
		AssetID:  assetID,
		Owner:    caller,
		OldPrice: oldPrice,
		NewPrice: newPrice,
		TaxPaid:  due,
		At:       now,
	})
	l.logger.Debug("price modified",
		"asset", assetID.String(), "old_price", oldPrice, "new_price", newPrice, "tax", due)

	return nil
}

// Purchase forces a sale of the asset at its declared price. Any caller may
// buy; tendered must cover price plus accrued tax. Custody moves first,
// then the price goes to the seller and the tax to the treasury; tendered
// value beyond price+tax never leaves the buyer. The declared price is
// unchanged by the sale; the new holder adjusts it with a later Modify.
func (l *Ledger) Purchase(ctx context.Context, assetID id.ID, tendered decimal.Decimal) error {
	p := l.snapshotParams()

	buyer := CallerFrom(ctx)
	if buyer.IsZero() {
		return ErrNoCaller
	}

	release, err := l.acquire(assetID)
	if err != nil {
		return err
	}
	defer release()

	rec, err := l.store.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	if rec.Defaulted {
		return fmt.Errorf("%w: %s", ErrAssetDefaulted, assetID)
	}

	now := l.clock.Now()
	elapsed, err := tax.Elapsed(rec.LastSettlement, now)
	if err != nil {
		return err
	}
	if elapsed < p.Margin {
		return fmt.Errorf("%w: %s until eligible", ErrMarginNotMet, p.Margin-elapsed)
	}

	due, err := tax.Due(rec.Price, p.TaxRateBps, elapsed)
	if err != nil {
		return err
	}
	total := rec.Price.Add(due)
	if tendered.LessThan(total) {
		return fmt.Errorf("%w: owed %s, tendered %s", ErrInsufficientPayment, total, tendered)
	}

	seller, err := l.custody.CurrentHolder(ctx, assetID)
	if err != nil {
		return fmt.Errorf("harberger: current holder: %w", err)
	}

	// Custody first, money after: a failed or re-entrant transfer unwinds
	// through custody rollback and never leaves the asset half-owned.
	if err := l.custody.TransferCustody(ctx, assetID, seller, buyer); err != nil {
		return fmt.Errorf("harberger: transfer custody: %w", err)
	}

	tx, err := rail.Begin(ctx, l.rail)
	if err != nil {
		l.revertCustody(ctx, assetID, buyer, seller)
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if err := tx.Send(buyer, seller, rec.Price); err != nil {
		_ = tx.Abort(ctx) //nolint:errcheck // already failing
		l.revertCustody(ctx, assetID, buyer, seller)
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if due.IsPositive() {
		if err := tx.Send(buyer, p.Treasury, due); err != nil {
			_ = tx.Abort(ctx) //nolint:errcheck // already failing
			l.revertCustody(ctx, assetID, buyer, seller)
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		l.revertCustody(ctx, assetID, buyer, seller)
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	rec.LastSettlement = now
	rec.Touch()
	if err := l.store.UpdateAsset(ctx, rec); err != nil {
		l.logger.Error("purchase settled but state write failed",
			"asset", assetID.String(), "error", err)
		return fmt.Errorf("harberger: persist purchase: %w", err)
	}

	refund := tendered.Sub(total)
	l.plugins.EmitAssetPurchased(ctx, plugin.PurchaseEvent{
		AssetID: assetID,
		Seller:  seller,
		Buyer:   buyer,
		Price:   rec.Price,
		TaxPaid: due,
		Refund:  refund,
		At:      now,
	})
	l.logger.Debug("asset purchased",
		"asset", assetID.String(), "seller", seller.String(), "buyer", buyer.String(),
		"price", rec.Price, "tax", due)

	return nil
}

// PayTax settles the accrued tax without changing price or holder. Only
// the current holder may call it; there is no margin guard because paying
// tax early is never harmful. Exactly the amount due is taken from the
// caller; tendered is the authorized ceiling.
func (l *Ledger) PayTax(ctx context.Context, assetID id.ID, tendered decimal.Decimal) error {
	p := l.snapshotParams()

	caller := CallerFrom(ctx)
	if caller.IsZero() {
		return ErrNoCaller
	}

	release, err := l.acquire(assetID)
	if err != nil {
		return err
	}
	defer release()

	rec, err := l.store.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	if rec.Defaulted {
		return fmt.Errorf("%w: %s", ErrAssetDefaulted, assetID)
	}

	holder, err := l.custody.CurrentHolder(ctx, assetID)
	if err != nil {
		return fmt.Errorf("harberger: current holder: %w", err)
	}
	if holder != caller {
		return ErrUnauthorized
	}

	now := l.clock.Now()
	elapsed, err := tax.Elapsed(rec.LastSettlement, now)
	if err != nil {
		return err
	}

	due, err := tax.Due(rec.Price, p.TaxRateBps, elapsed)
	if err != nil {
		return err
	}
	if tendered.LessThan(due) {
		return fmt.Errorf("%w: owed %s, tendered %s", ErrInsufficientPayment, due, tendered)
	}

	tx, err := rail.Begin(ctx, l.rail)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if due.IsPositive() {
		if err := tx.Send(caller, p.Treasury, due); err != nil {
			_ = tx.Abort(ctx) //nolint:errcheck // already failing
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	rec.LastSettlement = now
	rec.Touch()
	if err := l.store.UpdateAsset(ctx, rec); err != nil {
		l.logger.Error("tax payment settled but state write failed",
			"asset", assetID.String(), "error", err)
		return fmt.Errorf("harberger: persist tax payment: %w", err)
	}

	l.plugins.EmitTaxPaid(ctx, plugin.TaxPaidEvent{
		AssetID: assetID,
		Owner:   caller,
		Amount:  due,
		At:      now,
	})
	l.logger.Debug("tax paid", "asset", assetID.String(), "amount", due)

	return nil
}

// ──────────────────────────────────────────────────
// Foreclosure
// ──────────────────────────────────────────────────

// EvaluateForeclosure repossesses the asset to the treasury if its tax has
// lapsed past cliff+margin. Foreclosure is never implicit: a lapsed asset
// stays fully usable until some party invokes this, whether the owner, the
// treasury operator, or anyone else. Idempotent: an already-defaulted asset
// reports Foreclosed with no further side effect.
func (l *Ledger) EvaluateForeclosure(ctx context.Context, assetID id.ID) (Outcome, error) {
	p := l.snapshotParams()

	release, err := l.acquire(assetID)
	if err != nil {
		return NotDue, err
	}
	defer release()

	rec, err := l.store.GetAsset(ctx, assetID)
	if err != nil {
		return NotDue, err
	}
	if rec.Defaulted {
		return Foreclosed, nil
	}

	now := l.clock.Now()
	elapsed, err := tax.Elapsed(rec.LastSettlement, now)
	if err != nil {
		return NotDue, err
	}
	if elapsed < p.Cliff+p.Margin {
		return NotDue, nil
	}

	holder, err := l.custody.CurrentHolder(ctx, assetID)
	if err != nil {
		return NotDue, fmt.Errorf("harberger: current holder: %w", err)
	}
	if err := l.custody.TransferCustody(ctx, assetID, holder, p.Treasury); err != nil {
		return NotDue, fmt.Errorf("harberger: repossess: %w", err)
	}

	// Price stays frozen at its last declared value; the record is a
	// terminal tombstone from here on.
	rec.Defaulted = true
	rec.Touch()
	if err := l.store.UpdateAsset(ctx, rec); err != nil {
		l.revertCustody(ctx, assetID, p.Treasury, holder)
		return NotDue, fmt.Errorf("harberger: persist foreclosure: %w", err)
	}

	l.plugins.EmitAssetDefaulted(ctx, plugin.DefaultEvent{
		AssetID:      assetID,
		FormerHolder: holder,
		Treasury:     p.Treasury,
		FrozenPrice:  rec.Price,
		At:           now,
	})
	l.logger.Info("asset defaulted",
		"asset", assetID.String(), "former_holder", holder.String(), "elapsed", elapsed)

	return Foreclosed, nil
}

// revertCustody undoes a custody transfer after a later settlement step
// failed. Failure here is logged and swallowed: the caller is already
// returning the original error.
func (l *Ledger) revertCustody(ctx context.Context, assetID id.ID, from, to types.Account) {
	if err := l.custody.TransferCustody(ctx, assetID, from, to); err != nil {
		l.logger.Error("custody rollback failed",
			"asset", assetID.String(), "from", from.String(), "to", to.String(), "error", err)
	}
}

// ──────────────────────────────────────────────────
// Query surface
// ──────────────────────────────────────────────────

// PriceOf returns the current declared price.
func (l *Ledger) PriceOf(ctx context.Context, assetID id.ID) (decimal.Decimal, error) {
	rec, err := l.store.GetAsset(ctx, assetID)
	if err != nil {
		return decimal.Zero, err
	}
	return rec.Price, nil
}

// LastSettlement returns when tax accrual was last reset.
func (l *Ledger) LastSettlement(ctx context.Context, assetID id.ID) (time.Time, error) {
	rec, err := l.store.GetAsset(ctx, assetID)
	if err != nil {
		return time.Time{}, err
	}
	return rec.LastSettlement, nil
}

// IsDefaulted reports whether the asset has been repossessed.
func (l *Ledger) IsDefaulted(ctx context.Context, assetID id.ID) (bool, error) {
	rec, err := l.store.GetAsset(ctx, assetID)
	if err != nil {
		return false, err
	}
	return rec.Defaulted, nil
}

// TaxDue returns the tax accrued so far. Absent and defaulted assets owe
// zero by definition.
func (l *Ledger) TaxDue(ctx context.Context, assetID id.ID) (decimal.Decimal, error) {
	p := l.snapshotParams()

	rec, err := l.store.GetAsset(ctx, assetID)
	if errors.Is(err, ErrAssetNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	if rec.Defaulted {
		return decimal.Zero, nil
	}

	elapsed, err := tax.Elapsed(rec.LastSettlement, l.clock.Now())
	if err != nil {
		return decimal.Zero, err
	}
	return tax.Due(rec.Price, p.TaxRateBps, elapsed)
}

// HolderOf returns the account currently holding the asset, read through
// the ownership ledger.
func (l *Ledger) HolderOf(ctx context.Context, assetID id.ID) (types.Account, error) {
	return l.custody.CurrentHolder(ctx, assetID)
}
