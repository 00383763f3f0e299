// Package harberger provides an embeddable Harberger-tax asset ledger for Go applications.
//
// Harberger is designed as a library, not a service. Import it directly into
// your Go application and wire it to your own ownership and payment layers.
// It provides:
//
//   - Self-assessed pricing: every asset carries a holder-declared price
//   - Continuous tax accrual against the declared price, settled lazily
//   - Forced sale: anyone may buy any asset at its declared price
//   - Explicit foreclosure of tax-delinquent assets to a treasury account
//   - Exact decimal arithmetic throughout (shopspring/decimal, no floats)
//   - Pluggable persistence (memory, LevelDB, MongoDB, PostgreSQL)
//   - Plugin hooks for every settlement event
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/openlots/harberger"
//	    "github.com/openlots/harberger/custody"
//	    "github.com/openlots/harberger/rail"
//	    "github.com/openlots/harberger/store/memory"
//	)
//
//	l, err := harberger.New(
//	    memory.New(),
//	    custody.NewMemory(),
//	    rail.NewMemory(),
//	    harberger.DefaultParams("treasury"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Minting registers an asset under a holder at a declared price:
//
//	assetID, err := l.Mint(ctx, "alice", harberger.ID{}, decimal.NewFromInt(100))
//
// Tax accrues continuously at an annual rate against the declared price.
// The holder settles it explicitly, or implicitly when changing the price:
//
//	ctx = harberger.WithCaller(ctx, "alice")
//	err = l.PayTax(ctx, assetID, decimal.NewFromInt(10))
//	err = l.Modify(ctx, assetID, decimal.NewFromInt(250), decimal.NewFromInt(10))
//
// Any account may force a sale at the declared price, paying price plus
// accrued tax:
//
//	ctx = harberger.WithCaller(ctx, "bob")
//	err = l.Purchase(ctx, assetID, decimal.NewFromInt(120))
//
// Assets whose tax lapses past the configured cliff are repossessed to the
// treasury when someone asks:
//
//	outcome, err := l.EvaluateForeclosure(ctx, assetID)
//
// # Arithmetic
//
// All monetary calculation uses arbitrary-precision decimals. Tax is
// computed as price * rate * elapsedSeconds over a fixed 365-day year,
// floored at 18 fractional digits, so a given (price, rate, interval)
// always yields the same amount on every platform.
//
// # Payments
//
// The engine never touches balances itself. It drives a Rail supplied by
// the host: the tendered amount on each operation is an authorization
// ceiling, and the engine debits exactly what is owed. Rails that implement
// rail.Transactional get all-or-nothing settlement of multi-leg payments.
//
// # TypeID
//
// Assets and events use TypeID for globally unique, type-safe identifiers:
//
//	ast_01h2xcejqtf2nbrexx3vqjhp41  // Asset ID
//	evt_01h455vb4pex5vsknk084sn02q  // Event ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package harberger
