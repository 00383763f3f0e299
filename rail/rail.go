// Package rail defines the value-transfer port consumed by the Harberger
// engine.
//
// A settlement may involve several payments (price to the seller, tax to the
// treasury). Rails that can stage those payments and apply them as a unit
// should implement Transactional; the engine then gets all-or-nothing
// settlement. Plain rails are driven through a compensating transaction
// that reverses already-applied legs when a later leg fails, so a partial
// settlement never survives an operation error.
package rail

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openlots/harberger/types"
)

var (
	// ErrInsufficientFunds reports a send exceeding the source balance.
	ErrInsufficientFunds = errors.New("rail: insufficient funds")

	// ErrInvalidAmount reports a negative transfer amount.
	ErrInvalidAmount = errors.New("rail: transfer amount must not be negative")

	// ErrTxDone reports use of a transaction after Commit or Abort.
	ErrTxDone = errors.New("rail: transaction already finished")
)

// Rail moves value between accounts. Send is synchronous and may fail for
// any reason the host decides (insufficient funds, recipient rejection);
// callers treat a failure as aborting the enclosing operation.
type Rail interface {
	Send(ctx context.Context, from, to types.Account, amount decimal.Decimal) error
}

// Tx stages the payments of one settlement. Send validates and records a
// payment; Commit applies every staged payment atomically; Abort discards
// them. Commit and Abort finish the transaction.
type Tx interface {
	Send(from, to types.Account, amount decimal.Decimal) error
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// Transactional is an optional interface for rails that support staged,
// all-or-nothing settlement.
type Transactional interface {
	Begin(ctx context.Context) (Tx, error)
}

// Begin opens a settlement transaction on r. Rails that do not implement
// Transactional get a staged transaction too: its Commit plays the sends
// one by one and compensates already-applied legs with reverse sends when
// a later leg fails. Compensation is best effort; a rail that rejects the
// reverse send leaves the discrepancy to the host, which is why rails that
// can stage natively should implement Transactional.
func Begin(ctx context.Context, r Rail) (Tx, error) {
	if t, ok := r.(Transactional); ok {
		return t.Begin(ctx)
	}
	return &compensatingTx{rail: r}, nil
}

type stagedSend struct {
	from, to types.Account
	amount   decimal.Decimal
}

type compensatingTx struct {
	rail   Rail
	staged []stagedSend
	done   bool
}

func (t *compensatingTx) Send(from, to types.Account, amount decimal.Decimal) error {
	if t.done {
		return ErrTxDone
	}
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	t.staged = append(t.staged, stagedSend{from, to, amount})
	return nil
}

// Commit applies the staged sends in order. When a leg fails, the legs
// already applied are compensated with reverse sends and the whole batch
// is rejected.
func (t *compensatingTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	for i, s := range t.staged {
		if err := t.rail.Send(ctx, s.from, s.to, s.amount); err != nil {
			for j := i - 1; j >= 0; j-- {
				r := t.staged[j]
				if revErr := t.rail.Send(ctx, r.to, r.from, r.amount); revErr != nil {
					return fmt.Errorf("%w (compensating send also failed: %v)", err, revErr)
				}
			}
			return err
		}
	}
	return nil
}

func (t *compensatingTx) Abort(context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.staged = nil
	return nil
}
