// Package custody defines the ownership-ledger port consumed by the
// Harberger engine.
//
// The engine never decides who holds an asset on its own; it reads and
// mutates holdership exclusively through this interface. Hosts back it with
// whatever records custody in their environment (a token registry, a
// database table, a chain client). An in-memory implementation is provided
// for tests and embedded use.
package custody

import (
	"context"
	"errors"

	"github.com/openlots/harberger/id"
	"github.com/openlots/harberger/types"
)

var (
	// ErrAlreadyRegistered reports a RegisterNew for an asset that already
	// has a holder.
	ErrAlreadyRegistered = errors.New("custody: asset already registered")

	// ErrUnknownAsset reports a lookup or transfer for an unregistered asset.
	ErrUnknownAsset = errors.New("custody: unknown asset")

	// ErrNotHolder reports a transfer whose from account is not the current
	// holder.
	ErrNotHolder = errors.New("custody: from account is not the current holder")
)

// Ledger records which account holds which asset.
type Ledger interface {
	// RegisterNew records the first holder of a previously unknown asset.
	RegisterNew(ctx context.Context, assetID id.ID, owner types.Account) error

	// CurrentHolder returns the account currently holding the asset.
	CurrentHolder(ctx context.Context, assetID id.ID) (types.Account, error)

	// TransferCustody moves the asset from its current holder to another
	// account. It fails with ErrNotHolder if from does not hold the asset.
	TransferCustody(ctx context.Context, assetID id.ID, from, to types.Account) error
}
