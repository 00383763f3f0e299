// Package store declares the unified storage interface for the Harberger
// engine. Backends live in subpackages: memory, leveldb, mongo, postgres.
package store

import (
	"context"

	"github.com/openlots/harberger/asset"
	"github.com/openlots/harberger/id"
)

// Store is the asset state store. Implementations return records as
// independent copies: the engine stages mutations on the returned value and
// persists them with UpdateAsset only after the settlement's transfers have
// settled, so a failed operation never leaves a half-written record behind.
type Store interface {
	// CreateAsset persists a new record. Fails if the identifier is taken.
	CreateAsset(ctx context.Context, a *asset.Asset) error

	// GetAsset returns the record for an identifier.
	GetAsset(ctx context.Context, assetID id.ID) (*asset.Asset, error)

	// UpdateAsset replaces an existing record.
	UpdateAsset(ctx context.Context, a *asset.Asset) error

	// ListAssets returns records matching opts, ordered by identifier.
	ListAssets(ctx context.Context, opts asset.ListOpts) ([]*asset.Asset, error)

	// Migrate prepares backend schema or indexes.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
