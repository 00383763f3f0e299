// Package memory provides the in-process asset store.
package memory

import (
	"context"
	"sort"
	"sync"

	harberger "github.com/openlots/harberger"
	"github.com/openlots/harberger/asset"
	"github.com/openlots/harberger/id"
	ledgerstore "github.com/openlots/harberger/store"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store with a map. Records go in and out as clones
// so callers never share mutable state with the store.
type Store struct {
	mu     sync.RWMutex
	assets map[string]*asset.Asset
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{assets: make(map[string]*asset.Asset)}
}

// CreateAsset implements store.Store.
func (s *Store) CreateAsset(_ context.Context, a *asset.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.ID.String()
	if _, exists := s.assets[key]; exists {
		return harberger.ErrDuplicateAsset
	}
	s.assets[key] = a.Clone()
	return nil
}

// GetAsset implements store.Store.
func (s *Store) GetAsset(_ context.Context, assetID id.ID) (*asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[assetID.String()]
	if !ok {
		return nil, harberger.ErrAssetNotFound
	}
	return a.Clone(), nil
}

// UpdateAsset implements store.Store.
func (s *Store) UpdateAsset(_ context.Context, a *asset.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.ID.String()
	if _, exists := s.assets[key]; !exists {
		return harberger.ErrAssetNotFound
	}
	s.assets[key] = a.Clone()
	return nil
}

// ListAssets implements store.Store.
func (s *Store) ListAssets(_ context.Context, opts asset.ListOpts) ([]*asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.assets))
	for k := range s.assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]*asset.Asset, 0, len(keys))
	for _, k := range keys {
		a := s.assets[k]
		if opts.Status != "" && a.Status() != opts.Status {
			continue
		}
		result = append(result, a.Clone())
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Migrate implements store.Store. No schema to prepare.
func (s *Store) Migrate(context.Context) error { return nil }

// Ping implements store.Store.
func (s *Store) Ping(context.Context) error { return nil }

// Close implements store.Store.
func (s *Store) Close() error { return nil }
