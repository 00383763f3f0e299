// Package leveldb implements store.Store on an embedded LevelDB database.
// Records are stored as JSON under "asset/"-prefixed keys; TypeID keys are
// K-sortable, so prefix iteration yields mint order.
package leveldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	harberger "github.com/openlots/harberger"
	"github.com/openlots/harberger/asset"
	"github.com/openlots/harberger/id"
	hstore "github.com/openlots/harberger/store"
)

// compile-time interface check
var _ hstore.Store = (*Store)(nil)

const assetKeyPrefix = "asset/"

// Store implements store.Store using an embedded LevelDB database.
type Store struct {
	db *leveldb.DB
}

// New opens (or creates) a LevelDB database at path.
func New(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("harberger/leveldb: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an already-open database. The caller keeps ownership of
// db; Close still closes it.
func NewFromDB(db *leveldb.DB) *Store {
	return &Store{db: db}
}

func assetKey(assetID id.ID) []byte {
	return []byte(assetKeyPrefix + assetID.String())
}

// CreateAsset implements store.Store.
func (s *Store) CreateAsset(_ context.Context, a *asset.Asset) error {
	key := assetKey(a.ID)

	ok, err := s.db.Has(key, nil)
	if err != nil {
		return fmt.Errorf("harberger/leveldb: create asset: %w", err)
	}
	if ok {
		return fmt.Errorf("%w: %s", harberger.ErrDuplicateAsset, a.ID)
	}

	return s.put(key, a)
}

// GetAsset implements store.Store.
func (s *Store) GetAsset(_ context.Context, assetID id.ID) (*asset.Asset, error) {
	raw, err := s.db.Get(assetKey(assetID), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", harberger.ErrAssetNotFound, assetID)
	}
	if err != nil {
		return nil, fmt.Errorf("harberger/leveldb: get asset: %w", err)
	}

	var a asset.Asset
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("harberger/leveldb: decode asset %s: %w", assetID, err)
	}
	return &a, nil
}

// UpdateAsset implements store.Store.
func (s *Store) UpdateAsset(_ context.Context, a *asset.Asset) error {
	key := assetKey(a.ID)

	ok, err := s.db.Has(key, nil)
	if err != nil {
		return fmt.Errorf("harberger/leveldb: update asset: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", harberger.ErrAssetNotFound, a.ID)
	}

	return s.put(key, a)
}

// ListAssets implements store.Store.
func (s *Store) ListAssets(_ context.Context, opts asset.ListOpts) ([]*asset.Asset, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(assetKeyPrefix)), nil)
	defer iter.Release()

	var (
		out     []*asset.Asset
		skipped int
	)
	for iter.Next() {
		var a asset.Asset
		if err := json.Unmarshal(iter.Value(), &a); err != nil {
			return nil, fmt.Errorf("harberger/leveldb: decode asset %s: %w", iter.Key(), err)
		}
		if opts.Status != "" && a.Status() != opts.Status {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, &a)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("harberger/leveldb: list assets: %w", err)
	}
	return out, nil
}

// Migrate implements store.Store. LevelDB is schemaless; nothing to do.
func (s *Store) Migrate(context.Context) error { return nil }

// Ping implements store.Store.
func (s *Store) Ping(context.Context) error {
	_, err := s.db.GetProperty("leveldb.stats")
	return err
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) put(key []byte, a *asset.Asset) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("harberger/leveldb: encode asset %s: %w", a.ID, err)
	}
	if err := s.db.Put(key, raw, nil); err != nil {
		return fmt.Errorf("harberger/leveldb: put asset %s: %w", a.ID, err)
	}
	return nil
}
