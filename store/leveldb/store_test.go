package leveldb_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harberger "github.com/openlots/harberger"
	"github.com/openlots/harberger/asset"
	"github.com/openlots/harberger/id"
	"github.com/openlots/harberger/store/leveldb"
	"github.com/openlots/harberger/types"
)

func newStore(t *testing.T) *leveldb.Store {
	t.Helper()

	s, err := leveldb.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func newAsset(price string) *asset.Asset {
	return &asset.Asset{
		Entity:         types.NewEntity(),
		ID:             id.NewAssetID(),
		Price:          decimal.RequireFromString(price),
		LastSettlement: time.Now().UTC(),
	}
}

func TestCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := newAsset("100")

	_, err := s.GetAsset(ctx, a.ID)
	assert.ErrorIs(t, err, harberger.ErrAssetNotFound)

	require.NoError(t, s.CreateAsset(ctx, a))
	assert.ErrorIs(t, s.CreateAsset(ctx, a), harberger.ErrDuplicateAsset)

	got, err := s.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(a.Price))
	assert.Equal(t, a.ID.String(), got.ID.String())

	got.Defaulted = true
	require.NoError(t, s.UpdateAsset(ctx, got))
	final, err := s.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, final.Defaulted)

	assert.ErrorIs(t, s.UpdateAsset(ctx, newAsset("1")), harberger.ErrAssetNotFound)
}

func TestRoundTripPrecision(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newAsset("0.000000000003170979")
	require.NoError(t, s.CreateAsset(ctx, a))

	got, err := s.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(a.Price), "want %s, got %s", a.Price, got.Price)
	assert.True(t, got.LastSettlement.Equal(a.LastSettlement))
}

func TestListAssets(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	active := newAsset("10")
	defaulted := newAsset("20")
	defaulted.Defaulted = true

	require.NoError(t, s.CreateAsset(ctx, active))
	require.NoError(t, s.CreateAsset(ctx, defaulted))

	all, err := s.ListAssets(ctx, asset.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	defs, err := s.ListAssets(ctx, asset.ListOpts{Status: asset.StatusDefaulted})
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, defaulted.ID.String(), defs[0].ID.String())

	limited, err := s.ListAssets(ctx, asset.ListOpts{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	offset, err := s.ListAssets(ctx, asset.ListOpts{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, offset)
}

func TestSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := leveldb.New(dir)
	require.NoError(t, err)

	a := newAsset("42")
	require.NoError(t, s.CreateAsset(ctx, a))
	require.NoError(t, s.Close())

	s, err = leveldb.New(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(a.Price))
}
