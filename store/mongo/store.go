// Package mongo implements store.Store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	harberger "github.com/openlots/harberger"
	"github.com/openlots/harberger/asset"
	"github.com/openlots/harberger/id"
	hstore "github.com/openlots/harberger/store"
)

// Collection name constants.
const colAssets = "harberger_assets"

// compile-time interface check
var _ hstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB at uri and uses the named database.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("harberger/mongo: connect: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx) //nolint:errcheck // already failing
		return nil, err
	}
	return s, nil
}

// NewFromClient wraps an existing client. Close still disconnects it.
func NewFromClient(client *mongo.Client, dbName string) *Store {
	return &Store{client: client, db: client.Database(dbName)}
}

func (s *Store) assets() *mongo.Collection {
	return s.db.Collection(colAssets)
}

// CreateAsset implements store.Store.
func (s *Store) CreateAsset(ctx context.Context, a *asset.Asset) error {
	_, err := s.assets().InsertOne(ctx, toAssetModel(a))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", harberger.ErrDuplicateAsset, a.ID)
	}
	if err != nil {
		return fmt.Errorf("harberger/mongo: create asset: %w", err)
	}
	return nil
}

// GetAsset implements store.Store.
func (s *Store) GetAsset(ctx context.Context, assetID id.ID) (*asset.Asset, error) {
	var m assetModel
	err := s.assets().FindOne(ctx, bson.M{"_id": assetID.String()}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", harberger.ErrAssetNotFound, assetID)
	}
	if err != nil {
		return nil, fmt.Errorf("harberger/mongo: get asset: %w", err)
	}
	return fromAssetModel(&m)
}

// UpdateAsset implements store.Store.
func (s *Store) UpdateAsset(ctx context.Context, a *asset.Asset) error {
	res, err := s.assets().ReplaceOne(ctx, bson.M{"_id": a.ID.String()}, toAssetModel(a))
	if err != nil {
		return fmt.Errorf("harberger/mongo: update asset: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", harberger.ErrAssetNotFound, a.ID)
	}
	return nil
}

// ListAssets implements store.Store.
func (s *Store) ListAssets(ctx context.Context, opts asset.ListOpts) ([]*asset.Asset, error) {
	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.assets().Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("harberger/mongo: list assets: %w", err)
	}
	defer cur.Close(ctx)

	var models []assetModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("harberger/mongo: list assets: %w", err)
	}

	out := make([]*asset.Asset, len(models))
	for i := range models {
		a, err := fromAssetModel(&models[i])
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

// Migrate creates the status index.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.assets().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("harberger/mongo: migrate indexes: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}
