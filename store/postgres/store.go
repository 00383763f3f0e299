// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	harberger "github.com/openlots/harberger"
	"github.com/openlots/harberger/asset"
	"github.com/openlots/harberger/id"
	hstore "github.com/openlots/harberger/store"
	"github.com/openlots/harberger/types"
)

// compile-time interface check
var _ hstore.Store = (*Store)(nil)

const uniqueViolation = "23505"

// Store implements store.Store using a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL using the given connection string.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("harberger/postgres: connect: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewFromPool wraps an existing pool. Close still closes it.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateAsset implements store.Store.
func (s *Store) CreateAsset(ctx context.Context, a *asset.Asset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO harberger_assets (id, price, last_settlement, defaulted, created_at, updated_at)
		 VALUES ($1, $2::numeric, $3, $4, $5, $6)`,
		a.ID.String(), a.Price.String(), a.LastSettlement, a.Defaulted, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", harberger.ErrDuplicateAsset, a.ID)
		}
		return fmt.Errorf("harberger/postgres: create asset: %w", err)
	}
	return nil
}

// GetAsset implements store.Store.
func (s *Store) GetAsset(ctx context.Context, assetID id.ID) (*asset.Asset, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, price::text, last_settlement, defaulted, created_at, updated_at
		 FROM harberger_assets WHERE id = $1`, assetID.String())

	a, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", harberger.ErrAssetNotFound, assetID)
	}
	if err != nil {
		return nil, fmt.Errorf("harberger/postgres: get asset: %w", err)
	}
	return a, nil
}

// UpdateAsset implements store.Store.
func (s *Store) UpdateAsset(ctx context.Context, a *asset.Asset) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE harberger_assets
		 SET price = $2::numeric, last_settlement = $3, defaulted = $4, updated_at = $5
		 WHERE id = $1`,
		a.ID.String(), a.Price.String(), a.LastSettlement, a.Defaulted, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("harberger/postgres: update asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", harberger.ErrAssetNotFound, a.ID)
	}
	return nil
}

// ListAssets implements store.Store.
func (s *Store) ListAssets(ctx context.Context, opts asset.ListOpts) ([]*asset.Asset, error) {
	query := `SELECT id, price::text, last_settlement, defaulted, created_at, updated_at
	          FROM harberger_assets`
	args := []any{}

	switch opts.Status {
	case asset.StatusActive:
		query += ` WHERE defaulted = FALSE`
	case asset.StatusDefaulted:
		query += ` WHERE defaulted = TRUE`
	}
	query += ` ORDER BY id`

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("harberger/postgres: list assets: %w", err)
	}
	defer rows.Close()

	var out []*asset.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("harberger/postgres: scan asset: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("harberger/postgres: list assets: %w", err)
	}
	return out, nil
}

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("harberger/postgres: migrate: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanAsset(row pgx.Row) (*asset.Asset, error) {
	var (
		rawID    string
		rawPrice string
		a        asset.Asset
		created  time.Time
		updated  time.Time
	)
	if err := row.Scan(&rawID, &rawPrice, &a.LastSettlement, &a.Defaulted, &created, &updated); err != nil {
		return nil, err
	}

	assetID, err := id.Parse(rawID)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return nil, err
	}

	a.Entity = types.Entity{CreatedAt: created, UpdatedAt: updated}
	a.ID = assetID
	a.Price = price
	return &a, nil
}
