package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bourskala/market-board/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Prices are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS global_prices (
			id               BIGSERIAL PRIMARY KEY,
			slug             VARCHAR(50) NOT NULL UNIQUE,
			global_name      VARCHAR(100) NOT NULL,
			local_label      VARCHAR(100) NOT NULL,
			price            NUMERIC,
			source_url       VARCHAR(255) NOT NULL,
			last_fetched_at  TIMESTAMPTZ,
			manually_updated BOOLEAN NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

func (s *PostgresStore) Seed(ctx context.Context, mappings []model.PriceMapping) (int, error) {
	var existing int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM global_prices`).Scan(&existing); err != nil {
		return 0, fmt.Errorf("count global prices: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	inserted := 0
	for _, m := range mappings {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO global_prices (slug, global_name, local_label, source_url)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (slug) DO NOTHING`,
			m.Slug, m.GlobalName, m.LocalLabel, m.SourceURL)
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", m.Slug, err)
		}
		inserted++
	}
	return inserted, nil
}

const priceColumns = `id, slug, global_name, local_label, price::TEXT,
	source_url, last_fetched_at, manually_updated, created_at, updated_at`

func scanPrice(row pgx.Row) (*model.GlobalPrice, error) {
	var p model.GlobalPrice
	var priceS *string
	if err := row.Scan(&p.ID, &p.Slug, &p.GlobalName, &p.LocalLabel, &priceS,
		&p.SourceURL, &p.LastFetchedAt, &p.ManuallyUpdated, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if priceS != nil {
		d, err := decimal.NewFromString(*priceS)
		if err != nil {
			return nil, fmt.Errorf("parse stored price %q: %w", *priceS, err)
		}
		p.Price = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return &p, nil
}

func (s *PostgresStore) ListPrices(ctx context.Context) ([]model.GlobalPrice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+priceColumns+` FROM global_prices ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []model.GlobalPrice
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		prices = append(prices, *p)
	}
	return prices, rows.Err()
}

func (s *PostgresStore) GetPrice(ctx context.Context, slug string) (*model.GlobalPrice, error) {
	p, err := scanPrice(s.pool.QueryRow(ctx,
		`SELECT `+priceColumns+` FROM global_prices WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get price %s: %w", slug, err)
	}
	return p, nil
}

func (s *PostgresStore) SetManualPrice(ctx context.Context, slug string, price decimal.Decimal) (*model.GlobalPrice, error) {
	p, err := scanPrice(s.pool.QueryRow(ctx,
		`UPDATE global_prices
		 SET price = $2::NUMERIC, manually_updated = TRUE, updated_at = NOW()
		 WHERE slug = $1
		 RETURNING `+priceColumns,
		slug, price.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set manual price %s: %w", slug, err)
	}
	return p, nil
}

func (s *PostgresStore) RecordScrapedPrice(ctx context.Context, slug string, price decimal.Decimal, fetchedAt time.Time) (*model.GlobalPrice, error) {
	p, err := scanPrice(s.pool.QueryRow(ctx,
		`UPDATE global_prices
		 SET price = $2::NUMERIC, last_fetched_at = $3,
		     manually_updated = FALSE, updated_at = NOW()
		 WHERE slug = $1
		 RETURNING `+priceColumns,
		slug, price.String(), fetchedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("record scraped price %s: %w", slug, err)
	}
	return p, nil
}
