// Package store defines the persistence interface for the global
// reference-price table. Implementations include PostgreSQL (source of
// truth), Redis (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bourskala/market-board/internal/model"
)

// ErrNotFound is returned when no price row exists for a slug.
var ErrNotFound = errors.New("global price not found")

// Store is the persistence interface for global reference prices. Rows are
// independent; every update is a single-row read-modify-write with
// last-write-wins semantics, so no cross-row transactions are needed.
type Store interface {
	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// Seed inserts the static mapping table with null prices. Idempotent:
	// a no-op returning 0 when any row already exists.
	Seed(ctx context.Context, mappings []model.PriceMapping) (int, error)

	// ListPrices returns all price rows in insertion order.
	ListPrices(ctx context.Context) ([]model.GlobalPrice, error)

	// GetPrice retrieves one row by slug.
	GetPrice(ctx context.Context, slug string) (*model.GlobalPrice, error)

	// SetManualPrice stores a user-entered price and raises the
	// manually_updated flag so later scrapes cannot silently replace it.
	SetManualPrice(ctx context.Context, slug string, price decimal.Decimal) (*model.GlobalPrice, error)

	// RecordScrapedPrice stores an automatically fetched price, stamps the
	// fetch time, and clears the manual-override flag.
	RecordScrapedPrice(ctx context.Context, slug string, price decimal.Decimal, fetchedAt time.Time) (*model.GlobalPrice, error)
}
