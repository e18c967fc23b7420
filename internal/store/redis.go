package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/bourskala/market-board/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Passthrough ---

func (s *CachedStore) Migrate(ctx context.Context) error {
	return s.primary.Migrate(ctx)
}

func (s *CachedStore) Seed(ctx context.Context, mappings []model.PriceMapping) (int, error) {
	n, err := s.primary.Seed(ctx, mappings)
	if err == nil && n > 0 {
		s.rdb.Del(ctx, listKey())
	}
	return n, err
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListPrices(ctx context.Context) ([]model.GlobalPrice, error) {
	data, err := s.rdb.Get(ctx, listKey()).Bytes()
	if err == nil {
		var prices []model.GlobalPrice
		if json.Unmarshal(data, &prices) == nil {
			return prices, nil
		}
	}

	prices, err := s.primary.ListPrices(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(prices); err == nil {
		s.rdb.Set(ctx, listKey(), data, s.ttl)
	}
	return prices, nil
}

func (s *CachedStore) GetPrice(ctx context.Context, slug string) (*model.GlobalPrice, error) {
	data, err := s.rdb.Get(ctx, priceKey(slug)).Bytes()
	if err == nil {
		var p model.GlobalPrice
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPrice(ctx, slug)
	if err != nil {
		return nil, err
	}
	s.cachePrice(ctx, p)
	return p, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) SetManualPrice(ctx context.Context, slug string, price decimal.Decimal) (*model.GlobalPrice, error) {
	p, err := s.primary.SetManualPrice(ctx, slug, price)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, slug)
	s.cachePrice(ctx, p)
	return p, nil
}

func (s *CachedStore) RecordScrapedPrice(ctx context.Context, slug string, price decimal.Decimal, fetchedAt time.Time) (*model.GlobalPrice, error) {
	p, err := s.primary.RecordScrapedPrice(ctx, slug, price, fetchedAt)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, slug)
	s.cachePrice(ctx, p)
	return p, nil
}

// --- Cache helpers ---

func (s *CachedStore) cachePrice(ctx context.Context, p *model.GlobalPrice) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, priceKey(p.Slug), data, s.ttl)
	}
}

func (s *CachedStore) invalidate(ctx context.Context, slug string) {
	s.rdb.Del(ctx, priceKey(slug), listKey())
}

func listKey() string           { return "global_prices" }
func priceKey(slug string) string { return fmt.Sprintf("global_price:%s", slug) }
