package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bourskala/market-board/internal/model"
)

// MemoryStore is an in-memory Store for tests and proxy-only deployments
// without a database. Data does not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[string]*model.GlobalPrice
	order  []string
	nextID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*model.GlobalPrice), nextID: 1}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Seed(_ context.Context, mappings []model.PriceMapping) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rows) > 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for _, m := range mappings {
		s.rows[m.Slug] = &model.GlobalPrice{
			ID:         s.nextID,
			Slug:       m.Slug,
			GlobalName: m.GlobalName,
			LocalLabel: m.LocalLabel,
			SourceURL:  m.SourceURL,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		s.order = append(s.order, m.Slug)
		s.nextID++
	}
	return len(mappings), nil
}

func (s *MemoryStore) ListPrices(context.Context) ([]model.GlobalPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := make([]model.GlobalPrice, 0, len(s.order))
	for _, slug := range s.order {
		prices = append(prices, *s.rows[slug])
	}
	return prices, nil
}

func (s *MemoryStore) GetPrice(_ context.Context, slug string) (*model.GlobalPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.rows[slug]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *MemoryStore) SetManualPrice(_ context.Context, slug string, price decimal.Decimal) (*model.GlobalPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.rows[slug]
	if !ok {
		return nil, ErrNotFound
	}
	p.Price = decimal.NullDecimal{Decimal: price, Valid: true}
	p.ManuallyUpdated = true
	p.UpdatedAt = time.Now().UTC()
	copied := *p
	return &copied, nil
}

func (s *MemoryStore) RecordScrapedPrice(_ context.Context, slug string, price decimal.Decimal, fetchedAt time.Time) (*model.GlobalPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.rows[slug]
	if !ok {
		return nil, ErrNotFound
	}
	p.Price = decimal.NullDecimal{Decimal: price, Valid: true}
	p.LastFetchedAt = &fetchedAt
	p.ManuallyUpdated = false
	p.UpdatedAt = time.Now().UTC()
	copied := *p
	return &copied, nil
}
