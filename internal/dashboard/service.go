// Package dashboard provides the HTTP handlers for the market dashboard:
// aggregated transaction summaries, currency rates, global reference prices,
// pair comparisons, week listings, and Excel export.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bourskala/market-board/internal/export"
	"github.com/bourskala/market-board/internal/feed"
	"github.com/bourskala/market-board/internal/jalali"
	"github.com/bourskala/market-board/internal/market"
	"github.com/bourskala/market-board/internal/metrics"
	"github.com/bourskala/market-board/internal/model"
	"github.com/bourskala/market-board/internal/refprice"
	"github.com/bourskala/market-board/internal/store"
)

// Feed is the upstream data dependency of the service, satisfied by
// *feed.Client in production and by fakes in tests.
type Feed interface {
	FetchTransactions(ctx context.Context, fromDate, toDate string) ([]model.RawTransaction, error)
	FetchCurrencyRates(ctx context.Context) model.CurrencyRates
}

// PriceFetcher scrapes one source page for its current world price.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, sourceURL string) (decimal.Decimal, error)
}

// Service handles dashboard operations. Stateless between requests: every
// summary is recomputed in full from freshly fetched rows.
type Service struct {
	store   store.Store
	feed    Feed
	scraper PriceFetcher
	engine  *refprice.Engine
	hub     *Hub // optional WebSocket hub for price-update broadcasts
	logger  *slog.Logger
}

// NewService creates a dashboard service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, fd Feed, scraper PriceFetcher, hub *Hub, logger *slog.Logger) *Service {
	return &Service{
		store:   st,
		feed:    fd,
		scraper: scraper,
		engine:  refprice.NewEngine(),
		hub:     hub,
		logger:  logger,
	}
}

// Routes mounts every dashboard endpoint on a router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/transactions", s.Transactions)
	r.Post("/pairs", s.Pairs)
	r.Post("/export", s.Export)
	r.Get("/currency-rates", s.CurrencyRates)
	r.Get("/weeks", s.Weeks)
	r.Get("/global-prices", s.ListGlobalPrices)
	r.Post("/global-prices/seed", s.SeedGlobalPrices)
	r.Patch("/global-prices/{slug}", s.UpdateGlobalPrice)
	r.Post("/global-prices/{slug}/refetch", s.RefetchGlobalPrice)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
}

// --- Request/Response types ---

// TransactionsRequest is the JSON body for POST /transactions and /export.
type TransactionsRequest struct {
	FromDate string                `json:"fromDate"` // Jalali YYYY/MM/DD
	ToDate   string                `json:"toDate"`
	Filters  market.FacetSelection `json:"filters"`
}

// GroupView is one aggregated group enriched with reference-price figures.
// The decimal fields are null when their inputs are unavailable.
type GroupView struct {
	model.GroupSummary
	GlobalPrice      decimal.NullDecimal `json:"global_price"`      // USD/tonne
	EstimatedPrice   decimal.NullDecimal `json:"estimated_price"`   // rial/kg
	DollarEquivalent decimal.NullDecimal `json:"dollar_equivalent"` // implied rial/USD
}

// TransactionsResponse is the JSON body returned from POST /transactions.
type TransactionsResponse struct {
	Summaries []GroupView         `json:"summaries"`
	Facets    market.FacetValues  `json:"facets"`
	Rates     model.CurrencyRates `json:"rates"`
	RowCount  int                 `json:"row_count"`
}

// PairsRequest is the JSON body for POST /pairs.
type PairsRequest struct {
	TransactionsRequest
	Source  string   `json:"source"`
	Targets []string `json:"targets"`
}

// UpdatePriceRequest is the JSON body for PATCH /global-prices/{slug}.
type UpdatePriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// --- HTTP Handlers ---

// Transactions handles POST /api/v1/transactions.
// Fetches the raw rows of a Jalali date range, filters, aggregates, and
// enriches each group with global reference prices. Reference data degrades
// partially: a missing rate or price table nulls its own figures only.
func (s *Service) Transactions(w http.ResponseWriter, r *http.Request) {
	var req TransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	rows, err := s.feed.FetchTransactions(ctx, req.FromDate, req.ToDate)
	if err != nil {
		if errors.Is(err, feed.ErrMissingDateRange) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, "transaction upstream unavailable", http.StatusBadGateway)
		return
	}

	resp := s.summarize(ctx, rows, req.Filters)
	writeJSON(w, http.StatusOK, resp)
}

// summarize runs the aggregation pipeline over fetched rows.
func (s *Service) summarize(ctx context.Context, rows []model.RawTransaction, filters market.FacetSelection) TransactionsResponse {
	filtered := market.Filter(rows, filters)
	summaries := market.Aggregate(filtered)

	metrics.AggregationRuns.Inc()
	metrics.AggregationRows.Observe(float64(len(filtered)))

	rates := s.feed.FetchCurrencyRates(ctx)
	globals := s.resolvedGlobalPrices(ctx)

	views := make([]GroupView, 0, len(summaries))
	for _, sum := range summaries {
		view := GroupView{GroupSummary: sum}
		if gp, ok := globals[sum.GroupName]; ok {
			view.GlobalPrice = gp
			view.EstimatedPrice = s.engine.Estimate(sum.GroupName, gp, rates)
			view.DollarEquivalent = refprice.DollarEquivalent(sum.AveragePrice, gp)
		}
		views = append(views, view)
	}

	return TransactionsResponse{
		Summaries: views,
		Facets:    market.CollectFacets(rows),
		Rates:     rates,
		RowCount:  len(filtered),
	}
}

// resolvedGlobalPrices loads the price table and applies the billet-derived
// markups. A store failure degrades to an empty map, logged at Warn.
func (s *Service) resolvedGlobalPrices(ctx context.Context) map[string]decimal.NullDecimal {
	prices, err := s.store.ListPrices(ctx)
	if err != nil {
		s.logger.Warn("global prices unavailable", "err", err)
		return nil
	}
	return refprice.Resolve(prices)
}

// Pairs handles POST /api/v1/pairs.
// Compares the average price of a source group against each target group
// over the same filtered row set.
func (s *Service) Pairs(w http.ResponseWriter, r *http.Request) {
	var req PairsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Source == "" || len(req.Targets) == 0 {
		writeError(w, "source and targets are required", http.StatusBadRequest)
		return
	}

	rows, err := s.feed.FetchTransactions(r.Context(), req.FromDate, req.ToDate)
	if err != nil {
		if errors.Is(err, feed.ErrMissingDateRange) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, "transaction upstream unavailable", http.StatusBadGateway)
		return
	}

	summaries := market.Aggregate(market.Filter(rows, req.Filters))
	writeJSON(w, http.StatusOK, market.CompareMany(summaries, req.Source, req.Targets))
}

// CurrencyRates handles GET /api/v1/currency-rates.
func (s *Service) CurrencyRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.FetchCurrencyRates(r.Context()))
}

// Weeks handles GET /api/v1/weeks?year=1403.
// Defaults to the current Jalali year.
func (s *Service) Weeks(w http.ResponseWriter, r *http.Request) {
	year := jalali.CurrentYear()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1300 || parsed > 1500 {
			writeError(w, "invalid year", http.StatusBadRequest)
			return
		}
		year = parsed
	}
	writeJSON(w, http.StatusOK, jalali.WeeksOfYear(year))
}

// ListGlobalPrices handles GET /api/v1/global-prices.
func (s *Service) ListGlobalPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := s.store.ListPrices(r.Context())
	if err != nil {
		writeError(w, "failed to list global prices", http.StatusInternalServerError)
		return
	}
	if prices == nil {
		prices = []model.GlobalPrice{}
	}
	writeJSON(w, http.StatusOK, prices)
}

// SeedGlobalPrices handles POST /api/v1/global-prices/seed.
// Inserts the static mapping table with null prices; a no-op when any row
// already exists.
func (s *Service) SeedGlobalPrices(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Seed(r.Context(), model.SeedMappings)
	if err != nil {
		writeError(w, "failed to seed global prices", http.StatusInternalServerError)
		return
	}
	s.logger.Info("global prices seeded", "inserted", n)
	writeJSON(w, http.StatusOK, map[string]int{"inserted": n})
}

// UpdateGlobalPrice handles PATCH /api/v1/global-prices/{slug}.
// Stores a user-entered price and raises the manual-override flag.
func (s *Service) UpdateGlobalPrice(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req UpdatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Price.IsPositive() {
		writeError(w, "price must be positive", http.StatusBadRequest)
		return
	}

	row, err := s.store.SetManualPrice(r.Context(), slug, req.Price)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "unknown price slug: "+slug, http.StatusNotFound)
			return
		}
		writeError(w, "failed to update price", http.StatusInternalServerError)
		return
	}

	s.logger.Info("global price edited",
		"slug", slug, "price", req.Price.String())
	s.broadcast("manual_edit", row)
	writeJSON(w, http.StatusOK, row)
}

// RefetchGlobalPrice handles POST /api/v1/global-prices/{slug}/refetch.
// Scrapes the row's source page and stores the extracted price, clearing the
// manual-override flag. A manually edited row is protected: the refetch is
// rejected with 409 unless ?force=true.
func (s *Service) RefetchGlobalPrice(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	ctx := r.Context()

	row, err := s.store.GetPrice(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "unknown price slug: "+slug, http.StatusNotFound)
			return
		}
		writeError(w, "failed to load price", http.StatusInternalServerError)
		return
	}

	if row.ManuallyUpdated && r.URL.Query().Get("force") != "true" {
		writeError(w, "price was manually edited; pass force=true to overwrite", http.StatusConflict)
		return
	}

	price, err := s.scraper.FetchPrice(ctx, row.SourceURL)
	if err != nil {
		s.logger.Warn("refetch failed", "slug", slug, "err", err)
		writeError(w, "failed to fetch price from source", http.StatusBadGateway)
		return
	}

	updated, err := s.store.RecordScrapedPrice(ctx, slug, price, time.Now().UTC())
	if err != nil {
		writeError(w, "failed to store scraped price", http.StatusInternalServerError)
		return
	}

	s.logger.Info("global price refetched",
		"slug", slug, "price", price.String())
	s.broadcast("refetch", updated)
	writeJSON(w, http.StatusOK, updated)
}

// Export handles POST /api/v1/export.
// Runs the same pipeline as Transactions and streams the summaries as an
// Excel workbook.
func (s *Service) Export(w http.ResponseWriter, r *http.Request) {
	var req TransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	rows, err := s.feed.FetchTransactions(ctx, req.FromDate, req.ToDate)
	if err != nil {
		if errors.Is(err, feed.ErrMissingDateRange) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, "transaction upstream unavailable", http.StatusBadGateway)
		return
	}

	summaries := market.Aggregate(market.Filter(rows, req.Filters))

	filename := fmt.Sprintf("market-summary-%s.xlsx", uuid.NewString())
	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := export.WriteSummaries(w, summaries); err != nil {
		// Headers are gone; all we can do is log.
		s.logger.Error("excel export failed", "err", err)
	}
}

// broadcast pushes a price update to WebSocket clients, if a hub is wired.
func (s *Service) broadcast(updateType string, row *model.GlobalPrice) {
	if s.hub == nil || row == nil {
		return
	}
	price := ""
	if row.Price.Valid {
		price = row.Price.Decimal.String()
	}
	s.hub.Broadcast(PriceUpdate{
		Type:            updateType,
		Slug:            row.Slug,
		LocalLabel:      row.LocalLabel,
		Price:           price,
		ManuallyUpdated: row.ManuallyUpdated,
	})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
