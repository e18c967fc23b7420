package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bourskala/market-board/internal/feed"
	"github.com/bourskala/market-board/internal/market"
	"github.com/bourskala/market-board/internal/model"
	"github.com/bourskala/market-board/internal/store"
)

// fakeFeed serves canned rows and rates without touching the network.
type fakeFeed struct {
	rows  []model.RawTransaction
	err   error
	rates model.CurrencyRates
}

func (f *fakeFeed) FetchTransactions(_ context.Context, fromDate, toDate string) ([]model.RawTransaction, error) {
	if fromDate == "" || toDate == "" {
		return nil, feed.ErrMissingDateRange
	}
	return f.rows, f.err
}

func (f *fakeFeed) FetchCurrencyRates(context.Context) model.CurrencyRates {
	return f.rates
}

type fakeScraper struct {
	price decimal.Decimal
	err   error
	urls  []string
}

func (f *fakeScraper) FetchPrice(_ context.Context, sourceURL string) (decimal.Decimal, error) {
	f.urls = append(f.urls, sourceURL)
	return f.price, f.err
}

func valid(i int64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromInt(i), Valid: true}
}

func newTestService(t *testing.T, fd *fakeFeed, sc *fakeScraper) (*Service, *store.MemoryStore, http.Handler) {
	t.Helper()
	st := store.NewMemoryStore()
	_, err := st.Seed(context.Background(), model.SeedMappings)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(st, fd, sc, nil, logger)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) { svc.Routes(r) })
	return svc, st, r
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleRows() []model.RawTransaction {
	return []model.RawTransaction{
		{GoodsName: "میلگرد A3", ProducerName: "ذوب آهن", SettlementType: "نقدی",
			Quantity: 10, SupplyVolume: 20, TotalValue: 1000, BasePrice: 90},
		{GoodsName: "میلگرد A2", ProducerName: "فولاد کویر", SettlementType: "سلف",
			Quantity: 5, SupplyVolume: 5, TotalValue: 600, BasePrice: 100},
		{GoodsName: "شمش بلوم", ProducerName: "فولاد خوزستان", SettlementType: "نقدی",
			Quantity: 8, SupplyVolume: 10, TotalValue: 560, BasePrice: 65},
	}
}

func TestTransactions(t *testing.T) {
	fd := &fakeFeed{
		rows: sampleRows(),
		rates: model.CurrencyRates{
			HallCash:     valid(900000),
			HallTransfer: valid(1000000),
			FreeMarket:   valid(1100000),
		},
	}
	svc, st, h := newTestService(t, fd, &fakeScraper{})
	_ = svc

	// Billet carries a direct price; rebar derives from it via markup.
	_, err := st.RecordScrapedPrice(context.Background(), "billet", decimal.NewFromInt(500), time.Now().UTC())
	require.NoError(t, err)

	rec := postJSON(t, h, "/api/v1/transactions", TransactionsRequest{
		FromDate: "1403/05/01", ToDate: "1403/05/07",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TransactionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Summaries, 2)
	assert.Equal(t, 3, resp.RowCount)

	// Sorted by traded value: rebar (1600) before billet (560).
	rebar := resp.Summaries[0]
	assert.Equal(t, "میلگرد", rebar.GroupName)
	assert.InDelta(t, 15, rebar.TotalQuantity, 1e-9)
	assert.InDelta(t, 60, rebar.VolumeToSupplyRatio, 1e-9)

	// Global 500 * 1.16 = 580 USD/t; blend 0.4*900000 + 0.6*1000000 = 960000;
	// estimate 580 * 960000 / 1000 = 556800 rial/kg.
	require.True(t, rebar.GlobalPrice.Valid)
	assert.True(t, rebar.GlobalPrice.Decimal.Equal(decimal.NewFromInt(580)))
	require.True(t, rebar.EstimatedPrice.Valid)
	assert.True(t, rebar.EstimatedPrice.Decimal.Equal(decimal.NewFromInt(556800)),
		"estimate = %s", rebar.EstimatedPrice.Decimal)
	assert.True(t, rebar.DollarEquivalent.Valid)

	billet := resp.Summaries[1]
	assert.Equal(t, "شمش", billet.GroupName)
	require.True(t, billet.GlobalPrice.Valid)
	assert.True(t, billet.GlobalPrice.Decimal.Equal(decimal.NewFromInt(500)))

	// Facets come from the unfiltered rows.
	assert.ElementsMatch(t, []string{"نقدی", "سلف"}, resp.Facets.SettlementTypes)
	assert.Len(t, resp.Facets.Producers, 3)
}

func TestTransactions_Filtered(t *testing.T) {
	fd := &fakeFeed{rows: sampleRows()}
	_, _, h := newTestService(t, fd, &fakeScraper{})

	rec := postJSON(t, h, "/api/v1/transactions", TransactionsRequest{
		FromDate: "1403/05/01", ToDate: "1403/05/07",
		Filters: market.FacetSelection{
			SettlementTypes: []string{"نقدی"},
			Groups:          []string{"میلگرد"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TransactionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.RowCount)
	require.Len(t, resp.Summaries, 1)
	assert.Equal(t, "میلگرد", resp.Summaries[0].GroupName)
	// Facet values stay complete regardless of the active filter.
	assert.Len(t, resp.Facets.Producers, 3)
}

func TestTransactions_MissingDates(t *testing.T) {
	_, _, h := newTestService(t, &fakeFeed{}, &fakeScraper{})
	rec := postJSON(t, h, "/api/v1/transactions", TransactionsRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransactions_UpstreamDown(t *testing.T) {
	_, _, h := newTestService(t, &fakeFeed{err: errors.New("boom")}, &fakeScraper{})
	rec := postJSON(t, h, "/api/v1/transactions", TransactionsRequest{
		FromDate: "1403/05/01", ToDate: "1403/05/07",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPairs(t *testing.T) {
	_, _, h := newTestService(t, &fakeFeed{rows: sampleRows()}, &fakeScraper{})

	req := PairsRequest{Source: "شمش", Targets: []string{"میلگرد", "تیرآهن"}}
	req.FromDate, req.ToDate = "1403/05/01", "1403/05/07"
	rec := postJSON(t, h, "/api/v1/pairs", req)
	require.Equal(t, http.StatusOK, rec.Code)

	var ratios []struct {
		Target string  `json:"target"`
		Ratio  float64 `json:"ratio"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ratios))
	require.Len(t, ratios, 2)

	// avg(شمش) = 560/8 = 70, avg(میلگرد) = 1600/15.
	assert.InDelta(t, (1600.0/15)/70, ratios[0].Ratio, 1e-9)
	// No beam rows traded: guarded to zero, never a division error.
	assert.Zero(t, ratios[1].Ratio)
}

func TestPairs_MissingSource(t *testing.T) {
	_, _, h := newTestService(t, &fakeFeed{}, &fakeScraper{})
	req := PairsRequest{}
	req.FromDate, req.ToDate = "1403/05/01", "1403/05/07"
	rec := postJSON(t, h, "/api/v1/pairs", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateGlobalPrice(t *testing.T) {
	_, st, h := newTestService(t, &fakeFeed{}, &fakeScraper{})

	rec := postPatch(t, h, "/api/v1/global-prices/rebar", UpdatePriceRequest{Price: decimal.NewFromInt(640)})
	require.Equal(t, http.StatusOK, rec.Code)

	row, err := st.GetPrice(context.Background(), "rebar")
	require.NoError(t, err)
	assert.True(t, row.ManuallyUpdated)
	assert.True(t, row.Price.Decimal.Equal(decimal.NewFromInt(640)))
}

func TestUpdateGlobalPrice_Validation(t *testing.T) {
	_, _, h := newTestService(t, &fakeFeed{}, &fakeScraper{})

	rec := postPatch(t, h, "/api/v1/global-prices/rebar", UpdatePriceRequest{Price: decimal.Zero})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postPatch(t, h, "/api/v1/global-prices/nope", UpdatePriceRequest{Price: decimal.NewFromInt(100)})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefetchGlobalPrice(t *testing.T) {
	sc := &fakeScraper{price: decimal.NewFromInt(470)}
	_, st, h := newTestService(t, &fakeFeed{}, sc)

	rec := postJSON(t, h, "/api/v1/global-prices/billet/refetch", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	row, err := st.GetPrice(context.Background(), "billet")
	require.NoError(t, err)
	assert.True(t, row.Price.Decimal.Equal(decimal.NewFromInt(470)))
	assert.False(t, row.ManuallyUpdated)
	assert.NotNil(t, row.LastFetchedAt)

	require.Len(t, sc.urls, 1)
	assert.True(t, strings.HasPrefix(sc.urls[0], "https://www.metal.com/"))
}

func TestRefetchGlobalPrice_ManualGuard(t *testing.T) {
	sc := &fakeScraper{price: decimal.NewFromInt(470)}
	_, st, h := newTestService(t, &fakeFeed{}, sc)

	_, err := st.SetManualPrice(context.Background(), "billet", decimal.NewFromInt(520))
	require.NoError(t, err)

	// Without force the manual edit is protected.
	rec := postJSON(t, h, "/api/v1/global-prices/billet/refetch", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	row, err := st.GetPrice(context.Background(), "billet")
	require.NoError(t, err)
	assert.True(t, row.Price.Decimal.Equal(decimal.NewFromInt(520)))

	// force=true overwrites and clears the flag.
	rec = postJSON(t, h, "/api/v1/global-prices/billet/refetch?force=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	row, err = st.GetPrice(context.Background(), "billet")
	require.NoError(t, err)
	assert.True(t, row.Price.Decimal.Equal(decimal.NewFromInt(470)))
	assert.False(t, row.ManuallyUpdated)
}

func TestRefetchGlobalPrice_ScrapeFailure(t *testing.T) {
	sc := &fakeScraper{err: errors.New("page unreachable")}
	_, _, h := newTestService(t, &fakeFeed{}, sc)

	rec := postJSON(t, h, "/api/v1/global-prices/billet/refetch", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSeedGlobalPrices_Idempotent(t *testing.T) {
	_, _, h := newTestService(t, &fakeFeed{}, &fakeScraper{})

	// The store was already seeded by the test harness.
	rec := postJSON(t, h, "/api/v1/global-prices/seed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp["inserted"])
}

func TestListGlobalPrices(t *testing.T) {
	_, _, h := newTestService(t, &fakeFeed{}, &fakeScraper{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/global-prices", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var prices []model.GlobalPrice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prices))
	assert.Len(t, prices, len(model.SeedMappings))
}

func TestWeeks(t *testing.T) {
	_, _, h := newTestService(t, &fakeFeed{}, &fakeScraper{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weeks?year=1403", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var weeks []struct {
		FromDate string `json:"fromDate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &weeks))
	assert.Len(t, weeks, 53)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/weeks?year=abc", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport(t *testing.T) {
	_, _, h := newTestService(t, &fakeFeed{rows: sampleRows()}, &fakeScraper{})

	rec := postJSON(t, h, "/api/v1/export", TransactionsRequest{
		FromDate: "1403/05/01", ToDate: "1403/05/07",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func postPatch(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPatch, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
