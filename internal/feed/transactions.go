package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bourskala/market-board/internal/metrics"
	"github.com/bourskala/market-board/internal/model"
)

// transactionsPayload is the exchange's statistics query. The category
// constants pin the feed to the metals/steel section; dates are Jalali
// strings despite the field names.
type transactionsPayload struct {
	Language          int    `json:"Language"`
	Fari              bool   `json:"fari"`
	GregorianFromDate string `json:"GregorianFromDate"`
	GregorianToDate   string `json:"GregorianToDate"`
	MainCat           int    `json:"MainCat"`
	Cat               int    `json:"Cat"`
	SubCat            int    `json:"SubCat"`
	Producer          int    `json:"Producer"`
}

// proxyRequest is the relay proxy's POST envelope.
type proxyRequest struct {
	URL  string `json:"url"`
	Data any    `json:"data"`
}

// transactionsEnvelope is the ASMX response wrapper: the row array arrives
// JSON-encoded a second time inside the "d" field.
type transactionsEnvelope struct {
	D string `json:"d"`
}

// FetchTransactions retrieves the raw trade records of a Jalali date range.
// An empty slice is a valid no-data result, not an error.
func (c *Client) FetchTransactions(ctx context.Context, fromDate, toDate string) ([]model.RawTransaction, error) {
	if fromDate == "" || toDate == "" {
		return nil, ErrMissingDateRange
	}

	payload := proxyRequest{
		URL: c.cfg.TransactionsURL,
		Data: transactionsPayload{
			Language:          8,
			GregorianFromDate: fromDate,
			GregorianToDate:   toDate,
			MainCat:           1, // metals and minerals
			Cat:               1, // steel
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal transactions payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ProxyURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamLatency.WithLabelValues("transactions").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("transactions", "error").Inc()
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues("transactions", "error").Inc()
		return nil, fmt.Errorf("fetch transactions: upstream status %s", resp.Status)
	}

	var envelope transactionsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		metrics.UpstreamRequests.WithLabelValues("transactions", "malformed").Inc()
		return nil, fmt.Errorf("decode transactions envelope: %w", err)
	}
	if envelope.D == "" {
		metrics.UpstreamRequests.WithLabelValues("transactions", "malformed").Inc()
		return nil, fmt.Errorf("transactions envelope missing data field")
	}

	var rows []model.RawTransaction
	if err := json.Unmarshal([]byte(envelope.D), &rows); err != nil {
		metrics.UpstreamRequests.WithLabelValues("transactions", "malformed").Inc()
		return nil, fmt.Errorf("decode transaction rows: %w", err)
	}

	metrics.UpstreamRequests.WithLabelValues("transactions", "ok").Inc()
	c.logger.Info("fetched transactions",
		"from", fromDate, "to", toDate, "rows", len(rows))
	return rows, nil
}
