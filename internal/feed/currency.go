package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bourskala/market-board/internal/metrics"
	"github.com/bourskala/market-board/internal/model"
)

// iceMarketCash and iceMarketTransfer are the exchange-controlled hall
// channels on the currency exchange API.
const (
	iceMarketCash     = 1
	iceMarketTransfer = 2
)

type iceCurrency struct {
	Slug      string `json:"slug"`
	SellPrice string `json:"sell_price"`
}

type dastyarItem struct {
	Key   string `json:"key"`
	Price string `json:"price"`
}

// FetchCurrencyRates fetches the three dollar rates. Each sub-fetch is
// isolated: a failure degrades only its own field to null and is logged at
// Warn, never aborting the others.
func (c *Client) FetchCurrencyRates(ctx context.Context) model.CurrencyRates {
	var rates model.CurrencyRates

	if rate, err := c.fetchHallRate(ctx, iceMarketCash); err != nil {
		c.logger.Warn("hall cash rate unavailable", "err", err)
	} else {
		rates.HallCash = decimal.NullDecimal{Decimal: rate, Valid: true}
	}

	if rate, err := c.fetchHallRate(ctx, iceMarketTransfer); err != nil {
		c.logger.Warn("hall transfer rate unavailable", "err", err)
	} else {
		rates.HallTransfer = decimal.NullDecimal{Decimal: rate, Valid: true}
	}

	if rate, err := c.fetchFreeMarketRate(ctx); err != nil {
		c.logger.Warn("free market rate unavailable", "err", err)
	} else {
		rates.FreeMarket = decimal.NullDecimal{Decimal: rate, Valid: true}
	}

	return rates
}

// proxyGet issues a GET for an upstream URL through the relay proxy.
func (c *Client) proxyGet(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.ProxyURL+"?url="+url.QueryEscape(target), nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func (c *Client) fetchHallRate(ctx context.Context, market int) (decimal.Decimal, error) {
	source := fmt.Sprintf("ice_market_%d", market)
	target := fmt.Sprintf("%s/markets/%d/currencies/history/latest/?lang=fa", c.cfg.IceURL, market)

	start := time.Now()
	resp, err := c.proxyGet(ctx, target)
	metrics.UpstreamLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(source, "error").Inc()
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues(source, "error").Inc()
		return decimal.Zero, fmt.Errorf("upstream status %s", resp.Status)
	}

	var currencies []iceCurrency
	if err := json.NewDecoder(resp.Body).Decode(&currencies); err != nil {
		metrics.UpstreamRequests.WithLabelValues(source, "malformed").Inc()
		return decimal.Zero, fmt.Errorf("decode ice response: %w", err)
	}

	for _, cur := range currencies {
		if cur.Slug != "USD" {
			continue
		}
		rate, err := parseRate(cur.SellPrice)
		if err != nil {
			metrics.UpstreamRequests.WithLabelValues(source, "malformed").Inc()
			return decimal.Zero, fmt.Errorf("parse sell price %q: %w", cur.SellPrice, err)
		}
		metrics.UpstreamRequests.WithLabelValues(source, "ok").Inc()
		return rate, nil
	}
	metrics.UpstreamRequests.WithLabelValues(source, "malformed").Inc()
	return decimal.Zero, fmt.Errorf("no USD entry in ice market %d", market)
}

func (c *Client) fetchFreeMarketRate(ctx context.Context) (decimal.Decimal, error) {
	const source = "dastyar"

	start := time.Now()
	resp, err := c.proxyGet(ctx, c.cfg.DastyarURL)
	metrics.UpstreamLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(source, "error").Inc()
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues(source, "error").Inc()
		return decimal.Zero, fmt.Errorf("upstream status %s", resp.Status)
	}

	var items []dastyarItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		metrics.UpstreamRequests.WithLabelValues(source, "malformed").Inc()
		return decimal.Zero, fmt.Errorf("decode dastyar response: %w", err)
	}

	for _, item := range items {
		if item.Key != "usd" {
			continue
		}
		rate, err := parseRate(item.Price)
		if err != nil {
			metrics.UpstreamRequests.WithLabelValues(source, "malformed").Inc()
			return decimal.Zero, fmt.Errorf("parse price %q: %w", item.Price, err)
		}
		metrics.UpstreamRequests.WithLabelValues(source, "ok").Inc()
		// Dastyar quotes Toman; multiply by 10 for rial.
		return rate.Mul(decimal.NewFromInt(10)), nil
	}
	metrics.UpstreamRequests.WithLabelValues(source, "malformed").Inc()
	return decimal.Zero, fmt.Errorf("no usd entry in dastyar response")
}

// parseRate parses an upstream price string, tolerating thousands
// separators.
func parseRate(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
}
