// Package scrape fetches a commodity's source page and extracts its world
// price in USD per tonne from the page text.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/bourskala/market-board/internal/config"
	"github.com/bourskala/market-board/internal/metrics"
)

// ErrNoPrice is returned when the page fetched cleanly but no figure inside
// the plausibility bounds could be extracted.
var ErrNoPrice = errors.New("no price found in page")

// maxBodyBytes caps how much of a source page is read. The quoted price
// sits near the top of every tracked page.
const maxBodyBytes = 2 << 20

// Scraper fetches source pages through the relay proxy, rate-limited so a
// burst of refetch clicks cannot hammer the source site.
type Scraper struct {
	http    *http.Client
	proxy   string
	limiter *rate.Limiter
	min     decimal.Decimal
	max     decimal.Decimal
	logger  *slog.Logger
}

// New creates a scraper from configuration.
func New(proxyURL string, cfg config.ScrapeConfig, logger *slog.Logger) *Scraper {
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	return &Scraper{
		http:    &http.Client{Timeout: 30 * time.Second},
		proxy:   proxyURL,
		limiter: rate.NewLimiter(rate.Limit(perMinute/60), 1),
		min:     decimal.NewFromFloat(cfg.MinPrice),
		max:     decimal.NewFromFloat(cfg.MaxPrice),
		logger:  logger,
	}
}

// FetchPrice retrieves the source page and extracts its price. Blocks on
// the rate limiter; respects context cancellation while waiting.
func (s *Scraper) FetchPrice(ctx context.Context, sourceURL string) (decimal.Decimal, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	scrapeID := uuid.NewString()
	s.logger.Info("scraping source page", "scrape_id", scrapeID, "url", sourceURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.proxy+"?url="+url.QueryEscape(sourceURL), nil)
	if err != nil {
		return decimal.Zero, err
	}

	start := time.Now()
	resp, err := s.http.Do(req)
	metrics.UpstreamLatency.WithLabelValues("scrape").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScrapeResults.WithLabelValues("error").Inc()
		return decimal.Zero, fmt.Errorf("fetch source page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ScrapeResults.WithLabelValues("error").Inc()
		return decimal.Zero, fmt.Errorf("fetch source page: status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.ScrapeResults.WithLabelValues("error").Inc()
		return decimal.Zero, fmt.Errorf("read source page: %w", err)
	}

	price, ok := s.Extract(string(body))
	if !ok {
		metrics.ScrapeResults.WithLabelValues("no_price").Inc()
		s.logger.Warn("no price in page", "scrape_id", scrapeID, "url", sourceURL)
		return decimal.Zero, ErrNoPrice
	}

	metrics.ScrapeResults.WithLabelValues("ok").Inc()
	s.logger.Info("scraped price", "scrape_id", scrapeID, "price", price.String())
	return price, nil
}

// Extraction runs on raw page text, not DOM structure, so the patterns
// tolerate both HTML and markdown renderings of the source. Priority:
//  1. a price next to a "VAT included" marker,
//  2. a price next to an "Average"/"Avg" marker,
//  3. the first USD/mt-denominated figure,
//  4. any bare number that fits the plausibility bounds.
var (
	priceNumber = `(\d+(?:,\d{3})*(?:\.\d+)?)`
	vatRe       = regexp.MustCompile(`(?i)VAT\s+included[\s\S]{0,100}?` + priceNumber + `\s*USD/mt`)
	avgRe       = regexp.MustCompile(`(?i)(?:Average|Avg)[\s\S]{0,50}?` + priceNumber + `\s*USD/mt`)
	unitRe      = regexp.MustCompile(`(?i)` + priceNumber + `\s*USD/mt`)
	bareRe      = regexp.MustCompile(`\d{3,4}(?:\.\d{1,2})?`)
)

// Extract pulls the first plausible USD/mt price out of page text.
func (s *Scraper) Extract(text string) (decimal.Decimal, bool) {
	for _, re := range []*regexp.Regexp{vatRe, avgRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			if price, ok := s.plausible(m[1]); ok {
				return price, true
			}
		}
	}

	for _, m := range unitRe.FindAllStringSubmatch(text, -1) {
		if price, ok := s.plausible(m[1]); ok {
			return price, true
		}
	}

	for _, m := range bareRe.FindAllString(text, -1) {
		if price, ok := s.plausible(m); ok {
			return price, true
		}
	}
	return decimal.Zero, false
}

// plausible parses a candidate figure and checks the USD/mt bounds.
func (s *Scraper) plausible(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	if d.LessThan(s.min) || d.GreaterThan(s.max) {
		return decimal.Zero, false
	}
	return d, true
}
