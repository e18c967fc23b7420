// Package feed fetches raw transaction rows and currency rates from the
// exchange's public endpoints. Both upstreams sit behind the relay proxy
// because they are not reachable from every network the dashboard runs in.
package feed

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bourskala/market-board/internal/config"
)

// ErrMissingDateRange is returned before any network call when a date bound
// is absent.
var ErrMissingDateRange = errors.New("fromDate and toDate are required")

// Client talks to the transaction and currency upstreams.
type Client struct {
	http   *http.Client
	cfg    config.UpstreamConfig
	logger *slog.Logger
}

// NewClient creates a feed client for the configured upstreams.
func NewClient(cfg config.UpstreamConfig, logger *slog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		cfg:    cfg,
		logger: logger,
	}
}
