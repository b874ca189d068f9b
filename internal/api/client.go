package api

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/ohlcv-gatherer/internal/auth"
)

// Client provides access to the venue's REST API. It is safe for concurrent
// use; all workers share one instance and its rate limiter.
type Client struct {
	baseURL    string
	creds      *auth.Credentials
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. Without WithCredentials requests
// are sent unsigned, which the public candles endpoint accepts.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		limiter:      rate.NewLimiter(rate.Limit(10), 10),
		maxRetries:   0,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets how often a rate-limited or 5xx request is retried inside
// one call. Zero leaves retrying to the next cadence tick.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithRateLimit sets the shared request budget. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCredentials signs every request.
func WithCredentials(creds *auth.Credentials) ClientOption {
	return func(c *Client) {
		c.creds = creds
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
