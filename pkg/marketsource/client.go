// Package marketsource provides a client for the marketplace listing API.
// Listings arrive best-effort: numeric fields may be stringified or missing,
// so the payload type is deliberately loose and normalization happens
// downstream.
package marketsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Listing is a raw marketplace listing payload. Numeric fields are typed as
// any because upstream exports routinely stringify them.
type Listing struct {
	ProductID        string   `json:"product_id"`
	Title            string   `json:"title"`
	URL              string   `json:"url"`
	Currency         string   `json:"currency"`
	Price            any      `json:"price"`
	ShippingCost     any      `json:"shipping_cost"`
	Rating           any      `json:"rating"`
	PositiveFeedback any      `json:"positive_feedback"`
	OrderCount       any      `json:"order_count"`
	StoreOpenedAt    any      `json:"store_opened_at"`
	Categories       []string `json:"categories"`
	ImageURL         string   `json:"image_url"`
}

// Client defines the marketplace listing operations.
type Client interface {
	// FetchListing retrieves the raw listing for a product ID.
	FetchListing(ctx context.Context, productID string) (*Listing, error)
}

// ClientOption configures the client.
type ClientOption func(*httpSource)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *httpSource) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *httpSource) {
		c.hc = hc
	}
}

// WithRateLimit overrides the default request rate (2 req/s).
func WithRateLimit(rps float64) ClientOption {
	return func(c *httpSource) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithMaxRetries sets the total number of attempts per fetch (including the
// first). A value of 1 disables retries.
func WithMaxRetries(n int) ClientOption {
	return func(c *httpSource) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// httpSource implements Client against a JSON HTTP API.
type httpSource struct {
	baseURL     string
	key         string
	hc          *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
}

// NewClient creates a marketplace client with the given API key.
func NewClient(key string, opts ...ClientOption) Client {
	c := &httpSource{
		baseURL:     "https://api.dropsight.io/v1",
		key:         key,
		hc:          &http.Client{Timeout: 20 * time.Second},
		limiter:     rate.NewLimiter(2, 2),
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// statusError marks HTTP responses worth retrying apart from non-retryable
// client errors.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("marketsource: status %d", e.code)
}

func (e *statusError) transient() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func (c *httpSource) FetchListing(ctx context.Context, productID string) (*Listing, error) {
	if productID == "" {
		return nil, eris.New("marketsource: product ID is required")
	}

	var listing *Listing
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt)
			zap.L().Warn("marketsource: retrying fetch",
				zap.String("product_id", productID),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "marketsource: fetch cancelled")
			case <-time.After(delay):
			}
		}

		listing, lastErr = c.fetchOnce(ctx, productID)
		if lastErr == nil {
			return listing, nil
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}

		var se *statusError
		if eris.As(lastErr, &se) && !se.transient() {
			return nil, lastErr
		}
	}

	return nil, eris.Wrapf(lastErr, "marketsource: fetch listing %s after %d attempts", productID, c.maxAttempts)
}

func (c *httpSource) fetchOnce(ctx context.Context, productID string) (*Listing, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "marketsource: rate limiter")
		}
	}

	endpoint := fmt.Sprintf("%s/listings/%s", c.baseURL, url.PathEscape(productID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "marketsource: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "marketsource: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}

	var listing Listing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, eris.Wrap(err, "marketsource: decode listing")
	}
	if listing.ProductID == "" {
		listing.ProductID = productID
	}

	return &listing, nil
}

// retryDelay computes exponential backoff with ±25% jitter.
func (c *httpSource) retryDelay(attempt int) time.Duration {
	base := float64(c.backoff) * math.Pow(2, float64(attempt-1))
	jitter := 1 + 0.25*(2*rand.Float64()-1)
	return time.Duration(base * jitter)
}
