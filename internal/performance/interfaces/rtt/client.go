package rtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"railwatch/internal/observability/metrics"
	performance "railwatch/internal/performance/domain"
)

const (
	// DefaultBaseURL is the public Realtime Trains API root.
	DefaultBaseURL = "https://api.rtt.io/api/v1"

	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 2
	maxErrorBody      = 512
)

// Client fetches station search feeds from the Realtime Trains API.
type Client struct {
	baseURL         string
	username        string
	password        string
	client          *http.Client
	maxRetries      uint64
	initialInterval time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(retries int) Option {
	return func(c *Client) {
		if retries >= 0 {
			c.maxRetries = uint64(retries)
		}
	}
}

// WithRetryInterval sets the first backoff interval.
func WithRetryInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.initialInterval = interval
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient constructs a client authenticating with HTTP basic auth.
func NewClient(baseURL, username, password string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		username:        username,
		password:        password,
		client:          &http.Client{Timeout: defaultTimeout},
		maxRetries:      defaultMaxRetries,
		initialInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type searchResponse struct {
	Location *struct {
		CRS  string `json:"crs"`
		Name string `json:"name"`
	} `json:"location"`
	Services []performance.RawService `json:"services"`
	Error    string                   `json:"error"`
}

// FetchServices returns the service records of station crs on date.
// Failures are wrapped in performance.ErrFetch.
func (c *Client) FetchServices(ctx context.Context, crs string, date time.Time) ([]performance.RawService, error) {
	crs = strings.ToUpper(strings.TrimSpace(crs))
	if crs == "" {
		return nil, fmt.Errorf("%w: empty station code", performance.ErrFetch)
	}
	endpoint := fmt.Sprintf("%s/json/search/%s/%04d/%02d/%02d", c.baseURL, crs, date.Year(), int(date.Month()), date.Day())

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)

	services, err := backoff.RetryNotifyWithData(
		func() ([]performance.RawService, error) {
			return c.fetchOnce(ctx, endpoint)
		},
		retry,
		func(error, time.Duration) {
			metrics.IncFeedRetry()
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: station %s: %v", performance.ErrFetch, crs, err)
	}
	return services, nil
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) ([]performance.RawService, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.IncFeedRequest(metrics.ResultError)
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IncFeedRequest(metrics.ResultError)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := fmt.Errorf("rtt: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.IncFeedRequest(metrics.ResultError)
		return nil, backoff.Permanent(fmt.Errorf("rtt: decode: %w", err))
	}
	if payload.Error != "" {
		metrics.IncFeedRequest(metrics.ResultError)
		return nil, backoff.Permanent(errors.New("rtt: " + payload.Error))
	}
	metrics.IncFeedRequest(metrics.ResultSuccess)
	return payload.Services, nil
}
