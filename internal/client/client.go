package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/muurk/probewatch/internal/logging"
	"github.com/muurk/probewatch/internal/table"
	"github.com/muurk/probewatch/internal/web"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the per-request HTTP timeout
	DefaultTimeout = 5 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the delay before the first retry
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the exponential backoff
	DefaultMaxRetryDelay = 5 * time.Second

	// maxBody bounds how much of a response is read
	maxBody = 4 << 20
)

// Client talks to one probewatch daemon.
type Client struct {
	BaseURL       string
	HTTPClient    *http.Client
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// New returns a client for the daemon at baseURL (e.g. "http://10.0.0.5:8080").
// A bare host:port is accepted and given the http scheme.
func New(baseURL string) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// Status fetches /api/status.
func (c *Client) Status(ctx context.Context) (web.Status, error) {
	var st web.Status
	err := c.get(ctx, "/api/status", &st)
	return st, err
}

// Table fetches /api/table.
func (c *Client) Table(ctx context.Context) ([]table.Entry, error) {
	var entries []table.Entry
	if err := c.get(ctx, "/api/table", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryDelay
	b.MaxInterval = c.MaxRetryDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(max(c.MaxRetries, 0)))
}

// get performs a GET with retries and decodes the JSON body into v.
func (c *Client) get(ctx context.Context, path string, v any) error {
	b := c.newBackOff()
	for attempt := 1; ; attempt++ {
		err := c.getOnce(ctx, path, v)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || ctx.Err() != nil {
			return err
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		logging.Debug("Retrying sensor request",
			zap.String("url", c.BaseURL+path),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (c *Client) getOnce(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return &SensorError{Type: ErrTypeUnknown, Message: "bad request", Err: err, Sensor: c.BaseURL}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return classifyNetworkError(err, c.BaseURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return newHTTPError(c.BaseURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return classifyNetworkError(fmt.Errorf("read body: %w", err), c.BaseURL)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return newParseError(c.BaseURL, err)
	}
	return nil
}
