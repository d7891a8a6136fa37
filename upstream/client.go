// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package upstream calls the external prediction services. Every app gets its
// own circuit breaker so one dead backend does not slow down the others.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/danielhkuo/quickly-predict/metrics"
)

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 10 * time.Second

const maxBody = 1 << 20

// ErrUnavailable means no usable answer came back: the request failed in
// transit, timed out, the breaker is open, or the body was not JSON.
var ErrUnavailable = errors.New("prediction service unavailable")

// StatusError is a non-2xx answer from a prediction service.
type StatusError struct {
	StatusCode int
	// Message is the service's own "error" field, if it sent one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("prediction service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("prediction service returned %d: %s", e.StatusCode, e.Message)
}

// Client is safe for concurrent use.
type Client struct {
	http    *http.Client
	logger  *zap.Logger
	metrics *metrics.Collector

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records call latency on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// New returns a client whose calls give up after timeout.
func New(timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) breaker(app string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[app]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        app,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("app", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A 4xx is the service working as intended.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
	})
	c.breakers[app] = cb
	return cb
}

// PostJSON sends body as JSON and decodes the JSON answer into out.
func (c *Client) PostJSON(ctx context.Context, app, url string, body, out any) error {
	return c.Do(ctx, app, http.MethodPost, url, body, out)
}

// GetJSON fetches url and decodes the JSON answer into out.
func (c *Client) GetJSON(ctx context.Context, app, url string, out any) error {
	return c.Do(ctx, app, http.MethodGet, url, nil, out)
}

// Ping reports whether url answers with a 2xx.
func (c *Client) Ping(ctx context.Context, app, url string) error {
	return c.Do(ctx, app, http.MethodGet, url, nil, nil)
}

// Do performs one call through the app's breaker. Errors are either
// ErrUnavailable (wrapped) or *StatusError.
func (c *Client) Do(ctx context.Context, app, method, url string, body, out any) error {
	_, err := c.breaker(app).Execute(func() (any, error) {
		return nil, c.do(ctx, app, method, url, body, out)
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("upstream call rejected by breaker", zap.String("app", app), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, app, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(app, 0, start)
		c.logger.Warn("upstream request failed",
			zap.String("app", app),
			zap.String("url", url),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	c.observe(app, resp.StatusCode, start)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil {
			se.Message = payload.Error
		}
		c.logger.Info("upstream returned error status",
			zap.String("app", app),
			zap.Int("status", resp.StatusCode),
			zap.String("message", se.Message),
		)
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Client) observe(app string, status int, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveUpstream(app, status, time.Since(start))
	}
}
