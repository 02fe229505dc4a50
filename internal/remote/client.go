package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"consentgate/pkg/platform/circuit"
	"consentgate/pkg/platform/sentinel"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultBackoffBase = time.Second
	// defaultMaxAttempts caps total tries including the first. Transient
	// failures wait backoffBase, then double, between attempts.
	defaultMaxAttempts = 3
)

// Client is the typed wrapper around every network call the engine makes.
// Each call carries an explicit timeout and is cancellable; transient
// failures (timeout, network failure, 5xx) retry with fixed exponential
// backoff, 4xx responses never retry.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	tracer  trace.Tracer
	breaker *circuit.Breaker

	timeout     time.Duration
	backoffBase time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient swaps the underlying transport, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithBackoffBase overrides the first retry delay. Tests use this to avoid
// real seconds.
func WithBackoffBase(d time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = d
	}
}

// WithBreaker swaps the circuit breaker guarding the authority.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// New builds a client for the authority at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		http:        &http.Client{},
		logger:      slog.Default(),
		tracer:      otel.Tracer("consentgate/remote"),
		breaker:     circuit.New("authority", circuit.WithFailureThreshold(5)),
		timeout:     defaultTimeout,
		backoffBase: defaultBackoffBase,
		maxAttempts: defaultMaxAttempts,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do runs one logical operation with retries. The out parameter, when
// non-nil, receives the decoded 2xx response body.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "remote."+op)
	defer span.End()

	// An open breaker means the authority has been failing repeatedly. One
	// probe attempt still goes out so recovery is observed, but the retry
	// budget is not burned on a host that is known to be down.
	maxAttempts := c.maxAttempts
	if c.breaker.IsOpen() {
		requestsTotal.WithLabelValues(op, "short_circuit").Inc()
		maxAttempts = 1
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
	}

	var lastErr error
	delay := c.backoffBase
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			retriesTotal.WithLabelValues(op).Inc()
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}

		err := c.once(ctx, method, path, query, payload, out)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			requestsTotal.WithLabelValues(op, "ok").Inc()
			if _, change := c.breaker.RecordSuccess(); change.Closed {
				c.logger.Info("authority circuit closed", "op", op)
			}
			return nil
		}
		if !retryable(err) {
			// The request itself was wrong; says nothing about authority
			// health, so the breaker does not count it.
			requestsTotal.WithLabelValues(op, "permanent").Inc()
			return fmt.Errorf("%s: %w", op, err)
		}
		lastErr = err
		c.logger.Warn("remote call failed, will retry if attempts remain",
			"op", op, "attempt", attempt, "error", err.Error())
	}

	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.Warn("authority circuit opened", "op", op)
	}
	requestsTotal.WithLabelValues(op, "exhausted").Inc()
	return fmt.Errorf("%s: retries exhausted: %w", op, lastErr)
}

// once performs a single attempt with its own timeout.
func (c *Client) once(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and network failures are transient.
		return fmt.Errorf("%v: %w", err, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return sentinel.ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	default:
		// Remaining 4xx: the request itself is wrong, retrying cannot help.
		return fmt.Errorf("status %d: %w", resp.StatusCode, sentinel.ErrInvalidState)
	}
}

// retryable reports whether an attempt error is transient.
func retryable(err error) bool {
	return errors.Is(err, sentinel.ErrUnavailable)
}

// cacheBust returns query values that defeat intermediary caching, required
// on every configuration fetch.
func cacheBust() url.Values {
	return url.Values{"cb": []string{strconv.FormatInt(time.Now().UnixNano(), 10)}}
}
