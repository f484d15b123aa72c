package retryhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"versescope/internal/logging"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 1 * time.Second
	DefaultTimeout     = 30 * time.Second

	// drainLimit bounds how much of a discarded 5xx body is read so the
	// connection can be reused.
	drainLimit = 64 << 10
)

// Doer is the transport the retry loop drives.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Attempt describes a single try, reported to the observer hook.
type Attempt struct {
	Number     int
	StatusCode int
	Err        error
}

// Client retries requests against a Doer.
type Client struct {
	doer        Doer
	maxAttempts int
	delay       time.Duration
	sleeper     func(time.Duration)
	observer    func(Attempt)
	logger      *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithDoer overrides the transport (an *http.Client or a test double).
func WithDoer(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.doer = doer
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.doer = client
		}
	}
}

// WithTimeout sets the per-attempt timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.doer = &http.Client{Timeout: timeout}
		}
	}
}

// WithMaxAttempts overrides the total attempt count (defaults to 3).
func WithMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.maxAttempts = attempts
	}
}

// WithDelay overrides the fixed delay between attempts (defaults to 1s).
func WithDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.delay = delay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithObserver registers a hook invoked after every attempt.
func WithObserver(observer func(Attempt)) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// WithLogger attaches a logger used for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New constructs a retrying client.
func New(opts ...Option) *Client {
	client := &Client{
		doer:        &http.Client{Timeout: DefaultTimeout},
		maxAttempts: DefaultMaxAttempts,
		delay:       DefaultDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.logger == nil {
		client.logger = logging.NewNop()
	}
	return client
}

// MaxAttempts reports the effective attempt budget.
func (c *Client) MaxAttempts() int {
	if c == nil || c.maxAttempts <= 0 {
		return 1
	}
	return c.maxAttempts
}

// Do sends req, retrying server errors and transport failures. The returned
// response may carry any status; a non-nil error means no response was
// obtained on the final attempt.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("retry http: nil request")
	}
	ctx := req.Context()
	attempts := c.MaxAttempts()
	if attempts > 1 && req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return nil, errors.New("retry http: request body cannot be replayed (GetBody is nil)")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.doOnce(ctx, req, attempt)
		c.observe(Attempt{Number: attempt, StatusCode: statusOf(resp), Err: err})

		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if err != nil && ctx.Err() != nil {
			return nil, err
		}
		if attempt == attempts {
			if err != nil {
				return nil, fmt.Errorf("retry http: failed after %d attempts: %w", attempts, err)
			}
			return resp, nil
		}

		if resp != nil {
			discard(resp)
		}
		lastErr = err
		logging.WarnWithContext(
			logging.WithContext(ctx, c.logger),
			"request failed; retrying",
			"http_retry",
			logging.String("method", req.Method),
			logging.String("host", req.URL.Host),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Int("status", statusOf(resp)),
			logging.Duration("delay", c.delay),
			logging.Any("cause", causeOf(err)),
			logging.String(logging.FieldErrorHint, "upstream unavailable; the request is retried automatically"),
		)
		if err := c.sleep(ctx); err != nil {
			return nil, err
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, req *http.Request, attempt int) (*http.Response, error) {
	if attempt == 1 {
		return c.doer.Do(req)
	}
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("retry http: replay body: %w", err)
		}
		clone.Body = body
	}
	return c.doer.Do(clone)
}

func (c *Client) observe(attempt Attempt) {
	if c.observer != nil {
		c.observer(attempt)
	}
}

func (c *Client) sleep(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(c.delay)
		return ctx.Err()
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func causeOf(err error) string {
	if err == nil {
		return "server error"
	}
	return err.Error()
}
