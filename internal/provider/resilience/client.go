package resilience

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Request errors.
var (
	// ErrCircuitOpen is returned without calling the provider while its
	// circuit is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig holds configuration for a provider client.
type ClientConfig struct {
	// Name identifies the provider in logs, breaker state and the registry.
	Name string

	// Timeout bounds a single HTTP attempt (default: 10s).
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt (default: 3).
	MaxRetries uint64

	// InitialInterval is the first retry delay (default: 100ms).
	InitialInterval time.Duration

	// MaxInterval caps retry delays, including Retry-After hints (default: 5s).
	MaxInterval time.Duration

	// Breaker controls when the circuit opens.
	Breaker BreakerConfig

	// Registry is told about the client and every request outcome. Optional.
	Registry *Registry

	// Logger receives circuit state changes.
	Logger zerolog.Logger
}

// DefaultClientConfig returns the configuration used for the telemetry
// provider.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Logger:          zerolog.Nop(),
	}
}

// Client is an HTTP client that retries transient provider failures behind a
// circuit breaker.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
}

// NewClient creates a provider client and registers it with cfg.Registry.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker(cfg.Name, cfg.Breaker, cfg.Logger.With().Str("component", "resilience").Logger()), //nolint:bodyclose // type param
		config:     cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.config.Name
}

// State returns the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the circuit breaker counts for the current window.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do sends req, retrying network errors, 5xx and 429 responses with
// exponential backoff. Other responses, 4xx included, are returned to the
// caller untouched. Once retries are exhausted the last error is returned
// and no response is.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	hinted := &retryAfterBackOff{BackOff: bo, max: c.config.MaxInterval}
	policy := backoff.WithContext(backoff.WithMaxRetries(hinted, c.config.MaxRetries), ctx)

	var resp *http.Response
	attempt := func() error {
		r, err := c.breaker.Execute(func() (*http.Response, error) {
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				discard(r)
				return nil, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case err != nil:
			return err
		}

		// 429 is retried outside the breaker: the provider is throttling,
		// not failing.
		if r.StatusCode == http.StatusTooManyRequests {
			hinted.hint = parseRetryAfter(r.Header.Get("Retry-After"))
			discard(r)
			return &RateLimitError{RetryAfter: hinted.hint}
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(attempt, policy); err != nil {
		c.record(err)
		return nil, err
	}
	c.record(nil)
	return resp, nil
}

func (c *Client) record(err error) {
	if c.config.Registry == nil {
		return
	}
	if err != nil {
		c.config.Registry.RecordFailure(c.config.Name, err)
		return
	}
	c.config.Registry.RecordSuccess(c.config.Name)
}

func discard(r *http.Response) {
	if r.Body != nil {
		_ = r.Body.Close()
	}
}

// retryAfterBackOff waits at least as long as the last Retry-After hint.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
	max  time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	next = max(next, b.hint)
	b.hint = 0
	return min(next, b.max)
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// ServerError is a 5xx provider response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "provider returned " + strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode)
}

// RateLimitError is a 429 provider response.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return "rate limited: retry after " + e.RetryAfter.String()
	}
	return "rate limited"
}
