// Package resilient wraps a rewriter port with retry, a per call timeout,
// ranking and metrics, and folds every failure into RewriterUnavailable
package resilient

import (
	"context"
	"time"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/logger"
	"github.com/LetsGoKDH/taps/internal/platform/metrics"
	"github.com/LetsGoKDH/taps/internal/services/rewriter/domain"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
)

// Config tunes the wrapper
type Config struct {
	// Adapter labels metrics and logs
	Adapter string
	// Timeout bounds one Propose including retries, default 10s
	Timeout time.Duration
	// Attempts is the total number of tries, default 2
	Attempts int
	// Backoff is the first retry delay, default 200ms
	Backoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Adapter == "" {
		c.Adapter = "rewriter"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Attempts <= 0 {
		c.Attempts = 2
	}
	if c.Backoff <= 0 {
		c.Backoff = 200 * time.Millisecond
	}
	return c
}

// Client is the guarded port the runner calls
type Client struct {
	inner   domain.Port
	cfg     Config
	metrics *metrics.Metrics
}

var _ domain.Port = (*Client)(nil)

// New wraps inner; m may be nil for the default collectors
func New(inner domain.Port, cfg Config, m *metrics.Metrics) *Client {
	if m == nil {
		m = metrics.Default
	}
	return &Client{inner: inner, cfg: cfg.withDefaults(), metrics: m}
}

// Timeout returns the effective per call budget
func (c *Client) Timeout() time.Duration { return c.cfg.Timeout }

// Propose never returns a partial result: either ranked candidates or a
// RewriterUnavailable error
func (c *Client) Propose(ctx context.Context, req domain.Request) ([]candidate.Candidate, error) {
	start := time.Now()

	r := retry.New[[]candidate.Candidate](retry.Config{
		MaxAttempts:   c.cfg.Attempts,
		InitialDelay:  c.cfg.Backoff,
		BackoffPolicy: retry.BackoffExponential,
	})
	t := timeout.New[[]candidate.Candidate](timeout.Config{DefaultTimeout: c.cfg.Timeout})

	cs, err := t.Execute(ctx, c.cfg.Timeout, func(ctx context.Context) ([]candidate.Candidate, error) {
		return r.Do(ctx, func(ctx context.Context) ([]candidate.Candidate, error) {
			return c.inner.Propose(ctx, req)
		})
	})
	if err == nil {
		cs = candidate.Rank(cs, req.K)
		if len(cs) == 0 {
			err = domain.ErrEmpty
		}
	}
	c.metrics.RecordRewrite(c.cfg.Adapter, string(req.Kind), err, time.Since(start))
	if err != nil {
		logger.C(ctx).Warn().Err(err).
			Str("adapter", c.cfg.Adapter).
			Str("kind", string(req.Kind)).
			Dur("elapsed", time.Since(start)).
			Msg("rewriter unavailable")
		return nil, perr.RewriterUnavailable(err, "rewriter "+c.cfg.Adapter)
	}
	return cs, nil
}
