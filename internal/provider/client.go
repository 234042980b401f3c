package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/mjholt/reviewgate/pkg/logger"
)

// Options bounds a metered client.
type Options struct {
	// RequestsPerMinute caps the aggregate outgoing call rate to the
	// provider, shared across all concurrent analyzers in a review.
	RequestsPerMinute int
	Burst             int

	// MaxRetries is the retry ceiling for retryable failures.
	MaxRetries int

	// BaseBackoff is the first retry delay; each attempt doubles it, capped
	// at MaxBackoff and jittered.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit for the rest of the review.
	BreakerThreshold int
}

// MeteredClient wraps a Transport with rate limiting, retry with exponential
// backoff, circuit breaking and per-call cost computation. The limiter is
// shared across every call the client makes; the breaker is scoped to one
// review, so construct one MeteredClient per review run.
type MeteredClient struct {
	transport Transport
	limiter   *rate.Limiter
	breaker   *Breaker
	prices    PriceTable
	opts      Options
	logger    logger.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewMeteredClient builds a metered client around a transport.
func NewMeteredClient(transport Transport, prices PriceTable, opts Options, log logger.Logger) *MeteredClient {
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 50
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &MeteredClient{
		transport: transport,
		limiter:   rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), opts.Burst),
		breaker:   NewBreaker(opts.BreakerThreshold),
		prices:    prices,
		opts:      opts,
		logger:    log,
		sleep:     sleepCtx,
	}
}

// Provider returns the underlying transport's provider name.
func (c *MeteredClient) Provider() string {
	return c.transport.Provider()
}

// Breaker exposes the circuit breaker, mainly for tests and diagnostics.
func (c *MeteredClient) Breaker() *Breaker {
	return c.breaker
}

// Complete performs a completion with rate limiting, bounded retries and
// circuit breaking. On success the returned completion carries the computed
// cost record.
func (c *MeteredClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	prov := c.transport.Provider()

	if !c.breaker.Allow() {
		return nil, &TransientError{
			Provider: prov,
			Err:      fmt.Errorf("circuit open after %d consecutive failures", c.opts.BreakerThreshold),
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt, lastErr)
			c.logger.Debug("Retrying provider call",
				"provider", prov, "attempt", attempt, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			// Context cancelled or deadline exceeded while queued.
			return nil, err
		}

		completion, err := c.transport.Complete(ctx, req)
		if err == nil {
			c.breaker.RecordSuccess()
			completion.Cost = c.prices.Cost(prov, completion.Model, completion.Usage)
			if completion.Cost.AmountUSD == 0 && (completion.Usage.InputTokens > 0 || completion.Usage.OutputTokens > 0) {
				c.logger.Debug("No price entry for model", "provider", prov, "model", completion.Model)
			}
			c.logger.Debug("Provider call complete",
				"provider", prov,
				"model", completion.Model,
				"input_tokens", completion.Usage.InputTokens,
				"output_tokens", completion.Usage.OutputTokens,
				"cost_usd", completion.Cost.AmountUSD)
			return completion, nil
		}

		lastErr = err

		var authErr *AuthError
		if errors.As(err, &authErr) {
			// Fatal to the calling analyzer; not a breaker event since
			// retrying other calls with the same credentials cannot help.
			return nil, err
		}

		c.breaker.RecordFailure()

		if !IsRetryable(err) {
			return nil, err
		}
		if c.breaker.Open() {
			c.logger.Warn("Circuit breaker opened", "provider", prov)
			return nil, err
		}
	}

	return nil, fmt.Errorf("%s: retries exhausted: %w", prov, lastErr)
}

// backoff computes the delay before the given attempt. A provider-specified
// retry-after wins over the exponential schedule.
func (c *MeteredClient) backoff(attempt int, lastErr error) time.Duration {
	if after := RetryAfterOf(lastErr); after > 0 {
		return after
	}

	// Doubling stops at the cap so high attempt counts cannot overflow.
	delay := c.opts.BaseBackoff
	for i := 1; i < attempt && delay < c.opts.MaxBackoff; i++ {
		delay *= 2
	}
	if delay > c.opts.MaxBackoff {
		delay = c.opts.MaxBackoff
	}

	// Full jitter keeps concurrent analyzers from retrying in lockstep.
	jittered := time.Duration(rand.Int63n(int64(delay)) + int64(delay)/2) //nolint:gosec // Jitter, not crypto.
	if jittered > c.opts.MaxBackoff {
		jittered = c.opts.MaxBackoff
	}
	return jittered
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
