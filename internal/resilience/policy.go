// Package resilience wraps calls to external adapters with rate limiting,
// per-attempt timeouts and bounded retry on transient failures.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"
)

const (
	baseDelay = 200 * time.Millisecond
	maxDelay  = 5 * time.Second
)

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Config holds the tunables for a Policy. Zero values disable the matching
// behaviour.
type Config struct {
	MaxRetries        int
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Policy is safe for concurrent use.
type Policy struct {
	maxRetries int
	timeout    time.Duration
	limiter    *rate.Limiter
	sleep      func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Policy {
	p := &Policy{
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		sleep:      sleepCtx,
	}
	if p.maxRetries < 0 {
		p.maxRetries = 0
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return p
}

// Do runs fn until it succeeds, returns a non-transient error, or the retry
// budget is spent. A nil Policy runs fn once.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if p == nil {
		return fn(ctx)
	}
	var err error
	for attempt := 0; ; attempt++ {
		if p.limiter != nil {
			if werr := p.limiter.Wait(ctx); werr != nil {
				return fmt.Errorf("resilience: %s: rate limit wait: %w", op, werr)
			}
		}
		err = p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !Retryable(err) || attempt >= p.maxRetries {
			return err
		}
		if serr := p.sleep(ctx, retryDelay(attempt)); serr != nil {
			return err
		}
	}
}

func (p *Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return fn(attemptCtx)
}

// Retryable reports whether err is worth another attempt: throttling, server
// errors, timeouts and network failures.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var sc httpStatusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatusCode()
		return code == 429 || code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		attempt = 16
	}
	// exponential backoff capped at maxDelay
	d := baseDelay << attempt
	if d <= 0 || d > maxDelay {
		d = maxDelay
	}
	return d
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
