package provider

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/rustyorb/auto-chat/model"
)

// RetryPolicy retries transient request failures with exponential backoff.
// The delay before retry k (0-based) is BaseDelay * Multiplier^k, capped at
// MaxDelay. Non-transient failures are returned after a single attempt.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration

	// Sleep waits between attempts. Tests replace it to observe delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Multiplier: 2,
		MaxDelay:   30 * time.Second,
	}
}

// Delay returns the wait before retry number attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	d := float64(p.BaseDelay) * math.Pow(multiplier, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, fails permanently, or exhausts the budget.
// On exhaustion the returned RequestError carries the attempt count plus the
// last status code and body.
func (p RetryPolicy) Do(ctx context.Context, provider string, fn func(ctx context.Context) (string, error)) (string, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return "", exhausted(provider, attempts, lastErr)
			}
			return "", err
		}

		attempts++
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !model.IsRetryable(err) {
			return "", err
		}
		lastErr = err

		if attempt == p.MaxRetries {
			break
		}

		delay := p.Delay(attempt)
		log.Warn().
			Err(err).
			Str("provider", provider).
			Int("attempt", attempts).
			Dur("delay", delay).
			Msg("Transient provider failure, retrying")
		if err := sleep(ctx, delay); err != nil {
			return "", exhausted(provider, attempts, lastErr)
		}
	}

	return "", exhausted(provider, attempts, lastErr)
}

func exhausted(provider string, attempts int, last error) error {
	out := &model.RequestError{Provider: provider, Attempts: attempts, Err: last}
	var reqErr *model.RequestError
	if errors.As(last, &reqErr) {
		out.StatusCode = reqErr.StatusCode
		out.Body = reqErr.Body
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryingProvider applies a RetryPolicy to Generate. Streams are not
// retried: fragments may already have been delivered.
type retryingProvider struct {
	model.Provider
	policy RetryPolicy
}

// WithRetry wraps p with policy. Wrapping an already wrapped provider returns
// it unchanged, so the retry budget is never stacked.
func WithRetry(p model.Provider, policy RetryPolicy) model.Provider {
	if rp, ok := p.(*retryingProvider); ok {
		return rp
	}
	return &retryingProvider{Provider: p, policy: policy}
}

// Unwrap returns the provider beneath a WithRetry wrapper.
func Unwrap(p model.Provider) model.Provider {
	if rp, ok := p.(*retryingProvider); ok {
		return rp.Provider
	}
	return p
}

func (r *retryingProvider) Generate(ctx context.Context, req model.Request) (string, error) {
	return r.policy.Do(ctx, r.Name(), func(ctx context.Context) (string, error) {
		return r.Provider.Generate(ctx, req)
	})
}
