package providers

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/EanHD/kai/internal/llm"
)

// The orchestration kernel never retries; connector bindings may.
// classifyError decides whether a provider failure is worth another
// attempt before it is surfaced as a structural failure.

// RetryPolicy defines retry behavior for provider calls.
type RetryPolicy struct {
	MaxRetries   int           // Maximum number of retry attempts (0 = no retries)
	InitialDelay time.Duration // Delay before first retry
	MaxDelay     time.Duration // Delay cap
	Multiplier   float64       // Exponential backoff multiplier
	Jitter       bool          // Add random jitter to delays
}

// DefaultRetryPolicy is the per-connector default.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// classifyError wraps a provider error with retriability metadata.
func classifyError(err error) *llm.TransportError {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())

	// Rate limits: retryable with backoff
	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") {
		return &llm.TransportError{Err: err, RateLimit: true, Retryable: true}
	}

	// Server-side failures: retryable
	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") {
		return &llm.TransportError{Err: err, Retryable: true}
	}

	// Network trouble: retryable
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "temporary failure") {
		return &llm.TransportError{Err: err, Retryable: true}
	}

	// Auth and schema errors: never retry
	return &llm.TransportError{Err: err, Retryable: false}
}

// withRetry runs fn under the policy, backing off between retryable
// failures. The returned error is always a classified TransportError.
func withRetry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		classified := classifyError(err)
		if !classified.Retryable || attempt >= policy.MaxRetries {
			return zero, classified
		}

		delay := backoffDelay(policy, attempt)
		select {
		case <-ctx.Done():
			return zero, &llm.TransportError{Err: ctx.Err(), Retryable: false}
		case <-time.After(delay):
		}
	}
}

func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	delay := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt))
	if max := float64(policy.MaxDelay); delay > max {
		delay = max
	}
	if policy.Jitter {
		delay *= 0.5 + rand.Float64()/2
	}
	return time.Duration(delay)
}
