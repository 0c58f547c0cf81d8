package llm

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Sustained token budget for the LLM API, kept under the provider's
	// published per-minute limit to leave safety margin.
	tokensPerSecond = 30000
	burstTokens     = 60000

	// Conservative token estimates per request type, covering both input
	// and structured JSON output.
	estimatedTokensPerPage  = 2000
	estimatedTokensPerChunk = 1500

	maxRetries     = 5
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 32 * time.Second
)

// apiRateLimiter is shared by every LLM call so concurrent pipelines stay
// inside one budget.
var apiRateLimiter = rate.NewLimiter(rate.Limit(tokensPerSecond), burstTokens)

// RateLimitedCall waits for rate limiter approval, runs fn, and retries with
// exponential backoff when the provider answers with a 429.
func RateLimitedCall[T any](ctx context.Context, estimatedTokens int, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if err := apiRateLimiter.WaitN(ctx, estimatedTokens); err != nil {
		return zero, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(baseRetryDelay) * math.Pow(2, float64(attempt-1)))
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}

			log.Printf("LLM retry attempt %d/%d after %v delay", attempt, maxRetries, delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRateLimitError(err) {
			return zero, err
		}

		log.Printf("LLM rate limit hit on attempt %d/%d: %v", attempt+1, maxRetries+1, err)
	}

	return zero, fmt.Errorf("max retries (%d) exceeded, last error: %w", maxRetries, lastErr)
}

// isRateLimitError reports whether err looks like a 429 from the provider.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, marker := range []string{"429", "rate limit", "rate_limit_exceeded", "Too Many Requests"} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
