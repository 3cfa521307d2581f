package checker

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"
)

// ExponentialRetryPolicy retries transient probe failures with jittered
// exponential backoff.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds a policy from snapshot parameters,
// falling back to defaults for zero values.
func NewExponentialRetryPolicy(maxAttempts int, base, max time.Duration) *ExponentialRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	if max <= 0 {
		max = 5 * time.Second
	}
	return &ExponentialRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   base,
		maxDelay:    max,
	}
}

// ShouldRetry reports whether another attempt is warranted after the given
// 1-based attempt produced res.
func (p *ExponentialRetryPolicy) ShouldRetry(res ProbeResult, attempt int) bool {
	if attempt >= p.maxAttempts {
		return false
	}
	return IsTransient(res)
}

// Backoff returns the wait before the next attempt (1-based).
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// IsTransient classifies a probe outcome as retryable. Timeouts, resets and
// 5xx-class (plus 429) responses are expected to clear on retry; 4xx
// responses and run cancellation are not.
func IsTransient(res ProbeResult) bool {
	if res.Err != nil {
		// Per-request client timeouts match context.DeadlineExceeded since
		// Go 1.16, so the timeout check has to come first.
		var netErr net.Error
		if errors.As(res.Err, &netErr) && netErr.Timeout() {
			return true
		}
		if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
			return false
		}
		// Connection resets, EOFs and DNS hiccups all surface as transport
		// errors here; malformed targets never reach the prober.
		return true
	}
	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return true
	case res.StatusCode >= 500 && res.StatusCode < 600:
		return true
	default:
		return false
	}
}
