package checker

import (
	"context"
	"time"
)

// Prober performs the reachability check for a single target URL.
type Prober interface {
	Probe(ctx context.Context, target string) ProbeResult
}

// ProbeResult is the raw outcome of one probe attempt.
type ProbeResult struct {
	StatusCode int
	// FinalURL is the URL after any followed redirects.
	FinalURL string
	Duration time.Duration
	Err      error
}

// RetryPolicy decides whether a failed probe attempt should be retried and
// how long to wait before the next attempt.
type RetryPolicy interface {
	ShouldRetry(res ProbeResult, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock returns the current time (swappable for tests).
type Clock interface {
	Now() time.Time
}

// Source streams (source_location, target_url) pairs from one configured
// entry point. Emit blocks while the engine's work queue is full, which is
// what bounds memory on large link sets; it returns the context error when
// the run is cancelled mid-discovery.
type Source interface {
	Name() string
	Links(ctx context.Context, emit func(source, target string) error) error
}
