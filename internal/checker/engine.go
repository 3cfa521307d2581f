package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkrover/internal/metrics"
	"github.com/JakeFAU/linkrover/internal/ratelimit"
)

// ErrCancelled is the terminal error carried by the Failed event when a run
// is cut short by its context.
var ErrCancelled = errors.New("run cancelled")

// Engine executes link-check runs. A single Engine value is reusable across
// runs; each Start call owns its own queue, visited set and worker pool.
type Engine struct {
	prober  Prober
	clock   Clock
	logger  *zap.Logger
	sources func(Snapshot) []Source
}

// New constructs an Engine. A nil prober defers to a per-run HTTPProber
// built from the snapshot; a nil clock uses the wall clock.
func New(prober Prober, clock Clock, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		prober:  prober,
		clock:   clock,
		logger:  logger,
		sources: SourcesFromSnapshot,
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// workItem is one probe-able (source, target) pair admitted past dedup.
type workItem struct {
	source     string
	target     string
	normalized string
}

// runState is the per-run shared state; it is never reused across runs.
type runState struct {
	mu      sync.Mutex
	visited map[string]struct{}
	counts  Counts
}

// admit records key in the visited set, reporting whether it was new.
func (s *runState) admit(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.visited[key]; dup {
		return false
	}
	s.visited[key] = struct{}{}
	s.counts.Discovered++
	return true
}

// finish folds a terminal record into the counters and returns a snapshot.
func (s *runState) finish(rec LinkRecord) Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts.Checked++
	switch rec.Status {
	case LinkValid:
		s.counts.Valid++
	case LinkRedirected:
		s.counts.Redirected++
	case LinkBroken:
		s.counts.Broken++
	case LinkSkipped:
		s.counts.Skipped++
	}
	return s.counts
}

func (s *runState) snapshot() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// Start begins a run and returns its event stream. The stream is finite and
// non-restartable: it ends with exactly one Completed or Failed event and is
// then closed. The caller must drain it; event delivery is the engine's
// backpressure toward slow consumers.
func (e *Engine) Start(ctx context.Context, snap Snapshot) <-chan Event {
	out := make(chan Event, 128)
	go e.run(ctx, snap.withDefaults(), out)
	return out
}

func (e *Engine) run(ctx context.Context, snap Snapshot, out chan<- Event) {
	defer close(out)

	started := e.clock.Now()
	sources := e.sources(snap)
	if len(sources) == 0 {
		out <- Event{Kind: EventCompleted, Summary: Summary{Elapsed: e.clock.Now().Sub(started)}}
		return
	}

	prober := e.prober
	if prober == nil {
		prober = NewHTTPProber(snap.ProbeTimeout, snap.UserAgent)
	}
	policy := NewExponentialRetryPolicy(snap.MaxAttempts, snap.BackoffInitial, snap.BackoffMax)
	limiter := ratelimit.New(ratelimit.Config{RPS: float64(snap.HostRPS)})

	// In-flight probes get a grace period after cancellation instead of
	// being torn down mid-request.
	probeCtx, probeCancel := context.WithCancel(context.Background())
	defer probeCancel()
	runDone := make(chan struct{})
	defer close(runDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-runDone:
			return
		}
		timer := time.NewTimer(snap.GracePeriod)
		defer timer.Stop()
		select {
		case <-timer.C:
			probeCancel()
		case <-runDone:
		}
	}()

	state := &runState{visited: make(map[string]struct{})}
	queue := make(chan workItem, snap.QueueDepth)

	var wg sync.WaitGroup
	for i := 0; i < snap.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx, probeCtx, queue, prober, policy, limiter, state, out)
		}()
	}

	srcErrs := e.produce(ctx, sources, state, queue, out)
	close(queue)
	wg.Wait()

	counts := state.snapshot()
	summary := Summary{Counts: counts, Elapsed: e.clock.Now().Sub(started)}
	switch {
	case ctx.Err() != nil:
		out <- Event{Kind: EventFailed, Summary: summary, Counts: counts, Err: ErrCancelled}
	case len(srcErrs) == len(sources) && counts.Discovered == 0:
		out <- Event{Kind: EventFailed, Summary: summary, Counts: counts,
			Err: fmt.Errorf("no entry point reachable: %w", errors.Join(srcErrs...))}
	default:
		out <- Event{Kind: EventCompleted, Summary: summary, Counts: counts}
	}
}

// produce drains every source into the bounded queue, deduplicating targets
// and short-circuiting non-probeable links into Skipped records. The emit
// callback blocks when the queue is full, which suspends discovery until
// workers catch up.
func (e *Engine) produce(
	ctx context.Context,
	sources []Source,
	state *runState,
	queue chan<- workItem,
	out chan<- Event,
) []error {
	emit := func(source, target string) error {
		kind := Classify(target)
		key := target
		var normalized string
		if kind == KindHTTP {
			norm, err := Normalize(target)
			if err != nil {
				kind = KindInvalid
			} else {
				normalized = norm
				key = norm
			}
		}
		if !state.admit(key) {
			return nil
		}

		if kind != KindHTTP {
			rec := LinkRecord{
				Source:        source,
				TargetURL:     target,
				NormalizedURL: key,
				Status:        LinkSkipped,
				Reason:        SkipReason(kind),
				CheckedAt:     e.clock.Now(),
			}
			counts := state.finish(rec)
			out <- Event{Kind: EventDiscovered, Record: &rec}
			out <- Event{Kind: EventProgress, Counts: counts}
			return nil
		}

		select {
		case queue <- workItem{source: source, target: target, normalized: normalized}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var srcErrs []error
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		if err := src.Links(ctx, emit); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			e.logger.Warn("entry point discovery failed",
				zap.String("source", src.Name()), zap.Error(err))
			srcErrs = append(srcErrs, err)
		}
	}
	return srcErrs
}

func (e *Engine) worker(
	ctx context.Context,
	probeCtx context.Context,
	queue <-chan workItem,
	prober Prober,
	policy RetryPolicy,
	limiter *ratelimit.Limiter,
	state *runState,
	out chan<- Event,
) {
	for item := range queue {
		if ctx.Err() != nil {
			// Drain remaining items without checking them; their records
			// are simply absent from the cancelled run.
			continue
		}
		if err := limiter.Wait(ctx, item.normalized); err != nil {
			continue
		}
		metrics.IncActiveWorkers()
		rec, ok := e.checkOne(ctx, probeCtx, item, prober, policy)
		metrics.DecActiveWorkers()
		if !ok {
			continue
		}
		counts := state.finish(rec)
		out <- Event{Kind: EventDiscovered, Record: &rec}
		out <- Event{Kind: EventProgress, Counts: counts}
	}
}

// checkOne probes a single target with retries. It reports ok=false when the
// run was cancelled before the target reached a terminal status.
func (e *Engine) checkOne(
	ctx context.Context,
	probeCtx context.Context,
	item workItem,
	prober Prober,
	policy RetryPolicy,
) (LinkRecord, bool) {
	var res ProbeResult
	attempt := 0
	for {
		attempt++
		res = prober.Probe(probeCtx, item.normalized)
		if res.Err != nil && probeCtx.Err() != nil {
			// Abandoned in-flight past the grace period; no record.
			return LinkRecord{}, false
		}
		if !policy.ShouldRetry(res, attempt) {
			break
		}
		select {
		case <-ctx.Done():
			return LinkRecord{}, false
		case <-time.After(policy.Backoff(attempt)):
		}
	}

	rec := LinkRecord{
		Source:        item.source,
		TargetURL:     item.target,
		NormalizedURL: item.normalized,
		StatusCode:    res.StatusCode,
		CheckedAt:     e.clock.Now(),
		AttemptCount:  attempt,
		Duration:      res.Duration,
	}

	switch {
	case res.Err != nil:
		rec.Status = LinkBroken
		if IsTransient(res) {
			rec.Reason = ReasonRetriesExhausted
		} else {
			rec.Reason = res.Err.Error()
		}
	case res.StatusCode >= 200 && res.StatusCode < 300:
		final := res.FinalURL
		if norm, err := Normalize(final); err == nil {
			final = norm
		}
		if final != "" && final != item.normalized {
			rec.Status = LinkRedirected
			rec.RedirectedTo = res.FinalURL
		} else {
			rec.Status = LinkValid
		}
	case res.StatusCode >= 300 && res.StatusCode < 400:
		// The redirect cap was hit and the last hop was returned as-is.
		rec.Status = LinkBroken
		rec.Reason = ReasonTooManyRedirects
	case res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusGone:
		rec.Status = LinkBroken
		rec.Reason = ReasonNotFound
	case res.StatusCode >= 400 && res.StatusCode < 500:
		rec.Status = LinkBroken
		rec.Reason = ReasonClientError
	default:
		rec.Status = LinkBroken
		rec.Reason = ReasonRetriesExhausted
	}
	return rec, true
}
