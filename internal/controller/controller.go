// Package controller owns the lifecycle of link-check runs. It enforces the
// single-flight rule, consumes the engine event stream, and fans results out
// to progress sinks, run stores, report artifacts, and notification channels.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrover/internal/checker"
	"github.com/JakeFAU/linkrover/internal/progress"
	"github.com/JakeFAU/linkrover/internal/publisher"
	"github.com/JakeFAU/linkrover/internal/report"
	"github.com/JakeFAU/linkrover/internal/storage"
)

// Sentinel errors returned by run lifecycle operations.
var (
	ErrAlreadyRunning = errors.New("a check run is already in progress")
	ErrUnknownRun     = errors.New("run is unknown")
)

const heartbeatInterval = 5 * time.Second

// Engine starts a check run and produces a finite event stream.
type Engine interface {
	Start(ctx context.Context, snap checker.Snapshot) <-chan checker.Event
}

// ConfigSource supplies the settings captured at the start of each run.
type ConfigSource interface {
	Snapshot() checker.Snapshot
	KeepLocalRecords() bool
	GenerateReport() bool
}

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Options carries the optional collaborators for a Controller. Any nil field
// disables the corresponding output.
type Options struct {
	Runs      storage.RunStore
	Reports   *report.Writer
	Publisher publisher.Publisher
	Topic     string
	Emitter   progress.Emitter
	Clock     Clock
	IDs       IDGenerator
	Logger    *zap.Logger
}

// Status is a point-in-time view of the controller.
type Status struct {
	Running   bool           `json:"running"`
	RunID     string         `json:"run_id,omitempty"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
	Counts    checker.Counts `json:"counts"`
	LastRun   *RunResult     `json:"last_run,omitempty"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID     string            `json:"run_id"`
	Status    checker.RunStatus `json:"status"`
	Counts    checker.Counts    `json:"counts"`
	Elapsed   time.Duration     `json:"elapsed_ms"`
	Artifacts report.Artifacts  `json:"artifacts,omitempty"`
	ErrorText string            `json:"error_text,omitempty"`
}

type runHandle struct {
	id        string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	mu     sync.Mutex
	counts checker.Counts
}

// Controller coordinates at most one run at a time.
type Controller struct {
	engine Engine
	cfg    ConfigSource
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	current  *runHandle
	last     *checker.CheckRun
	lastMeta *RunResult
}

// New constructs a Controller. The engine and config source are required.
func New(engine Engine, cfg ConfigSource, opts Options) (*Controller, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg == nil {
		return nil, errors.New("config source is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		engine: engine,
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger,
	}, nil
}

// RequestRun starts a new check run if none is active. It returns the new run
// ID, or ErrAlreadyRunning while another run holds the slot. The provided
// context scopes the request only; the run itself detaches from it.
func (c *Controller) RequestRun(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return "", ErrAlreadyRunning
	}

	id, err := c.newRunID()
	if err != nil {
		return "", fmt.Errorf("mint run id: %w", err)
	}
	snap := c.cfg.Snapshot()

	runCtx, cancel := context.WithCancel(context.Background())
	handle := &runHandle{
		id:        id,
		startedAt: c.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.current = handle

	events := c.engine.Start(runCtx, snap)
	go c.consume(handle, events)

	c.logger.Info("check run started", zap.String("run_id", id))
	return id, nil
}

// Cancel requests cancellation of the run with the given ID. Cancelling an
// unknown or finished run is a no-op, not an error; a stale cancel must
// never abort a newer run.
func (c *Controller) Cancel(runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.id != runID {
		return nil
	}
	c.logger.Info("check run cancellation requested", zap.String("run_id", runID))
	c.current.cancel()
	return nil
}

// Status reports whether a run is active along with its live counters.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{LastRun: c.lastMeta}
	if c.current != nil {
		st.Running = true
		st.RunID = c.current.id
		started := c.current.startedAt
		st.StartedAt = &started
		st.Counts = c.current.snapshotCounts()
	}
	return st
}

// LastRun returns the most recent terminal run record.
func (c *Controller) LastRun() (checker.CheckRun, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return checker.CheckRun{}, false
	}
	run := *c.last
	run.Records = append([]checker.LinkRecord(nil), c.last.Records...)
	return run, true
}

// Wait blocks until the run with the given ID reaches a terminal state or ctx
// expires. It returns the terminal run record.
func (c *Controller) Wait(ctx context.Context, runID string) (checker.CheckRun, error) {
	c.mu.Lock()
	handle := c.current
	c.mu.Unlock()

	if handle != nil && handle.id == runID {
		select {
		case <-handle.done:
		case <-ctx.Done():
			return checker.CheckRun{}, fmt.Errorf("wait for run %s: %w", runID, ctx.Err())
		}
	}

	run, ok := c.LastRun()
	if !ok || run.ID != runID {
		return checker.CheckRun{}, ErrUnknownRun
	}
	return run, nil
}

func (c *Controller) consume(handle *runHandle, events <-chan checker.Event) {
	run := checker.CheckRun{
		ID:        handle.id,
		StartedAt: handle.startedAt,
		Status:    checker.RunRunning,
	}
	c.emitRunStart(handle)

	lastHeartbeat := handle.startedAt
	var terminal checker.Event
	for evt := range events {
		switch evt.Kind {
		case checker.EventDiscovered:
			if evt.Record != nil {
				run.Records = append(run.Records, *evt.Record)
				c.emitLinkChecked(handle, *evt.Record)
			}
		case checker.EventProgress:
			handle.setCounts(evt.Counts)
			if now := c.now(); now.Sub(lastHeartbeat) >= heartbeatInterval {
				lastHeartbeat = now
				c.emitHeartbeat(handle, evt.Counts)
			}
		case checker.EventCompleted, checker.EventFailed:
			terminal = evt
		}
	}

	finished := c.now()
	run.FinishedAt = &finished
	handle.setCounts(terminal.Summary.Counts)

	switch {
	case terminal.Kind == checker.EventCompleted:
		run.Status = checker.RunCompleted
	case errors.Is(terminal.Err, checker.ErrCancelled):
		run.Status = checker.RunCancelled
		run.ErrorText = terminal.Err.Error()
	default:
		run.Status = checker.RunFailed
		if terminal.Err != nil {
			run.ErrorText = terminal.Err.Error()
		} else {
			run.ErrorText = "run ended without a terminal event"
		}
	}

	meta := c.finalize(&run, terminal.Summary)
	c.emitTerminal(handle, run, terminal.Summary)

	c.mu.Lock()
	c.last = &run
	c.lastMeta = &meta
	c.current = nil
	c.mu.Unlock()
	close(handle.done)

	c.logger.Info("check run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("checked", terminal.Summary.Checked),
		zap.Int("broken", terminal.Summary.Broken),
		zap.Duration("elapsed", terminal.Summary.Elapsed),
	)
}

// finalize persists the run, writes report artifacts, and publishes the
// completion notification. Failures here are logged but never alter the run
// outcome.
func (c *Controller) finalize(run *checker.CheckRun, summary checker.Summary) RunResult {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	meta := RunResult{
		RunID:     run.ID,
		Status:    run.Status,
		Counts:    summary.Counts,
		Elapsed:   summary.Elapsed,
		ErrorText: run.ErrorText,
	}

	if c.opts.Runs != nil && c.cfg.KeepLocalRecords() {
		if err := c.opts.Runs.SaveRun(ctx, *run); err != nil {
			c.logger.Warn("persist run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	if c.opts.Reports != nil && c.cfg.GenerateReport() {
		artifacts, err := c.opts.Reports.Write(ctx, report.Generate(*run))
		if err != nil {
			c.logger.Warn("write report artifacts failed", zap.String("run_id", run.ID), zap.Error(err))
		} else {
			meta.Artifacts = artifacts
		}
	}

	if c.opts.Publisher != nil {
		note := publisher.RunNotification{
			RunID:      run.ID,
			Status:     string(run.Status),
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
			Checked:    int64(summary.Checked),
			Broken:     int64(summary.Broken),
			ReportURI:  meta.Artifacts.HTMLURI,
			ErrorText:  run.ErrorText,
		}
		if _, err := c.opts.Publisher.Publish(ctx, c.opts.Topic, note); err != nil {
			c.logger.Warn("publish run notification failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return meta
}

func (c *Controller) emitRunStart(handle *runHandle) {
	if c.opts.Emitter == nil {
		return
	}
	c.opts.Emitter.Emit(progress.Event{
		RunID: runIDBytes(handle.id),
		TS:    c.now(),
		Stage: progress.StageRunStart,
	})
}

func (c *Controller) emitLinkChecked(handle *runHandle, rec checker.LinkRecord) {
	if c.opts.Emitter == nil {
		return
	}
	c.opts.Emitter.Emit(progress.Event{
		RunID:      runIDBytes(handle.id),
		TS:         c.now(),
		Stage:      progress.StageLinkChecked,
		URL:        rec.TargetURL,
		Status:     string(rec.Status),
		StatusCode: rec.StatusCode,
		Dur:        rec.Duration,
		Note:       rec.Reason,
	})
}

func (c *Controller) emitHeartbeat(handle *runHandle, counts checker.Counts) {
	if c.opts.Emitter == nil {
		return
	}
	c.opts.Emitter.Emit(progress.Event{
		RunID:      runIDBytes(handle.id),
		TS:         c.now(),
		Stage:      progress.StageRunHB,
		Checked:    int64(counts.Checked),
		Discovered: int64(counts.Discovered),
	})
}

func (c *Controller) emitTerminal(handle *runHandle, run checker.CheckRun, summary checker.Summary) {
	if c.opts.Emitter == nil {
		return
	}
	evt := progress.Event{
		RunID:      runIDBytes(handle.id),
		TS:         c.now(),
		Checked:    int64(summary.Checked),
		Discovered: int64(summary.Discovered),
		Dur:        summary.Elapsed,
	}
	if run.Status == checker.RunCompleted {
		evt.Stage = progress.StageRunDone
	} else {
		evt.Stage = progress.StageRunError
		evt.Note = run.ErrorText
	}
	c.opts.Emitter.Emit(evt)
}

func (c *Controller) newRunID() (string, error) {
	if c.opts.IDs != nil {
		return c.opts.IDs.NewID()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (c *Controller) now() time.Time {
	if c.opts.Clock != nil {
		return c.opts.Clock.Now()
	}
	return time.Now().UTC()
}

func (h *runHandle) setCounts(counts checker.Counts) {
	h.mu.Lock()
	h.counts = counts
	h.mu.Unlock()
}

func (h *runHandle) snapshotCounts() checker.Counts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts
}

func runIDBytes(id string) [16]byte {
	parsed, err := uuid.Parse(id)
	if err != nil {
		// Non-UUID run IDs still need a stable event key.
		var out [16]byte
		copy(out[:], id)
		return out
	}
	return progress.UUIDToBytes(parsed)
}
