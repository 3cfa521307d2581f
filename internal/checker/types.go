// Package checker implements the link validation engine: entry-point
// discovery, deduplicated probing with bounded concurrency, and the event
// stream a run emits while it executes.
package checker

import (
	"time"
)

// LinkStatus is the terminal classification of a single checked link.
type LinkStatus string

// Link statuses recorded per target. A record starts Pending and moves to
// exactly one terminal status within a run.
const (
	LinkPending    LinkStatus = "pending"
	LinkValid      LinkStatus = "valid"
	LinkRedirected LinkStatus = "redirected"
	LinkBroken     LinkStatus = "broken"
	LinkSkipped    LinkStatus = "skipped"
)

// Skip and breakage reasons surfaced in records and reports.
const (
	ReasonInvalidURL        = "invalid_url"
	ReasonMailto            = "mailto"
	ReasonLocalFile         = "local_file"
	ReasonUnsupportedScheme = "unsupported_scheme"
	ReasonNotFound          = "not_found"
	ReasonClientError       = "client_error"
	ReasonRetriesExhausted  = "retries_exhausted"
	ReasonTooManyRedirects  = "too_many_redirects"
)

// LinkRecord is the outcome of checking one deduplicated target URL.
type LinkRecord struct {
	// Source is the entry point or page the target was discovered on.
	Source string `json:"source"`
	// TargetURL is the link as written at the source.
	TargetURL string `json:"target_url"`
	// NormalizedURL is the canonical form used as the dedup key.
	NormalizedURL string     `json:"normalized_url"`
	Status        LinkStatus `json:"status"`
	// Reason qualifies Broken and Skipped statuses.
	Reason string `json:"reason,omitempty"`
	// RedirectedTo holds the final URL when Status is redirected.
	RedirectedTo string        `json:"redirected_to,omitempty"`
	StatusCode   int           `json:"status_code,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
	AttemptCount int           `json:"attempt_count"`
	Duration     time.Duration `json:"duration_ms"`
}

// RunStatus is the lifecycle state of a check run.
type RunStatus string

// Run statuses tracked by the controller and persisted to run stores.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// CheckRun accumulates the records of a single engine execution. It is owned
// by the controller while running and shared read-only afterwards.
type CheckRun struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Status     RunStatus    `json:"status"`
	ErrorText  string       `json:"error_text,omitempty"`
	Records    []LinkRecord `json:"records"`
}

// Counts tracks per-run progress totals.
type Counts struct {
	Discovered int `json:"discovered"`
	Checked    int `json:"checked"`
	Valid      int `json:"valid"`
	Redirected int `json:"redirected"`
	Broken     int `json:"broken"`
	Skipped    int `json:"skipped"`
}

// Summary is the terminal accounting of a run.
type Summary struct {
	Counts
	Elapsed time.Duration `json:"elapsed_ms"`
}

// Summary derives the terminal accounting of the run from its records. For a
// run still in flight the elapsed time is zero.
func (r CheckRun) Summary() Summary {
	var s Summary
	for _, rec := range r.Records {
		s.Discovered++
		if rec.Status == LinkPending {
			continue
		}
		s.Checked++
		switch rec.Status {
		case LinkValid:
			s.Valid++
		case LinkRedirected:
			s.Redirected++
		case LinkBroken:
			s.Broken++
		case LinkSkipped:
			s.Skipped++
		}
	}
	if r.FinishedAt != nil {
		s.Elapsed = r.FinishedAt.Sub(r.StartedAt)
	}
	return s
}

// EventKind discriminates engine stream events.
type EventKind string

// Event kinds emitted on the run stream. Discovered carries the finished
// record for a target and is emitted at most once per normalized URL;
// Completed or Failed is always the final event before the channel closes.
const (
	EventDiscovered EventKind = "discovered"
	EventProgress   EventKind = "progress"
	EventCompleted  EventKind = "completed"
	EventFailed     EventKind = "failed"
)

// Event is one element of the finite stream produced by Engine.Start.
type Event struct {
	Kind    EventKind
	Record  *LinkRecord
	Counts  Counts
	Summary Summary
	Err     error
}

// Snapshot is the engine-facing view of the configuration store, captured
// once when a run starts so concurrent config edits cannot skew a run.
type Snapshot struct {
	EntryURLs []string
	ScanPages []string
	PDFPath   string
	PDFURL    string

	UserAgent      string
	Workers        int
	QueueDepth     int
	ProbeTimeout   time.Duration
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	GracePeriod    time.Duration
	// HostRPS caps probe requests per second against a single host.
	// Zero means unlimited.
	HostRPS int
}

// sane floor values applied when a snapshot carries zeros.
const (
	defaultWorkers      = 4
	defaultQueueDepth   = 64
	defaultMaxAttempts  = 3
	defaultProbeTimeout = 15 * time.Second
	defaultGracePeriod  = 5 * time.Second
)

func (s Snapshot) withDefaults() Snapshot {
	if s.Workers <= 0 {
		s.Workers = defaultWorkers
	}
	if s.QueueDepth <= 0 {
		s.QueueDepth = defaultQueueDepth
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = defaultMaxAttempts
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = defaultProbeTimeout
	}
	if s.GracePeriod <= 0 {
		s.GracePeriod = defaultGracePeriod
	}
	return s
}

// HasSources reports whether the snapshot configures any entry points.
func (s Snapshot) HasSources() bool {
	return len(s.EntryURLs) > 0 || len(s.ScanPages) > 0 || s.PDFPath != "" || s.PDFURL != ""
}
