package sinks

import (
	"context"
	"fmt"

	"github.com/JakeFAU/linkrover/internal/progress"
)

// AuditLogger appends human-readable lines to a durable activity log. The
// configuration store satisfies this interface.
type AuditLogger interface {
	AppendLog(line string)
}

// AuditSink records run lifecycle milestones in the activity log. Link-level
// events are intentionally skipped to keep the log readable for large runs.
type AuditSink struct {
	audit AuditLogger
}

// NewAuditSink constructs an AuditSink backed by the provided logger.
func NewAuditSink(audit AuditLogger) *AuditSink {
	return &AuditSink{audit: audit}
}

// Consume appends one line per run lifecycle event in the batch.
func (s *AuditSink) Consume(_ context.Context, batch []progress.Event) error {
	if s == nil || s.audit == nil {
		return nil
	}
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.audit.AppendLog(fmt.Sprintf("run %s started", evt.RunUUID()))
		case progress.StageRunDone:
			s.audit.AppendLog(fmt.Sprintf("run %s completed: %d links checked in %s", evt.RunUUID(), evt.Checked, evt.Dur.Round(0)))
		case progress.StageRunError:
			note := evt.Note
			if note == "" {
				note = "unknown error"
			}
			s.audit.AppendLog(fmt.Sprintf("run %s failed: %s", evt.RunUUID(), note))
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *AuditSink) Close(context.Context) error {
	return nil
}
