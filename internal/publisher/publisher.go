// Package publisher defines the interface for run completion notifications.
package publisher

import (
	"context"
	"time"
)

// Publisher delivers run notifications to an external channel such as Pub/Sub.
type Publisher interface {
	// Publish marshals the payload and delivers it to the topic, returning
	// the backend message ID.
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RunNotification is the payload published when a run reaches a terminal
// state.
type RunNotification struct {
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Checked    int64      `json:"checked"`
	Broken     int64      `json:"broken"`
	ReportURI  string     `json:"report_uri,omitempty"`
	ErrorText  string     `json:"error_text,omitempty"`
}
