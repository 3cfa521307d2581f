// Package progress defines the event structures emitted during link-check runs.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunHB       Stage = "RUN_HEARTBEAT"
	StageRunDone     Stage = "RUN_DONE"
	StageRunError    Stage = "RUN_ERROR"
	StageLinkChecked Stage = "LINK_CHECKED"
)

// Event captures a single milestone of link-check progress.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or link milestone occurred.
	Stage Stage
	// URL is the checked target for link events; it should not contain credentials.
	URL string
	// Status carries the terminal link status for LINK_CHECKED events.
	Status string
	// StatusCode is the last observed HTTP status, zero when none was received.
	StatusCode int
	// Checked and Discovered carry cumulative counters for heartbeat events.
	Checked    int64
	Discovered int64
	// Dur captures probe latency for link events and wall time for run completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunHB, StageRunDone, StageRunError:
	case StageLinkChecked:
		if e.URL == "" {
			return errors.New("link event requires url")
		}
		if e.Status == "" {
			return errors.New("link event requires status")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
