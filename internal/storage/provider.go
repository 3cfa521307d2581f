// Package storage defines the persistence interfaces for link-check results.
// The abstractions keep the controller independent of a specific backend
// (e.g. Google Cloud Storage, Postgres, or the local filesystem).
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/JakeFAU/linkrover/internal/checker"
)

// ErrRunNotFound is returned by RunStore lookups for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// BlobStore writes report artifacts to a blob backend and returns the URI of
// the stored object.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RunStore persists completed check runs, including their link records.
type RunStore interface {
	// SaveRun stores a terminal run. Saving the same run ID twice replaces
	// the earlier row.
	SaveRun(ctx context.Context, run checker.CheckRun) error
	// GetRun fetches a run by ID, returning ErrRunNotFound when absent.
	GetRun(ctx context.Context, id string) (checker.CheckRun, error)
}

// NoOpBlobStore discards artifacts. It is useful for dry runs where reports
// are generated but not persisted.
type NoOpBlobStore struct{}

// PutObject drains the reader and returns an empty URI.
func (NoOpBlobStore) PutObject(_ context.Context, _ string, _ string, data io.Reader) (string, error) {
	if data != nil {
		if _, err := io.Copy(io.Discard, data); err != nil {
			return "", err
		}
	}
	return "", nil
}
