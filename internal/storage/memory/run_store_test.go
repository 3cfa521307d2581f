package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkrover/internal/checker"
	"github.com/JakeFAU/linkrover/internal/storage"
)

func TestRunStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewRunStore()
	finished := time.Now().UTC()
	run := checker.CheckRun{
		ID:         "run-1",
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: &finished,
		Status:     checker.RunCompleted,
		Records: []checker.LinkRecord{
			{TargetURL: "https://example.com", Status: checker.LinkValid, StatusCode: 200},
		},
	}
	require.NoError(t, store.SaveRun(context.Background(), run))

	got, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, run.Status, got.Status)
	require.Len(t, got.Records, 1)

	// Mutating the returned slice must not affect the stored run.
	got.Records[0].Status = checker.LinkBroken
	again, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, checker.LinkValid, again.Records[0].Status)
}

func TestRunStoreNotFound(t *testing.T) {
	t.Parallel()

	store := NewRunStore()
	_, err := store.GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestRunStoreReplace(t *testing.T) {
	t.Parallel()

	store := NewRunStore()
	run := checker.CheckRun{ID: "run-1", Status: checker.RunCancelled}
	require.NoError(t, store.SaveRun(context.Background(), run))

	run.Status = checker.RunCompleted
	require.NoError(t, store.SaveRun(context.Background(), run))

	got, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, checker.RunCompleted, got.Status)
}
