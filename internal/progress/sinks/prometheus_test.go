package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkrover/internal/progress"
)

func runEvent(id uuid.UUID, stage progress.Stage) progress.Event {
	return progress.Event{
		RunID: progress.UUIDToBytes(id),
		TS:    time.Now(),
		Stage: stage,
		Dur:   2 * time.Second,
	}
}

func TestPrometheusSinkRunLifecycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	id := uuid.New()
	batch := []progress.Event{
		runEvent(id, progress.StageRunStart),
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsRunning))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		runEvent(id, progress.StageRunDone),
	}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
}

func TestPrometheusSinkRunError(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	id := uuid.New()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		runEvent(id, progress.StageRunStart),
		runEvent(id, progress.StageRunError),
	}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
}

func TestPrometheusSinkLinkCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	id := uuid.New()
	batch := []progress.Event{
		{
			RunID:      progress.UUIDToBytes(id),
			TS:         time.Now(),
			Stage:      progress.StageLinkChecked,
			URL:        "https://example.com/a",
			Status:     "valid",
			StatusCode: 200,
			Dur:        120 * time.Millisecond,
		},
		{
			RunID:      progress.UUIDToBytes(id),
			TS:         time.Now(),
			Stage:      progress.StageLinkChecked,
			URL:        "https://example.com/b",
			Status:     "broken",
			StatusCode: 404,
			Dur:        80 * time.Millisecond,
		},
		{
			RunID:      progress.UUIDToBytes(id),
			TS:         time.Now(),
			Stage:      progress.StageLinkChecked,
			URL:        "https://example.com/c",
			Status:     "valid",
			StatusCode: 200,
			Dur:        90 * time.Millisecond,
		},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.linksChecked.WithLabelValues("valid")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.linksChecked.WithLabelValues("broken")))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
