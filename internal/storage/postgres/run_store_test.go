package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkrover/internal/checker"
	"github.com/JakeFAU/linkrover/internal/storage"
)

func TestSaveRunUpsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "check_runs")
	require.NoError(t, err)

	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(42 * time.Second)
	run := checker.CheckRun{
		ID:         "0d7e9a10-65ab-4a40-9e5c-0a9fda1b9f01",
		StartedAt:  started,
		FinishedAt: &finished,
		Status:     checker.RunCompleted,
		Records: []checker.LinkRecord{
			{TargetURL: "https://example.com", Status: checker.LinkValid, StatusCode: 200},
		},
	}
	recordsJSON, err := json.Marshal(run.Records)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO check_runs").
		WithArgs(
			run.ID,
			run.StartedAt,
			run.FinishedAt,
			string(run.Status),
			run.ErrorText,
			recordsJSON,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.SaveRun(context.Background(), run)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "")
	require.NoError(t, err)

	err = store.SaveRun(context.Background(), checker.CheckRun{})
	require.ErrorContains(t, err, "run id is required")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunScansRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "check_runs")
	require.NoError(t, err)

	started := time.Unix(1700000000, 0).UTC()
	records := []checker.LinkRecord{
		{TargetURL: "https://example.com/a", Status: checker.LinkBroken, Reason: "not found", StatusCode: 404},
	}
	recordsJSON, err := json.Marshal(records)
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"id", "started_at", "finished_at", "status", "error_text", "records"}).
		AddRow("run-1", started, (*time.Time)(nil), "failed", "cancelled by operator", recordsJSON)
	mock.ExpectQuery("SELECT id, started_at, finished_at, status, error_text, records").
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, checker.RunFailed, run.Status)
	require.Equal(t, "cancelled by operator", run.ErrorText)
	require.Len(t, run.Records, 1)
	require.Equal(t, 404, run.Records[0].StatusCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "check_runs")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, started_at, finished_at, status, error_text, records").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "started_at", "finished_at", "status", "error_text", "records"}))

	_, err = store.GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrRunNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRunStoreWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRunStoreWithPool(mock, "bad;table")
	require.ErrorContains(t, err, "invalid table name")
}
