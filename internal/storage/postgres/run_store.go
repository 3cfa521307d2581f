// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/linkrover/internal/checker"
	"github.com/JakeFAU/linkrover/internal/storage"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RunStoreConfig controls the Postgres connection pool used for run rows.
type RunStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// RunStore writes check runs into Postgres. Link records are stored as a JSONB
// column alongside the run row.
type RunStore struct {
	pool  pgxPool
	table string
}

// NewRunStore creates a Postgres-backed RunStore using the provided config.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "check_runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{
		pool:  pool,
		table: table,
	}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool pgxPool, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "check_runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveRun upserts a run row. Saving the same run ID twice replaces the earlier
// row.
func (s *RunStore) SaveRun(ctx context.Context, run checker.CheckRun) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("run store is not configured")
	}
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	recordsJSON, err := json.Marshal(run.Records)
	if err != nil {
		return fmt.Errorf("marshal link records: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	started_at,
	finished_at,
	status,
	error_text,
	records
) VALUES (
	$1,$2,$3,$4,$5,$6
) ON CONFLICT (id) DO UPDATE SET
	started_at = EXCLUDED.started_at,
	finished_at = EXCLUDED.finished_at,
	status = EXCLUDED.status,
	error_text = EXCLUDED.error_text,
	records = EXCLUDED.records`, s.table)

	args := []any{
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		string(run.Status),
		run.ErrorText,
		recordsJSON,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// GetRun fetches a run row by ID.
func (s *RunStore) GetRun(ctx context.Context, id string) (checker.CheckRun, error) {
	if s == nil || s.pool == nil {
		return checker.CheckRun{}, fmt.Errorf("run store is not configured")
	}
	query := fmt.Sprintf(`
SELECT id, started_at, finished_at, status, error_text, records
FROM %s WHERE id = $1`, s.table)

	var (
		run         checker.CheckRun
		status      string
		recordsJSON []byte
	)
	row := s.pool.QueryRow(ctx, query, id)
	if err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &status, &run.ErrorText, &recordsJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return checker.CheckRun{}, storage.ErrRunNotFound
		}
		return checker.CheckRun{}, fmt.Errorf("select run: %w", err)
	}
	run.Status = checker.RunStatus(status)
	if len(recordsJSON) > 0 {
		if err := json.Unmarshal(recordsJSON, &run.Records); err != nil {
			return checker.CheckRun{}, fmt.Errorf("unmarshal link records: %w", err)
		}
	}
	return run, nil
}
