package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"metadata-ingestion/internal/common/errors"
	"metadata-ingestion/internal/storage"
)

// DefaultListLimit bounds ListRuns when no limit is given
const DefaultListLimit = 20

type Adapter struct {
	db     *sql.DB
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ingestion_runs (
			id TEXT PRIMARY KEY,
			service_name TEXT NOT NULL,
			source_type TEXT NOT NULL,
			state TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			records INTEGER DEFAULT 0,
			warnings INTEGER DEFAULT 0,
			filtered INTEGER DEFAULT 0,
			failures INTEGER DEFAULT 0,
			success_pct REAL DEFAULT 0,
			registered_fqns TEXT DEFAULT '[]',
			error TEXT DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ingestion_runs_started_at ON ingestion_runs(started_at)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

func (a *Adapter) StartRun(ctx context.Context, serviceName, sourceType string) (*storage.Run, error) {
	run := &storage.Run{
		ID:          uuid.NewString(),
		ServiceName: serviceName,
		SourceType:  sourceType,
		State:       storage.RunStateRunning,
		StartedAt:   time.Now().UTC(),
	}

	_, err := a.db.ExecContext(ctx, `INSERT INTO ingestion_runs (id, service_name, source_type, state, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.ServiceName, run.SourceType, string(run.State), run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

func (a *Adapter) FinishRun(ctx context.Context, run *storage.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	fqns, err := json.Marshal(nonNil(run.RegisteredFQNs))
	if err != nil {
		return fmt.Errorf("failed to encode registered FQNs: %w", err)
	}

	result, err := a.db.ExecContext(ctx, `UPDATE ingestion_runs SET state = ?, finished_at = ?, records = ?, warnings = ?,
		filtered = ?, failures = ?, success_pct = ?, registered_fqns = ?, error = ? WHERE id = ?`,
		string(run.State), *run.FinishedAt, run.Records, run.Warnings, run.Filtered, run.Failures,
		run.SuccessPct, string(fqns), run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if rows == 0 {
		return errors.NotFoundError("run " + run.ID)
	}
	return nil
}

const runColumns = `id, service_name, source_type, state, started_at, finished_at, records, warnings,
	filtered, failures, success_pct, registered_fqns, error`

func (a *Adapter) GetRun(ctx context.Context, id string) (*storage.Run, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM ingestion_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("run " + id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (a *Adapter) ListRuns(ctx context.Context, limit int) ([]*storage.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := a.db.QueryContext(ctx, `SELECT `+runColumns+` FROM ingestion_runs
		ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*storage.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*storage.Run, error) {
	var (
		run      storage.Run
		state    string
		finished sql.NullTime
		fqns     string
	)
	err := s.Scan(&run.ID, &run.ServiceName, &run.SourceType, &state, &run.StartedAt, &finished,
		&run.Records, &run.Warnings, &run.Filtered, &run.Failures, &run.SuccessPct, &fqns, &run.Error)
	if err != nil {
		return nil, err
	}

	run.State = storage.RunState(state)
	if finished.Valid {
		t := finished.Time.UTC()
		run.FinishedAt = &t
	}
	run.StartedAt = run.StartedAt.UTC()
	if fqns != "" {
		if err := json.Unmarshal([]byte(fqns), &run.RegisteredFQNs); err != nil {
			return nil, fmt.Errorf("invalid registered FQNs: %w", err)
		}
	}
	return &run, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
