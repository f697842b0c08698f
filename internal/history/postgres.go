package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `CREATE TABLE IF NOT EXISTS export_runs (
	id            UUID PRIMARY KEY,
	status        TEXT NOT NULL,
	trigger       TEXT NOT NULL DEFAULT '',
	path          TEXT NOT NULL,
	record_count  INTEGER NOT NULL DEFAULT 0,
	contact_count INTEGER NOT NULL DEFAULT 0,
	group_count   INTEGER NOT NULL DEFAULT 0,
	row_count     INTEGER NOT NULL DEFAULT 0,
	error_code    TEXT,
	error         TEXT,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS export_runs_started_at_idx ON export_runs (started_at DESC);`

// PostgresStore persists runs in the export_runs table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect opens a pool for databaseURL, verifies it and ensures the schema.
func Connect(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the export_runs table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create export_runs: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Record inserts one run.
func (s *PostgresStore) Record(ctx context.Context, run Run) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.ID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO export_runs
			(id, status, trigger, path, record_count, contact_count, group_count, row_count, error_code, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, string(run.Status), run.Trigger, run.Path,
		run.Records, run.Contacts, run.Groups, run.Rows,
		nullText(run.ErrorCode), nullText(run.Error),
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert export run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, status, trigger, path, record_count, contact_count, group_count, row_count,
			error_code, error, started_at, finished_at
		FROM export_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query export runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("scan export runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.CollectableRow) (Run, error) {
	var (
		run        Run
		status     string
		code, text pgtype.Text
	)
	err := row.Scan(
		&run.ID, &status, &run.Trigger, &run.Path,
		&run.Records, &run.Contacts, &run.Groups, &run.Rows,
		&code, &text, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return Run{}, err
	}
	run.Status = Status(status)
	run.ErrorCode = code.String
	run.Error = text.String
	return run, nil
}

// nullText maps "" to SQL NULL.
func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
