// Package history records finished generation runs in PostgreSQL. The
// store is optional; when no database is configured the service keeps no
// history and everything else works unchanged.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the subset of pgxpool.Pool the store needs. Tests provide a
// stub; production passes the shared pool.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RunRecord is one recorded generation run.
type RunRecord struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"file_name"`
	Sheet      string    `json:"sheet"`
	URLColumn  string    `json:"url_column"`
	TotalRows  int       `json:"total_rows"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists run records.
type Store struct {
	db querier
}

// New creates a store backed by db.
func New(db querier) *Store {
	return &Store{db: db}
}

// Init creates the runs table if it does not exist. Called once at
// startup; safe to call repeatedly.
func (s *Store) Init(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS qr_runs (
	id          UUID PRIMARY KEY,
	file_name   TEXT NOT NULL,
	sheet       TEXT NOT NULL,
	url_column  TEXT NOT NULL,
	total_rows  INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS qr_runs_created_at_idx ON qr_runs (created_at DESC);`

	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating history schema: %w", err)
	}
	return nil
}

// Record inserts a finished run. The record's ID and CreatedAt are
// assigned here; uuid v7 keeps insertion order roughly index-friendly.
func (s *Store) Record(ctx context.Context, rec RunRecord) (RunRecord, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return RunRecord{}, fmt.Errorf("generating run id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = time.Now().UTC()

	const q = `
INSERT INTO qr_runs (id, file_name, sheet, url_column, total_rows, succeeded, failed, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.db.Exec(ctx, q,
		rec.ID, rec.FileName, rec.Sheet, rec.URLColumn,
		rec.TotalRows, rec.Succeeded, rec.Failed, rec.DurationMS, rec.CreatedAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("recording run: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
SELECT id, file_name, sheet, url_column, total_rows, succeeded, failed, duration_ms, created_at
FROM qr_runs
ORDER BY created_at DESC
LIMIT $1`

	rows, err := s.db.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.FileName, &r.Sheet, &r.URLColumn,
			&r.TotalRows, &r.Succeeded, &r.Failed, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return out, nil
}
