// Package history keeps a PostgreSQL log of correction runs.
//
// Every run records the input, the output and the corrections applied, so
// that editors can look back at what the service changed and why. The schema
// is created by [Migrate] when the store is opened.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tikunlabs/tikun/internal/naturalize"
)

// DefaultLimit caps [Store.Recent] when the caller passes a non-positive limit.
const DefaultLimit = 50

const ddlRuns = `
CREATE TABLE IF NOT EXISTS correction_runs (
    id           BIGSERIAL    PRIMARY KEY,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    mode         TEXT         NOT NULL,
    style        TEXT         NOT NULL DEFAULT '',
    original     TEXT         NOT NULL,
    corrected    TEXT         NOT NULL,
    corrections  JSONB        NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_correction_runs_created_at
    ON correction_runs (created_at DESC);
`

// Migrate creates the history tables if they do not exist. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlRuns); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Run is one recorded correction run.
type Run struct {
	ID          int64                   `json:"id"`
	CreatedAt   time.Time               `json:"created_at"`
	Mode        string                  `json:"mode"`
	Style       string                  `json:"style,omitempty"`
	Original    string                  `json:"original"`
	Corrected   string                  `json:"corrected"`
	Corrections []naturalize.Correction `json:"corrections"`
}

// Store is a PostgreSQL-backed run log. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Record inserts r and returns its id. ID and CreatedAt on r are ignored.
func (s *Store) Record(ctx context.Context, r Run) (int64, error) {
	corrs := r.Corrections
	if corrs == nil {
		corrs = []naturalize.Correction{}
	}
	payload, err := json.Marshal(corrs)
	if err != nil {
		return 0, fmt.Errorf("history: encode corrections: %w", err)
	}

	const q = `
		INSERT INTO correction_runs (mode, style, original, corrected, corrections)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	var id int64
	if err := s.pool.QueryRow(ctx, q, r.Mode, r.Style, r.Original, r.Corrected, string(payload)).Scan(&id); err != nil {
		return 0, fmt.Errorf("history: record: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	const q = `
		SELECT id, created_at, mode, style, original, corrected, corrections
		FROM correction_runs
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	runs, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.CollectableRow) (Run, error) {
	var (
		r       Run
		payload []byte
	)
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.Mode, &r.Style, &r.Original, &r.Corrected, &payload); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal(payload, &r.Corrections); err != nil {
		return Run{}, fmt.Errorf("decode corrections of run %d: %w", r.ID, err)
	}
	if r.Corrections == nil {
		r.Corrections = []naturalize.Correction{}
	}
	return r, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
