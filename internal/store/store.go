// Package store persists the fix history to PostgreSQL.
//
// The in-memory ledger stays the source of truth for a session; this package
// keeps an append-only copy of every assisted repair so corrections survive a
// restart and can be audited later.
package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/salesunifier/internal/config"
	"github.com/JonMunkholm/salesunifier/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS fix_history (
	id              UUID PRIMARY KEY,
	record_id       UUID,
	source_file     TEXT,
	original_errors TEXT[] NOT NULL DEFAULT '{}',
	original        JSONB NOT NULL,
	fixed           JSONB NOT NULL,
	changes_made    INTEGER NOT NULL,
	fixed_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS fix_field_changes (
	fix_id         UUID NOT NULL REFERENCES fix_history(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	field          TEXT NOT NULL,
	original_value TEXT,
	fixed_value    TEXT,
	PRIMARY KEY (fix_id, position)
);

CREATE INDEX IF NOT EXISTS fix_history_fixed_at_idx ON fix_history (fixed_at DESC);
`

// Connect opens a connection pool using the database settings and verifies
// it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("fix history store: parse database url: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("fix history store: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("fix history store: ping: %w", err)
	}
	return pool, nil
}

// FixStore implements core.FixRecorder on top of a pgx pool.
type FixStore struct {
	pool *pgxpool.Pool
}

var _ core.FixRecorder = (*FixStore)(nil)

// NewFixStore creates a fix store. Call EnsureSchema once before use.
func NewFixStore(pool *pgxpool.Pool) *FixStore {
	return &FixStore{pool: pool}
}

// EnsureSchema creates the fix history tables if they do not exist.
func (s *FixStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("fix history store: ensure schema: %w", err)
	}
	return nil
}

// RecordFix writes one fix and its field changes in a single transaction.
func (s *FixStore) RecordFix(ctx context.Context, entry core.FixEntry, changes []core.FieldChange) error {
	row, err := buildFixRow(entry, changes)
	if err != nil {
		return fmt.Errorf("fix history store: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("fix history store: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO fix_history
			(id, record_id, source_file, original_errors, original, fixed, changes_made, fixed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.ID, row.RecordID, row.SourceFile, row.OriginalErrors,
		row.Original, row.Fixed, row.ChangesMade, row.FixedAt,
	)
	if err != nil {
		return fmt.Errorf("fix history store: insert fix %s: %w", entry.ID, err)
	}

	if len(row.Changes) > 0 {
		batch := &pgx.Batch{}
		for _, c := range row.Changes {
			batch.Queue(`
				INSERT INTO fix_field_changes (fix_id, position, field, original_value, fixed_value)
				VALUES ($1, $2, $3, $4, $5)`,
				row.ID, c.Position, c.Field, c.OriginalValue, c.FixedValue,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("fix history store: insert changes for %s: %w", entry.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("fix history store: commit: %w", err)
	}
	return nil
}

// StoredFix is a persisted fix summary.
type StoredFix struct {
	ID             string   `json:"id"`
	SourceFile     string   `json:"sourceFile"`
	OriginalErrors []string `json:"originalErrors"`
	ChangesMade    int      `json:"changesMade"`
	FixedAt        string   `json:"fixedAt"`
}

// DefaultRecentLimit bounds Recent when no limit is given.
const DefaultRecentLimit = 50

// Recent returns the most recent persisted fixes, newest first.
func (s *FixStore) Recent(ctx context.Context, limit int) ([]StoredFix, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, source_file, original_errors, changes_made, fixed_at
		FROM fix_history
		ORDER BY fixed_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fix history store: query recent: %w", err)
	}
	defer rows.Close()

	fixes := make([]StoredFix, 0)
	for rows.Next() {
		var r fixRow
		if err := rows.Scan(&r.ID, &r.SourceFile, &r.OriginalErrors, &r.ChangesMade, &r.FixedAt); err != nil {
			return nil, fmt.Errorf("fix history store: scan: %w", err)
		}
		fixes = append(fixes, r.summary())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fix history store: rows: %w", err)
	}
	return fixes, nil
}
