// Package store provides SQLite-backed persistence of simulation runs: the
// per-step counters, the accumulated action times, and the state digests
// used to compare runs.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	problem         TEXT NOT NULL DEFAULT '',
	config_json     TEXT NOT NULL DEFAULT '{}',
	mem_space       TEXT NOT NULL DEFAULT 'host',
	num_streams     INTEGER NOT NULL DEFAULT 1,
	status          TEXT NOT NULL DEFAULT 'running',
	error           TEXT NOT NULL DEFAULT '',
	total_steps     INTEGER NOT NULL DEFAULT 0,
	started_at_unix INTEGER NOT NULL DEFAULT 0,
	ended_at_unix   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS step_counters (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL,
	stream_id INTEGER NOT NULL,
	step      INTEGER NOT NULL,
	event_id  INTEGER NOT NULL,
	generated INTEGER NOT NULL DEFAULT 0,
	active    INTEGER NOT NULL DEFAULT 0,
	alive     INTEGER NOT NULL DEFAULT 0,
	queued    INTEGER NOT NULL DEFAULT 0,
	UNIQUE(run_id, stream_id, step)
);
CREATE INDEX IF NOT EXISTS idx_counters_run_stream ON step_counters(run_id, stream_id, step);

CREATE TABLE IF NOT EXISTS action_times (
	run_id    TEXT NOT NULL,
	stream_id INTEGER NOT NULL,
	label     TEXT NOT NULL,
	seconds   REAL NOT NULL DEFAULT 0.0,
	PRIMARY KEY(run_id, stream_id, label)
);

CREATE TABLE IF NOT EXISTS state_digests (
	run_id    TEXT NOT NULL,
	stream_id INTEGER NOT NULL,
	event_id  INTEGER NOT NULL,
	steps     INTEGER NOT NULL DEFAULT 0,
	digest    TEXT NOT NULL,
	PRIMARY KEY(run_id, event_id)
);

CREATE TABLE IF NOT EXISTS optical_stats (
	run_id     TEXT NOT NULL,
	stream_id  INTEGER NOT NULL,
	steps      INTEGER NOT NULL DEFAULT 0,
	iterations INTEGER NOT NULL DEFAULT 0,
	flushes    INTEGER NOT NULL DEFAULT 0,
	photons    INTEGER NOT NULL DEFAULT 0,
	aborted    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY(run_id, stream_id)
);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreInit.Code, "open database", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, domain.WrapEngineError(domain.ErrSchemaMigration.Code, "migrate schema", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}

// WithTx runs fn in a transaction, committing on success.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "commit transaction", err)
	}
	return nil
}
