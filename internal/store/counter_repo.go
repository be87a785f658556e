package store

import (
	"context"
	"database/sql"
	"fmt"
)

// StepCounters are the counters reported after one step of one stream.
type StepCounters struct {
	RunID     string `json:"-"`
	StreamID  int    `json:"stream_id"`
	Step      int    `json:"step"`
	EventID   int    `json:"event_id"`
	Generated int    `json:"generated"`
	Active    int    `json:"active"`
	Alive     int    `json:"alive"`
	Queued    int    `json:"queued"`
}

// CounterRepo handles persistence for StepCounters records.
type CounterRepo struct{}

// AppendTx inserts step counters within an existing transaction.
func (r *CounterRepo) AppendTx(ctx context.Context, tx *sql.Tx, counters []StepCounters) error {
	const q = `INSERT INTO step_counters (run_id, stream_id, step, event_id, generated, active, alive, queued)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("append counters: %w", err)
	}
	defer stmt.Close()
	for _, c := range counters {
		if _, err := stmt.ExecContext(ctx, c.RunID, c.StreamID, c.Step, c.EventID, c.Generated, c.Active, c.Alive, c.Queued); err != nil {
			return fmt.Errorf("append counters step=%d: %w", c.Step, err)
		}
	}
	return nil
}

// ListByStream returns a stream's counters with steps greater than
// sinceStep, ordered by step.
func (r *CounterRepo) ListByStream(ctx context.Context, db *sql.DB, runID string, stream, sinceStep int) ([]StepCounters, error) {
	const q = `SELECT run_id, stream_id, step, event_id, generated, active, alive, queued
FROM step_counters
WHERE run_id = ? AND stream_id = ? AND step > ?
ORDER BY step ASC`

	rows, err := db.QueryContext(ctx, q, runID, stream, sinceStep)
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	defer rows.Close()

	var out []StepCounters
	for rows.Next() {
		var c StepCounters
		if err := rows.Scan(&c.RunID, &c.StreamID, &c.Step, &c.EventID, &c.Generated, &c.Active, &c.Alive, &c.Queued); err != nil {
			return nil, fmt.Errorf("scan counters: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
