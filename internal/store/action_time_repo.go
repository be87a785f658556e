package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// ActionTime is the accumulated wall time of one action on one stream.
type ActionTime struct {
	StreamID int     `json:"stream_id"`
	Label    string  `json:"label"`
	Seconds  float64 `json:"seconds"`
}

// ActionTimeRepo handles persistence for ActionTime records.
type ActionTimeRepo struct{}

// SaveTx stores a stream's action times, replacing earlier values.
func (r *ActionTimeRepo) SaveTx(ctx context.Context, tx *sql.Tx, runID string, stream int, times map[string]float64) error {
	const q = `INSERT OR REPLACE INTO action_times (run_id, stream_id, label, seconds) VALUES (?, ?, ?, ?)`
	labels := make([]string, 0, len(times))
	for label := range times {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		if _, err := tx.ExecContext(ctx, q, runID, stream, label, times[label]); err != nil {
			return fmt.Errorf("save action time %q: %w", label, err)
		}
	}
	return nil
}

// ListByRun returns every action time of a run ordered by stream and label.
func (r *ActionTimeRepo) ListByRun(ctx context.Context, db *sql.DB, runID string) ([]ActionTime, error) {
	const q = `SELECT stream_id, label, seconds FROM action_times WHERE run_id = ? ORDER BY stream_id, label`
	rows, err := db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list action times: %w", err)
	}
	defer rows.Close()

	var out []ActionTime
	for rows.Next() {
		var a ActionTime
		if err := rows.Scan(&a.StreamID, &a.Label, &a.Seconds); err != nil {
			return nil, fmt.Errorf("scan action time: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Totals sums action times over streams.
func Totals(times []ActionTime) map[string]float64 {
	out := make(map[string]float64)
	for _, a := range times {
		out[a.Label] += a.Seconds
	}
	return out
}
