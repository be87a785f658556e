package store

import (
	"context"
	"database/sql"
	"fmt"
)

// OpticalStats is the optical loop work done by one stream.
type OpticalStats struct {
	StreamID   int `json:"stream_id"`
	Steps      int `json:"steps"`
	Iterations int `json:"iterations"`
	Flushes    int `json:"flushes"`
	Photons    int `json:"photons"`
	Aborted    int `json:"aborted"`
}

// OpticalRepo handles persistence for OpticalStats records.
type OpticalRepo struct{}

// SaveTx stores a stream's optical statistics.
func (r *OpticalRepo) SaveTx(ctx context.Context, tx *sql.Tx, runID string, s OpticalStats) error {
	const q = `INSERT OR REPLACE INTO optical_stats (run_id, stream_id, steps, iterations, flushes, photons, aborted)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, runID, s.StreamID, s.Steps, s.Iterations, s.Flushes, s.Photons, s.Aborted)
	if err != nil {
		return fmt.Errorf("save optical stats: %w", err)
	}
	return nil
}

// ListByRun returns a run's optical statistics ordered by stream.
func (r *OpticalRepo) ListByRun(ctx context.Context, db *sql.DB, runID string) ([]OpticalStats, error) {
	const q = `SELECT stream_id, steps, iterations, flushes, photons, aborted FROM optical_stats WHERE run_id = ? ORDER BY stream_id`
	rows, err := db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list optical stats: %w", err)
	}
	defer rows.Close()

	var out []OpticalStats
	for rows.Next() {
		var s OpticalStats
		if err := rows.Scan(&s.StreamID, &s.Steps, &s.Iterations, &s.Flushes, &s.Photons, &s.Aborted); err != nil {
			return nil, fmt.Errorf("scan optical stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
