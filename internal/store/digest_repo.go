package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

// StateDigest is the hash of a stream's state after an event finished.
type StateDigest struct {
	StreamID int    `json:"stream_id"`
	EventID  int    `json:"event_id"`
	Steps    int    `json:"steps"`
	Digest   uint64 `json:"digest"`
}

// DigestRepo handles persistence for StateDigest records.
type DigestRepo struct{}

// SaveTx inserts an event digest within an existing transaction.
func (r *DigestRepo) SaveTx(ctx context.Context, tx *sql.Tx, runID string, d StateDigest) error {
	const q = `INSERT INTO state_digests (run_id, stream_id, event_id, steps, digest) VALUES (?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, runID, d.StreamID, d.EventID, d.Steps, strconv.FormatUint(d.Digest, 16))
	if err != nil {
		return fmt.Errorf("save digest: %w", err)
	}
	return nil
}

// ListByRun returns a run's digests ordered by event.
func (r *DigestRepo) ListByRun(ctx context.Context, db *sql.DB, runID string) ([]StateDigest, error) {
	const q = `SELECT stream_id, event_id, steps, digest FROM state_digests WHERE run_id = ? ORDER BY event_id`
	rows, err := db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list digests: %w", err)
	}
	defer rows.Close()

	var out []StateDigest
	for rows.Next() {
		var d StateDigest
		var hex string
		if err := rows.Scan(&d.StreamID, &d.EventID, &d.Steps, &hex); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		if d.Digest, err = strconv.ParseUint(hex, 16, 64); err != nil {
			return nil, fmt.Errorf("parse digest %q: %w", hex, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Compare checks that two runs produced identical per-event digests. The
// stream an event ran on does not matter.
func (r *DigestRepo) Compare(ctx context.Context, db *sql.DB, runA, runB string) error {
	a, err := r.ListByRun(ctx, db, runA)
	if err != nil {
		return err
	}
	b, err := r.ListByRun(ctx, db, runB)
	if err != nil {
		return err
	}
	if len(a) != len(b) {
		return domain.Validationf(domain.ErrDigestMismatch,
			"run %s has %d event digests but run %s has %d", runA, len(a), runB, len(b))
	}
	for i := range a {
		if a[i].EventID != b[i].EventID || a[i].Digest != b[i].Digest {
			return domain.Validationf(domain.ErrDigestMismatch,
				"event %d digest %016x differs from event %d digest %016x",
				a[i].EventID, a[i].Digest, b[i].EventID, b[i].Digest)
		}
	}
	return nil
}
