package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one invocation of the simulation.
type Run struct {
	RunID         string    `json:"run_id"`
	Problem       string    `json:"problem"`
	ConfigJSON    string    `json:"config_json"`
	MemSpace      string    `json:"mem_space"`
	NumStreams    int       `json:"num_streams"`
	Status        RunStatus `json:"status"`
	Error         string    `json:"error,omitempty"`
	TotalSteps    int64     `json:"total_steps"`
	StartedAtUnix int64     `json:"started_at_unix"`
	EndedAtUnix   int64     `json:"ended_at_unix"`
}

// RunRepo handles persistence for Run records.
type RunRepo struct{}

// CreateTx inserts a new run within an existing transaction.
func (r *RunRepo) CreateTx(ctx context.Context, tx *sql.Tx, run Run) error {
	const q = `INSERT INTO runs (run_id, problem, config_json, mem_space, num_streams, status, started_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		run.RunID,
		run.Problem,
		run.ConfigJSON,
		run.MemSpace,
		run.NumStreams,
		string(run.Status),
		run.StartedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishTx records the outcome of a run.
func (r *RunRepo) FinishTx(ctx context.Context, tx *sql.Tx, runID string, status RunStatus, runErr string, totalSteps, endedAt int64) error {
	const q = `UPDATE runs SET status = ?, error = ?, total_steps = ?, ended_at_unix = ? WHERE run_id = ?`
	res, err := tx.ExecContext(ctx, q, string(status), runErr, totalSteps, endedAt, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return domain.Validationf(domain.ErrRunNotFound, "run %s not found", runID)
	}
	return nil
}

const runColumns = `run_id, problem, config_json, mem_space, num_streams, status, error, total_steps, started_at_unix, ended_at_unix`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var run Run
	var status string
	err := row.Scan(&run.RunID, &run.Problem, &run.ConfigJSON, &run.MemSpace, &run.NumStreams,
		&status, &run.Error, &run.TotalSteps, &run.StartedAtUnix, &run.EndedAtUnix)
	run.Status = RunStatus(status)
	return run, err
}

// Get returns a run by ID.
func (r *RunRepo) Get(ctx context.Context, db *sql.DB, runID string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.Validationf(domain.ErrRunNotFound, "run %s not found", runID)
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// List returns the most recent runs first.
func (r *RunRepo) List(ctx context.Context, db *sql.DB, limit int) ([]Run, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at_unix DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
