package runner

import (
	"context"
	"database/sql"
	"time"

	"github.com/goccy/go-json"

	"github.com/celeritas-project/celer-engine/internal/store"
)

// begin records the run as started.
func (r *Runner) begin(ctx context.Context, runID string, start time.Time) error {
	if r.opts.DB == nil {
		return nil
	}
	cfgJSON, err := json.Marshal(r.cfg)
	if err != nil {
		return err
	}
	return store.WithTx(ctx, r.opts.DB, func(tx *sql.Tx) error {
		return r.runs.CreateTx(ctx, tx, store.Run{
			RunID:         runID,
			Problem:       r.problem.Name,
			ConfigJSON:    string(cfgJSON),
			MemSpace:      r.cfg.MemSpace,
			NumStreams:    r.numStreams(),
			Status:        store.RunRunning,
			StartedAtUnix: start.Unix(),
		})
	})
}

// finish stores every stream's results and the run outcome in one
// transaction. It does not use the run context, which may be canceled.
func (r *Runner) finish(runID string, results []streamResult, summary *Summary, runErr error) error {
	if r.opts.DB == nil {
		return nil
	}
	ctx := context.Background()
	status, msg := store.RunCompleted, ""
	if runErr != nil {
		status, msg = store.RunFailed, runErr.Error()
	}

	return store.WithTx(ctx, r.opts.DB, func(tx *sql.Tx) error {
		for _, res := range results {
			counters := make([]store.StepCounters, len(res.counters))
			for i, c := range res.counters {
				c.RunID = runID
				counters[i] = c
			}
			if err := r.counters.AppendTx(ctx, tx, counters); err != nil {
				return err
			}
			if err := r.times.SaveTx(ctx, tx, runID, int(res.stream), res.times); err != nil {
				return err
			}
			for _, d := range res.digests {
				if err := r.digests.SaveTx(ctx, tx, runID, d); err != nil {
					return err
				}
			}
			if res.optical != nil {
				if err := r.opticalStats.SaveTx(ctx, tx, runID, *res.optical); err != nil {
					return err
				}
			}
		}
		return r.runs.FinishTx(ctx, tx, runID, status, msg, int64(summary.Steps), time.Now().Unix())
	})
}
