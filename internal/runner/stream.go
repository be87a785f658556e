package runner

import (
	"context"

	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/stepper"
	"github.com/celeritas-project/celer-engine/internal/store"
)

// streamResult is everything one stream collected during the run.
type streamResult struct {
	stream   domain.StreamID
	steps    int
	counters []store.StepCounters
	digests  []store.StateDigest
	times    map[string]float64
	optical  *store.OpticalStats
	killed   int
}

// runStream transports the events assigned round-robin to one stream.
func (r *Runner) runStream(ctx context.Context, stream domain.StreamID) (streamResult, error) {
	out := streamResult{stream: stream}
	s, err := stepper.New(ctx, stepper.Input{
		Params:        r.params,
		StreamID:      stream,
		NumTrackSlots: r.cfg.TrackSlots,
		MemSpace:      r.cfg.Mem(),
		ActionTimes:   r.cfg.ActionTimes,
		Observer:      r.observer(),
	})
	if err != nil {
		return out, err
	}
	defer s.Close()

	if r.cfg.WarmUp {
		if err := s.WarmUp(ctx); err != nil {
			return out, err
		}
	}

	for event := int(stream); event < r.cfg.Events; event += r.numStreams() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := r.runEvent(ctx, s, domain.EventID(event), &out); err != nil {
			return out, err
		}
	}

	out.times = s.ActionTimes()
	if r.launch != nil {
		st := r.launch.Stats(s.State())
		out.optical = &store.OpticalStats{
			StreamID:   int(stream),
			Steps:      st.Steps,
			Iterations: st.Iterations,
			Flushes:    st.Flushes,
			Photons:    st.Photons,
			Aborted:    st.Aborted,
		}
		if m := r.opts.Metrics; m != nil {
			m.AddPhotons(stream, st.Photons)
		}
	}
	return out, nil
}

// runEvent steps one event until every track is done. Past the step limit
// the remaining tracks are killed before each step; if they still have not
// drained after a second step limit the event fails.
func (r *Runner) runEvent(ctx context.Context, s *stepper.Stepper, event domain.EventID, out *streamResult) error {
	if err := s.Reseed(event); err != nil {
		return err
	}
	first := out.steps
	result, err := s.StepWithPrimaries(ctx, r.primaries(event))
	if err != nil {
		return err
	}
	out.record(r, event, result)

	limit := r.cfg.StepLimit
	for steps := 1; !result.Done(); steps++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if steps >= 2*limit {
			return domain.Validationf(domain.ErrStepLimitExhausted,
				"event %d still has %d alive and %d queued tracks after %d steps",
				event, result.Alive, result.Queued, steps)
		}
		if steps >= limit && result.Alive > 0 {
			out.killed += result.Alive
			if m := r.opts.Metrics; m != nil {
				m.AddKilled(out.stream, result.Alive)
			}
			s.KillActive()
		}
		if result, err = s.Step(ctx); err != nil {
			return err
		}
		out.record(r, event, result)
	}

	if r.launch != nil {
		if err := r.launch.Flush(s.State()); err != nil {
			return err
		}
	}
	digest, err := s.State().Digest()
	if err != nil {
		return err
	}
	out.digests = append(out.digests, store.StateDigest{
		StreamID: int(out.stream),
		EventID:  int(event),
		Steps:    out.steps - first,
		Digest:   digest,
	})
	return nil
}

func (out *streamResult) record(r *Runner, event domain.EventID, res stepper.Result) {
	out.steps++
	out.counters = append(out.counters, store.StepCounters{
		StreamID:  int(out.stream),
		Step:      out.steps,
		EventID:   int(event),
		Generated: res.Generated,
		Active:    res.Active,
		Alive:     res.Alive,
		Queued:    res.Queued,
	})
	if m := r.opts.Metrics; m != nil {
		m.ObserveStep(out.stream, res.Active, res.Queued)
	}
}
