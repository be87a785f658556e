// Package stepper drives the action sequence for a single stream: it owns
// the stream's state, inserts primaries, and reports per-step counters.
package stepper

import (
	"context"
	"runtime/trace"

	"go.uber.org/zap"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/collection"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/logger"
	"github.com/celeritas-project/celer-engine/internal/track"
)

// Sequence is the core action sequence.
type Sequence = action.Sequence[*core.Params, *core.State]

// Input configures a Stepper.
type Input struct {
	Params        *core.Params
	StreamID      domain.StreamID
	NumTrackSlots int
	MemSpace      domain.MemSpace
	ActionTimes   bool
	Observer      action.Observer
}

// Result summarizes one step iteration.
type Result struct {
	Generated int // initializers created during the step
	Active    int // slots occupied at the start of the step
	Alive     int // slots still occupied at the end of the step
	Queued    int // initializers waiting for a slot
}

// Done reports whether no tracks remain alive or queued.
func (r Result) Done() bool { return r.Alive == 0 && r.Queued == 0 }

// Stepper runs the core sequence on one stream's state.
type Stepper struct {
	params    *core.Params
	seq       *Sequence
	state     *core.State
	primaries *track.ExtendFromPrimariesAction
	log       *zap.SugaredLogger
}

// New builds the sequence and state and runs the begin-run actions.
func New(ctx context.Context, in Input) (*Stepper, error) {
	seq := action.NewSequence[*core.Params, *core.State](in.Params.ActionRegistry(), action.Options{
		ActionTimes: in.ActionTimes,
		Observer:    in.Observer,
	})

	primaries, err := track.FindExtendFromPrimaries(in.Params)
	if err != nil {
		return nil, err
	}
	if primaries == nil {
		return nil, domain.ErrMissingPrimaries
	}
	if in.NumTrackSlots <= 0 {
		return nil, domain.Validationf(domain.ErrZeroSize,
			"track slots were not specified in the stepper input")
	}

	state, err := core.NewState(in.Params, in.MemSpace, in.StreamID, in.NumTrackSlots)
	if err != nil {
		return nil, err
	}

	s := &Stepper{
		params:    in.Params,
		seq:       seq,
		state:     state,
		primaries: primaries,
		log:       logger.For(logger.ComponentStepper).With("stream", int(in.StreamID)),
	}

	region := trace.StartRegion(ctx, "begin-run")
	err = seq.BeginRun(ctx, in.Params, state)
	region.End()
	if err != nil {
		state.Close()
		return nil, err
	}
	return s, nil
}

// WarmUp runs every step action once with no tracks, which exercises the
// kernels before timing starts.
func (s *Stepper) WarmUp(ctx context.Context) error {
	if n := s.state.SyncGetCounters().NumActive; n != 0 {
		return domain.Validationf(domain.ErrWarmUpActive,
			"cannot warm up when state has active tracks (%d active)", n)
	}

	region := trace.StartRegion(ctx, "warmup")
	defer region.End()
	s.state.SetWarmingUp(true)
	defer s.state.SetWarmingUp(false)

	if err := s.seq.Step(ctx, s.params, s.state); err != nil {
		return err
	}
	if err := s.state.Sync(); err != nil {
		return err
	}
	if n := s.state.SyncGetCounters().NumActive; n != 0 {
		return domain.Validationf(domain.ErrWarmUpActive, "warm-up produced %d active tracks", n)
	}
	return nil
}

// Step transports the tracks already in the state for one iteration.
func (s *Stepper) Step(ctx context.Context) (Result, error) {
	region := trace.StartRegion(ctx, "step")
	defer region.End()

	err := s.state.Execute("reset-generated", func() error {
		s.state.Counters().NumGenerated = 0
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if err := s.seq.Step(ctx, s.params, s.state); err != nil {
		return Result{}, err
	}

	c := s.state.SyncGetCounters()
	if err := s.state.Sync(); err != nil {
		return Result{}, err
	}
	return Result{
		Generated: c.NumGenerated,
		Active:    c.NumActive,
		Alive:     c.NumAlive,
		Queued:    c.NumInitializers,
	}, nil
}

// StepWithPrimaries inserts primaries and then steps.
func (s *Stepper) StepWithPrimaries(ctx context.Context, primaries []domain.Primary) (Result, error) {
	if len(primaries) == 0 {
		return s.Step(ctx)
	}
	for _, p := range primaries {
		if p.Energy <= 0 || int(p.ParticleID) >= len(s.params.Ref().Particle.Particles) || p.ParticleID < 0 {
			return Result{}, domain.Validationf(domain.ErrInvalidPrimary,
				"primary for event %d has particle %d and energy %g MeV", p.EventID, p.ParticleID, p.Energy)
		}
	}
	if err := s.primaries.Insert(s.params, s.state, primaries); err != nil {
		return Result{}, err
	}
	return s.Step(ctx)
}

// KillActive marks every track in flight as errored so the next step
// applies the tracking cut. It is used to flush stuck tracks.
func (s *Stepper) KillActive() {
	s.log.Errorf("Killing %d active tracks", s.state.SyncGetCounters().NumActive)
	status := s.state.Ref().Sim.Status
	s.state.Launch("kill-active", s.state.Size(), func(i int) {
		if st := status.At(i); st == domain.StatusAlive || st == domain.StatusInitializing {
			status.Set(i, domain.StatusErrored)
		}
	})
}

// Reseed reinitializes the random streams and track counters so an event's
// results are reproducible regardless of what ran before it.
func (s *Stepper) Reseed(event domain.EventID) error {
	if err := s.state.Sync(); err != nil {
		return err
	}
	data := s.state.Ref()
	core.SeedRng(&data.Rng, s.params.Ref().Rng.Seed, s.state.StreamID(), event)
	collection.Fill(data.Init.TrackCounters, 0)
	return nil
}

// ActionTimes returns the accumulated seconds per action label.
func (s *Stepper) ActionTimes() map[string]float64 {
	return s.seq.ActionTimes(s.state.ActionTimes())
}

// Counters returns the current state counters.
func (s *Stepper) Counters() domain.CoreStateCounters { return s.state.SyncGetCounters() }

// State exposes the stream's state.
func (s *Stepper) State() *core.State { return s.state }

// Sequence exposes the action sequence.
func (s *Stepper) Sequence() *Sequence { return s.seq }

// Params returns the shared core params.
func (s *Stepper) Params() *core.Params { return s.params }

// Close releases the state.
func (s *Stepper) Close() { s.state.Close() }
