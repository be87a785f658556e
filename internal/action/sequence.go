package action

import (
	"cmp"
	"context"
	"fmt"
	"runtime/trace"
	"slices"
	"time"

	"github.com/celeritas-project/celer-engine/internal/assert"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/logger"
)

// Params is the view of run parameters that a sequence needs.
type Params interface {
	ActionRegistry() *Registry
}

// State is the view of a per-stream state that a sequence needs.
type State interface {
	MemSpace() domain.MemSpace
	Size() int
	StreamID() domain.StreamID
	WarmingUp() bool
	// Sync blocks until queued device work on the state's stream is done.
	Sync() error
	// ActionTimes is the per-stream accumulator used when timing.
	ActionTimes() *Times
	// PostStepAction is the post-step action assigned to a track slot.
	PostStepAction(slot domain.TrackSlotID) domain.ActionID
}

// Options configures a Sequence.
type Options struct {
	// ActionTimes enables per-action timing. On device states this adds a
	// stream synchronization after every action.
	ActionTimes bool
	// Observer, if set, receives every timed action.
	Observer Observer
}

// Sequence dispatches registered actions in step order. It captures the
// registry contents at construction and refuses to run if more actions are
// registered afterward.
type Sequence[P Params, S State] struct {
	beginRun      []BeginRunAction[P, S]
	step          []StepAction[P, S]
	statusChecker StatusChecker[P, S]
	options       Options
	numActions    int
}

// NewSequence builds the begin-run and step action lists from the registry.
// Step actions are sorted by order, with registration order breaking ties.
// A begin-run action implementing StatusChecker is attached automatically.
func NewSequence[P Params, S State](reg *Registry, opts Options) *Sequence[P, S] {
	s := &Sequence[P, S]{
		beginRun:   BeginRunActions[P, S](reg),
		step:       StepActions[P, S](reg),
		options:    opts,
		numActions: reg.NumActions(),
	}
	slices.SortStableFunc(s.step, func(a, b StepAction[P, S]) int {
		return cmp.Compare(a.Order(), b.Order())
	})

	for _, a := range s.beginRun {
		if sc, ok := a.(StatusChecker[P, S]); ok {
			s.statusChecker = sc
			logger.For(logger.ComponentAction).Info("Executing actions with additional debug checking")
			break
		}
	}
	return s
}

// BeginRun validates that the registry is unchanged and calls every
// begin-run hook.
func (s *Sequence[P, S]) BeginRun(ctx context.Context, params P, state S) error {
	if n := params.ActionRegistry().NumActions(); n != s.numActions {
		return domain.Validationf(domain.ErrStaleRegistry,
			"number of actions changed since setup completed (was %d, now %d)", s.numActions, n)
	}

	for _, a := range s.beginRun {
		region := trace.StartRegion(ctx, a.Label())
		err := a.BeginRun(params, state)
		region.End()
		if err != nil {
			return fmt.Errorf("begin run %q: %w", a.Label(), err)
		}
	}
	return nil
}

// Step executes one step iteration. The first action failure aborts the
// remaining actions and is returned.
func (s *Sequence[P, S]) Step(ctx context.Context, params P, state S) error {
	// On a single host track slot, post-step actions other than the one
	// assigned to that slot cannot apply.
	singleHostSlot := state.MemSpace() == domain.MemSpaceHost && state.Size() == 1
	skip := func(a StepAction[P, S]) bool {
		return singleHostSlot && a.Order() == domain.OrderPost &&
			a.ActionID() != state.PostStepAction(0)
	}

	if s.options.ActionTimes && !state.WarmingUp() {
		return s.stepTimed(ctx, params, state, skip)
	}

	for _, a := range s.step {
		if skip(a) {
			continue
		}
		region := trace.StartRegion(ctx, a.Label())
		err := a.Step(params, state)
		region.End()
		if err != nil {
			return fmt.Errorf("action %q: %w", a.Label(), err)
		}
		if s.statusChecker != nil {
			if err := s.statusChecker.CheckStep(a.ActionID(), params, state); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sequence[P, S]) stepTimed(ctx context.Context, params P, state S, skip func(StepAction[P, S]) bool) error {
	accum := state.ActionTimes()
	assert.Expect(accum != nil, "state has action time storage")
	device := state.MemSpace() == domain.MemSpaceDevice

	for _, a := range s.step {
		if skip(a) {
			continue
		}
		region := trace.StartRegion(ctx, a.Label())
		start := time.Now()
		err := a.Step(params, state)
		if err == nil && device {
			err = state.Sync()
		}
		elapsed := time.Since(start)
		region.End()
		if err != nil {
			return fmt.Errorf("action %q: %w", a.Label(), err)
		}

		accum.Add(a.ActionID(), elapsed)
		if s.options.Observer != nil {
			s.options.Observer.ObserveAction(state.StreamID(), a.Label(), elapsed)
		}
		if s.statusChecker != nil {
			if err := s.statusChecker.CheckStep(a.ActionID(), params, state); err != nil {
				return err
			}
		}
	}
	return nil
}

// ActionTimes maps each step action label to its accumulated seconds in the
// given per-stream storage. The map is empty when timing is disabled.
func (s *Sequence[P, S]) ActionTimes(times *Times) map[string]float64 {
	out := make(map[string]float64)
	if !s.options.ActionTimes {
		return out
	}
	for _, a := range s.step {
		out[a.Label()] = times.Get(a.ActionID()).Seconds()
	}
	return out
}

// StepActions returns the step actions in execution order.
func (s *Sequence[P, S]) StepActions() []StepAction[P, S] { return s.step }

// BeginRunActions returns the begin-run actions in registration order.
func (s *Sequence[P, S]) BeginRunActions() []BeginRunAction[P, S] { return s.beginRun }

// HasStatusChecker reports whether debug checking is attached.
func (s *Sequence[P, S]) HasStatusChecker() bool { return s.statusChecker != nil }

// Options returns the construction options.
func (s *Sequence[P, S]) Options() Options { return s.options }
