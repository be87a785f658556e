package optical

import (
	"context"
	"runtime/trace"

	"go.uber.org/zap"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/logger"
)

// DefaultMaxIterations bounds the step iterations of one transport call.
const DefaultMaxIterations = 1024

// Sequence is the optical action sequence.
type Sequence = action.Sequence[*CoreParams, *State]

// Stats accumulates the work done by a loop.
type Stats struct {
	Steps      int // photon steps taken
	Iterations int // step iterations over the whole state
	Flushes    int // calls to Transport with photons
	Photons    int // photons moved into track slots
	Aborted    int // transport calls stopped at the iteration limit
}

// LoopInput configures a Loop.
type LoopInput struct {
	Params        *CoreParams
	MemSpace      domain.MemSpace
	StreamID      domain.StreamID
	NumTrackSlots int // defaults to the params' track capacity
	MaxIterations int // defaults to DefaultMaxIterations
	Options       action.Options
}

// Loop transports batches of optical photons to completion on one stream.
type Loop struct {
	params        *CoreParams
	seq           *Sequence
	state         *State
	gen           *GeneratorAction
	maxIterations int
	stats         Stats
	log           *zap.SugaredLogger
}

// NewLoop builds the optical sequence and state and runs the begin-run
// actions.
func NewLoop(ctx context.Context, in LoopInput) (*Loop, error) {
	gen, err := FindGenerator(in.Params)
	if err != nil {
		return nil, err
	}
	size := in.NumTrackSlots
	if size == 0 {
		size = in.Params.Ref().Capacity.Tracks
	}
	state, err := NewState(in.Params, in.MemSpace, in.StreamID, size)
	if err != nil {
		return nil, err
	}
	l := &Loop{
		params:        in.Params,
		seq:           action.NewSequence[*CoreParams, *State](in.Params.ActionRegistry(), in.Options),
		state:         state,
		gen:           gen,
		maxIterations: in.MaxIterations,
		log:           logger.For(logger.ComponentOptical),
	}
	if l.maxIterations <= 0 {
		l.maxIterations = DefaultMaxIterations
	}
	if err := l.seq.BeginRun(ctx, l.params, l.state); err != nil {
		state.Close()
		return nil, err
	}
	return l, nil
}

// Transport queues photons as buffer space allows and steps until every
// photon has been absorbed or has escaped. If the iteration limit is
// reached the remaining photons are discarded and the abort is counted.
func (l *Loop) Transport(ctx context.Context, photons []Photon) error {
	if len(photons) == 0 {
		return nil
	}
	defer trace.StartRegion(ctx, "optical-transport").End()
	l.stats.Flushes++
	capacity := l.params.Ref().Capacity

	for iter := 0; ; iter++ {
		if iter == l.maxIterations {
			c := l.state.SyncGetCounters()
			l.log.Errorf("Exceeded step count of %d: aborting optical transport loop with %d tracks and %d queued photons",
				l.maxIterations, c.NumAlive, c.NumInitializers+len(photons))
			l.state.Reset()
			l.stats.Aborted++
			return nil
		}
		if len(photons) > 0 {
			c := l.state.SyncGetCounters()
			n := min(len(photons), capacity.Primaries, capacity.Generators-c.NumInitializers)
			if n > 0 {
				if err := l.gen.Insert(l.params, l.state, photons[:n]); err != nil {
					return err
				}
				photons = photons[n:]
			}
		}

		if err := l.seq.Step(ctx, l.params, l.state); err != nil {
			return err
		}
		if err := l.state.Sync(); err != nil {
			return err
		}
		c := l.state.SyncGetCounters()
		l.stats.Iterations++
		l.stats.Steps += c.NumActive
		l.stats.Photons += c.NumGenerated
		if c.NumAlive == 0 && c.NumInitializers == 0 && len(photons) == 0 {
			return nil
		}
	}
}

// Stats returns the accumulated statistics.
func (l *Loop) Stats() Stats { return l.stats }

// State is the loop's optical state.
func (l *Loop) State() *State { return l.state }

// Sequence is the loop's optical action sequence.
func (l *Loop) Sequence() *Sequence { return l.seq }

// Close releases the optical state.
func (l *Loop) Close() { l.state.Close() }
