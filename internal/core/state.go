package core

import (
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/assert"
	"github.com/celeritas-project/celer-engine/internal/collection"
	"github.com/celeritas-project/celer-engine/internal/device"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/logger"
)

// State is the per-stream mutable state, owned by exactly one goroutine.
type State struct {
	data      StateData
	mem       domain.MemSpace
	exec      device.Executor
	warmingUp bool
	times     *action.Times
	aux       []any
	log       *zap.SugaredLogger
}

// NewState allocates a state with numSlots track slots for a stream.
func NewState(params *Params, mem domain.MemSpace, stream domain.StreamID, numSlots int) (*State, error) {
	if int(stream) >= params.MaxStreams() || !stream.Valid() {
		return nil, domain.Validationf(domain.ErrStreamOutOfRange,
			"stream ID %d is out of range: max streams is %d", stream, params.MaxStreams())
	}
	if numSlots <= 0 {
		return nil, domain.Validationf(domain.ErrZeroSize, "number of track slots is not set")
	}

	s := &State{
		mem:   mem,
		times: action.NewTimes(params.ActionRegistry().NumActions()),
		aux:   make([]any, params.ActionRegistry().NumActions()),
		log:   logger.For(logger.ComponentCore),
	}
	if mem == domain.MemSpaceDevice {
		dev := params.Device()
		if dev == nil {
			return nil, domain.Validationf(domain.ErrDeviceUnavailable,
				"cannot build a device state for stream %d without a device", stream)
		}
		if int(stream) >= dev.NumStreams() {
			return nil, domain.Validationf(domain.ErrStreamOutOfRange,
				"stream ID %d is out of range: device has %d streams", stream, dev.NumStreams())
		}
		s.exec = device.NewExecutor(dev.Stream(stream))
	}

	if err := Resize(&s.data, params.Ref(), mem, stream, numSlots); err != nil {
		return nil, err
	}

	s.log.Infow("Core state initialization complete",
		"mem", mem.String(), "stream", int(stream), "slots", numSlots,
		"size", humanize.Bytes(s.data.Bytes()))
	return s, nil
}

// Close releases the state and any auxiliary data that can be closed.
func (s *State) Close() {
	s.exec.Wait()
	for _, v := range s.aux {
		if c, ok := v.(interface{ Close() }); ok {
			c.Close()
		}
	}
	s.aux = nil
	s.log.Debugf("Deallocating %s core state (stream %d)", s.mem, s.data.StreamID)
	s.data = StateData{}
}

// Ref exposes the state data to kernels.
func (s *State) Ref() *StateData { return &s.data }

// MemSpace is where the state data resides.
func (s *State) MemSpace() domain.MemSpace { return s.mem }

// Size is the number of track slots.
func (s *State) Size() int { return s.data.Size() }

// StreamID identifies the stream owning this state.
func (s *State) StreamID() domain.StreamID { return s.data.StreamID }

// WarmingUp reports whether the next step runs with no tracks to exercise
// the kernels.
func (s *State) WarmingUp() bool { return s.warmingUp }

// SetWarmingUp toggles warm-up mode, which may only start with no active
// tracks.
func (s *State) SetWarmingUp(on bool) {
	assert.Expect(!on || s.SyncGetCounters().NumActive == 0, "no active tracks when warming up")
	s.warmingUp = on
}

// Sync waits for queued kernels on the state's stream and returns the first
// kernel failure not yet reported.
func (s *State) Sync() error { return s.exec.Sync() }

// ActionTimes is the per-stream accumulated action time.
func (s *State) ActionTimes() *action.Times { return s.times }

// PostStepAction is the post-step action assigned to a slot.
func (s *State) PostStepAction(slot domain.TrackSlotID) domain.ActionID {
	return s.data.Sim.PostStepAction.At(int(slot))
}

// Aux returns the per-stream auxiliary data stored by an action, or nil.
func (s *State) Aux(id domain.ActionID) any {
	if int(id) >= len(s.aux) {
		return nil
	}
	return s.aux[id]
}

// SetAux stores per-stream auxiliary data for an action.
func (s *State) SetAux(id domain.ActionID, v any) {
	assert.Expect(id.Valid(), "aux action ID is valid")
	if int(id) >= len(s.aux) {
		grown := make([]any, int(id)+1)
		copy(grown, s.aux)
		s.aux = grown
	}
	s.aux[id] = v
}

// Launch runs a kernel over n threads. On the host it runs immediately; on
// the device it is queued on the state's stream and Launch returns before
// it completes.
func (s *State) Launch(label string, n int, body func(tid int)) { s.exec.Launch(label, n, body) }

// Execute runs an algorithm against the state. On the host it runs
// immediately and its error is returned; on the device it is queued in
// order with kernels and its error is reported by the next Sync.
func (s *State) Execute(label string, fn func() error) error { return s.exec.Execute(label, fn) }

// ParallelFor runs body over [0, n) from inside an Execute algorithm.
func (s *State) ParallelFor(n int, body func(tid int)) error { return s.exec.ParallelFor(n, body) }

// SyncGetCounters copies the counters to the host. On the device this
// synchronizes the stream; a kernel failure is kept for the next Sync.
func (s *State) SyncGetCounters() domain.CoreStateCounters {
	s.exec.Wait()
	return s.data.Init.Counters.At(0)
}

// SyncPutCounters copies host counters into the state.
func (s *State) SyncPutCounters(c domain.CoreStateCounters) {
	s.exec.Wait()
	s.data.Init.Counters.Set(0, c)
}

// Counters returns a pointer to the resident counters for use inside
// kernels and algorithms.
func (s *State) Counters() *domain.CoreStateCounters {
	return s.data.Init.Counters.Ptr(0)
}

// Reset clears the counters, marks every slot inactive and vacant, so the
// state can be reused after an aborted event.
func (s *State) Reset() {
	s.SyncPutCounters(domain.CoreStateCounters{NumVacancies: s.Size()})
	collection.Fill(s.data.Sim.Status, domain.StatusInactive)
	collection.FillSequence(s.data.Init.Vacancies)
}

// Digest hashes every per-slot array, synchronizing first on the device.
func (s *State) Digest() (uint64, error) {
	if err := s.Sync(); err != nil {
		return 0, err
	}
	return StateDigest(&s.data)
}
