package optical

import (
	"math/rand/v2"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/assert"
	"github.com/celeritas-project/celer-engine/internal/collection"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/device"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/logger"
)

// rngSalt separates the optical random streams from the core ones.
const rngSalt = 0x6f70746963616c

// Photon is a queued optical photon waiting for a track slot.
type Photon struct {
	Energy    float64 // eV
	Position  domain.Vec3
	Direction domain.Vec3
	Time      float64
}

// Counters are the per-step optical counters.
type Counters struct {
	NumVacancies    int
	NumInitializers int
	NumActive       int
	NumAlive        int
	NumGenerated    int
}

// PhysicsStateData is the per-slot interaction bookkeeping.
type PhysicsStateData struct {
	InteractionMFP collection.Collection[float64]
	MacroXS        collection.Collection[float64]
}

// SimStateData is the per-slot stepping bookkeeping.
type SimStateData struct {
	Status         collection.Collection[domain.TrackStatus]
	NumSteps       collection.Collection[int32]
	StepLength     collection.Collection[float64]
	Time           collection.Collection[float64]
	PostStepAction collection.Collection[domain.ActionID]
}

// InitStateData queues photons and tracks empty slots.
type InitStateData struct {
	Initializers collection.Collection[Photon]
	Vacancies    collection.Collection[domain.TrackSlotID]
	Counters     collection.Collection[Counters]
}

// StateData is the per-stream optical track data.
type StateData struct {
	Geometry core.GeoStateData
	Energy   collection.Collection[float64]
	Physics  PhysicsStateData
	Rng      core.RngStateData
	Sim      SimStateData
	Init     InitStateData
	StreamID domain.StreamID
}

// Size is the number of track slots.
func (s *StateData) Size() int { return s.Sim.Status.Len() }

// Bytes is the approximate allocation size.
func (s *StateData) Bytes() uint64 {
	return s.Geometry.Pos.Bytes() + s.Geometry.Dir.Bytes() + s.Geometry.Volume.Bytes() +
		s.Energy.Bytes() + s.Physics.InteractionMFP.Bytes() + s.Physics.MacroXS.Bytes() +
		s.Rng.State.Bytes() + s.Sim.Status.Bytes() + s.Sim.NumSteps.Bytes() +
		s.Sim.StepLength.Bytes() + s.Sim.Time.Bytes() + s.Sim.PostStepAction.Bytes() +
		s.Init.Initializers.Bytes() + s.Init.Vacancies.Bytes()
}

func alloc[T any](mem domain.MemSpace, n int, v T) collection.Collection[T] {
	c := collection.New[T](mem)
	c.Resize(n)
	collection.Fill(c, v)
	return c
}

// Resize allocates the optical state for a stream.
func Resize(s *StateData, params *ParamsData, mem domain.MemSpace, stream domain.StreamID, size int) error {
	if !stream.Valid() || int(stream) >= params.Scalars.MaxStreams {
		return domain.Validationf(domain.ErrStreamOutOfRange,
			"stream ID %d is out of range: max streams is %d", stream, params.Scalars.MaxStreams)
	}
	if size <= 0 {
		return domain.Validationf(domain.ErrZeroSize, "number of optical track slots is not set")
	}

	s.StreamID = stream
	s.Geometry.Pos = alloc(mem, size, domain.Vec3{})
	s.Geometry.Dir = alloc(mem, size, domain.Vec3{})
	s.Geometry.Volume = alloc(mem, size, domain.InvalidVolumeID)
	s.Energy = alloc(mem, size, 0.0)
	s.Physics.InteractionMFP = alloc(mem, size, 0.0)
	s.Physics.MacroXS = alloc(mem, size, 0.0)
	s.Sim.Status = alloc(mem, size, domain.StatusInactive)
	s.Sim.NumSteps = alloc(mem, size, int32(0))
	s.Sim.StepLength = alloc(mem, size, 0.0)
	s.Sim.Time = alloc(mem, size, 0.0)
	s.Sim.PostStepAction = alloc(mem, size, domain.InvalidActionID)

	s.Init.Initializers = alloc(mem, params.Capacity.Generators, Photon{})
	s.Init.Vacancies = collection.New[domain.TrackSlotID](mem)
	s.Init.Vacancies.Resize(size)
	collection.FillSequence(s.Init.Vacancies)
	s.Init.Counters = alloc(mem, 1, Counters{NumVacancies: size})

	s.Rng.State = collection.New[rand.PCG](mem)
	s.Rng.State.Resize(size)
	core.SeedRng(&s.Rng, params.Rng.Seed^rngSalt, stream, 0)

	assert.Ensure(s.Size() == size, "optical state has the requested size")
	return nil
}

// State is one stream's optical state.
type State struct {
	data  StateData
	mem   domain.MemSpace
	exec  device.Executor
	times *action.Times
	log   *zap.SugaredLogger
}

// NewState allocates an optical state with size track slots.
func NewState(params *CoreParams, mem domain.MemSpace, stream domain.StreamID, size int) (*State, error) {
	s := &State{
		mem:   mem,
		times: action.NewTimes(params.ActionRegistry().NumActions()),
		log:   logger.For(logger.ComponentOptical),
	}
	if mem == domain.MemSpaceDevice {
		dev := params.Device()
		if dev == nil {
			return nil, domain.Validationf(domain.ErrDeviceUnavailable,
				"cannot build a device optical state for stream %d without a device", stream)
		}
		if !stream.Valid() || int(stream) >= dev.NumStreams() {
			return nil, domain.Validationf(domain.ErrStreamOutOfRange,
				"stream ID %d is out of range: device has %d streams", stream, dev.NumStreams())
		}
		s.exec = device.NewExecutor(dev.Stream(stream))
	}
	if err := Resize(&s.data, params.Ref(), mem, stream, size); err != nil {
		return nil, err
	}
	s.log.Debugw("Optical state initialization complete",
		"mem", mem.String(), "stream", int(stream), "slots", size,
		"size", humanize.Bytes(s.data.Bytes()))
	return s, nil
}

// Close waits for queued work and releases the state.
func (s *State) Close() {
	s.exec.Wait()
	s.data = StateData{}
}

// Ref exposes the state data to kernels.
func (s *State) Ref() *StateData { return &s.data }

// MemSpace is where the data resides.
func (s *State) MemSpace() domain.MemSpace { return s.mem }

// Size is the number of track slots.
func (s *State) Size() int { return s.data.Size() }

// StreamID identifies the owning stream.
func (s *State) StreamID() domain.StreamID { return s.data.StreamID }

// WarmingUp is always false: the optical loop is only run with photons.
func (s *State) WarmingUp() bool { return false }

// Sync waits for queued kernels and returns the first unreported failure.
func (s *State) Sync() error { return s.exec.Sync() }

// ActionTimes is the per-stream accumulated action time.
func (s *State) ActionTimes() *action.Times { return s.times }

// PostStepAction is the post-step action assigned to a slot.
func (s *State) PostStepAction(slot domain.TrackSlotID) domain.ActionID {
	return s.data.Sim.PostStepAction.At(int(slot))
}

// Launch runs a kernel over n threads.
func (s *State) Launch(label string, n int, body func(tid int)) { s.exec.Launch(label, n, body) }

// Execute runs an algorithm in stream order.
func (s *State) Execute(label string, fn func() error) error { return s.exec.Execute(label, fn) }

// ParallelFor runs body over [0, n) from inside an Execute algorithm.
func (s *State) ParallelFor(n int, body func(tid int)) error { return s.exec.ParallelFor(n, body) }

// SyncGetCounters copies the counters to the host.
func (s *State) SyncGetCounters() Counters {
	s.exec.Wait()
	return s.data.Init.Counters.At(0)
}

// Counters returns the resident counters for use inside algorithms.
func (s *State) Counters() *Counters { return s.data.Init.Counters.Ptr(0) }

// Reset drops every queued photon and track.
func (s *State) Reset() {
	s.exec.Wait()
	s.data.Init.Counters.Set(0, Counters{NumVacancies: s.Size()})
	collection.Fill(s.data.Sim.Status, domain.StatusInactive)
	collection.FillSequence(s.data.Init.Vacancies)
}
