package core

import (
	"math/rand/v2"

	"github.com/celeritas-project/celer-engine/internal/assert"
	"github.com/celeritas-project/celer-engine/internal/collection"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// GeoStateData is the per-slot position in the slab geometry.
type GeoStateData struct {
	Pos    collection.Collection[domain.Vec3]
	Dir    collection.Collection[domain.Vec3]
	Volume collection.Collection[domain.VolumeID]
}

// ParticleStateData is the per-slot particle type and kinetic energy.
type ParticleStateData struct {
	ParticleID collection.Collection[domain.ParticleID]
	Energy     collection.Collection[float64]
}

// PhysicsStateData tracks the sampled interaction length and the
// secondaries emitted during the current step.
type PhysicsStateData struct {
	// InteractionMFP is the number of mean free paths remaining before the
	// next discrete interaction. Zero means "sample a new one".
	InteractionMFP collection.Collection[float64]
	MacroXS        collection.Collection[float64]
	EnergyDeposit  collection.Collection[float64]
	NumSecondaries collection.Collection[int32]
	// Secondaries holds SecondaryCapacity entries per slot.
	Secondaries collection.Collection[domain.Secondary]
}

// RngStateData holds one PCG stream per slot.
type RngStateData struct {
	State collection.Collection[rand.PCG]
}

// Uniform draws a sample in [0, 1) from a slot's stream.
func (r *RngStateData) Uniform(slot domain.TrackSlotID) float64 {
	return float64(r.State.Ptr(int(slot)).Uint64()>>11) * 0x1p-53
}

// SimStateData is the per-slot track identity and stepping bookkeeping.
type SimStateData struct {
	Status          collection.Collection[domain.TrackStatus]
	TrackID         collection.Collection[domain.TrackID]
	ParentID        collection.Collection[domain.TrackID]
	EventID         collection.Collection[domain.EventID]
	NumSteps        collection.Collection[int32]
	StepLength      collection.Collection[float64]
	Time            collection.Collection[float64]
	Weight          collection.Collection[float64]
	PostStepAction  collection.Collection[domain.ActionID]
	AlongStepAction collection.Collection[domain.ActionID]
}

// TrackInitStateData buffers pending initializers and tracks empty slots.
type TrackInitStateData struct {
	// Initializers has Capacity entries; the first NumInitializers are live.
	Initializers collection.Collection[domain.TrackInitializer]
	// Vacancies has one entry per slot; the first NumVacancies are live.
	Vacancies collection.Collection[domain.TrackSlotID]
	// TrackCounters is the next track ID for each event.
	TrackCounters collection.Collection[domain.TrackID]
	// Counters is a single element resident with the rest of the state.
	Counters collection.Collection[domain.CoreStateCounters]
}

// StateData is the mutable per-stream data for every track slot.
type StateData struct {
	Geometry GeoStateData
	Particle ParticleStateData
	Physics  PhysicsStateData
	Rng      RngStateData
	Sim      SimStateData
	Init     TrackInitStateData
	StreamID domain.StreamID
}

// Size is the number of track slots.
func (s *StateData) Size() int { return s.Geometry.Pos.Len() }

// Valid reports whether every per-slot array has the same nonzero size.
func (s *StateData) Valid() bool {
	n := s.Size()
	if n == 0 || !s.StreamID.Valid() {
		return false
	}
	sizes := []int{
		s.Geometry.Dir.Len(), s.Geometry.Volume.Len(),
		s.Particle.ParticleID.Len(), s.Particle.Energy.Len(),
		s.Physics.InteractionMFP.Len(), s.Physics.MacroXS.Len(),
		s.Physics.EnergyDeposit.Len(), s.Physics.NumSecondaries.Len(),
		s.Rng.State.Len(),
		s.Sim.Status.Len(), s.Sim.TrackID.Len(), s.Sim.ParentID.Len(),
		s.Sim.EventID.Len(), s.Sim.NumSteps.Len(), s.Sim.StepLength.Len(),
		s.Sim.Time.Len(), s.Sim.Weight.Len(), s.Sim.PostStepAction.Len(),
		s.Sim.AlongStepAction.Len(), s.Init.Vacancies.Len(),
	}
	for _, m := range sizes {
		if m != n {
			return false
		}
	}
	return !s.Init.Initializers.Empty() && s.Init.Counters.Len() == 1 &&
		!s.Init.TrackCounters.Empty() && s.Physics.Secondaries.Len()%n == 0
}

// Bytes is the total memory held by the state.
func (s *StateData) Bytes() uint64 {
	return s.Geometry.Pos.Bytes() + s.Geometry.Dir.Bytes() + s.Geometry.Volume.Bytes() +
		s.Particle.ParticleID.Bytes() + s.Particle.Energy.Bytes() +
		s.Physics.InteractionMFP.Bytes() + s.Physics.MacroXS.Bytes() +
		s.Physics.EnergyDeposit.Bytes() + s.Physics.NumSecondaries.Bytes() +
		s.Physics.Secondaries.Bytes() + s.Rng.State.Bytes() +
		s.Sim.Status.Bytes() + s.Sim.TrackID.Bytes() + s.Sim.ParentID.Bytes() +
		s.Sim.EventID.Bytes() + s.Sim.NumSteps.Bytes() + s.Sim.StepLength.Bytes() +
		s.Sim.Time.Bytes() + s.Sim.Weight.Bytes() + s.Sim.PostStepAction.Bytes() +
		s.Sim.AlongStepAction.Bytes() + s.Init.Initializers.Bytes() +
		s.Init.Vacancies.Bytes() + s.Init.TrackCounters.Bytes() + s.Init.Counters.Bytes()
}

func resizeAll[T any](mem domain.MemSpace, n int, cs ...*collection.Collection[T]) {
	for _, c := range cs {
		*c = collection.New[T](mem)
		c.Resize(n)
	}
}

// Resize allocates every sub-state with size track slots in the given
// memory space. User-dependent conditions return an error; params must
// already be valid.
func Resize(s *StateData, params *ParamsData, mem domain.MemSpace, stream domain.StreamID, size int) error {
	assert.Expect(params.Valid(), "params are valid")
	assert.Expect(stream.Valid(), "stream ID is assigned")
	if int(stream) >= params.Scalars.MaxStreams {
		return domain.Validationf(domain.ErrStreamOutOfRange,
			"stream ID %d is out of range: max streams is %d", stream, params.Scalars.MaxStreams)
	}
	if size <= 0 {
		return domain.Validationf(domain.ErrZeroSize, "number of track slots is not set (got %d)", size)
	}

	s.StreamID = stream

	resizeAll(mem, size, &s.Geometry.Pos, &s.Geometry.Dir)
	resizeAll(mem, size, &s.Geometry.Volume)
	resizeAll(mem, size, &s.Particle.ParticleID)
	resizeAll(mem, size, &s.Particle.Energy, &s.Physics.InteractionMFP, &s.Physics.MacroXS,
		&s.Physics.EnergyDeposit, &s.Sim.StepLength, &s.Sim.Time, &s.Sim.Weight)
	resizeAll(mem, size, &s.Physics.NumSecondaries, &s.Sim.NumSteps)
	resizeAll(mem, size*params.Physics.SecondaryCapacity, &s.Physics.Secondaries)
	resizeAll(mem, size, &s.Rng.State)
	resizeAll(mem, size, &s.Sim.Status)
	resizeAll(mem, size, &s.Sim.TrackID, &s.Sim.ParentID)
	resizeAll(mem, size, &s.Sim.EventID)
	resizeAll(mem, size, &s.Sim.PostStepAction, &s.Sim.AlongStepAction)
	resizeAll(mem, params.Init.Capacity, &s.Init.Initializers)
	resizeAll(mem, size, &s.Init.Vacancies)
	resizeAll(mem, params.Init.MaxEvents, &s.Init.TrackCounters)
	resizeAll(mem, 1, &s.Init.Counters)

	collection.Fill(s.Geometry.Volume, domain.InvalidVolumeID)
	collection.Fill(s.Sim.TrackID, domain.InvalidTrackID)
	collection.Fill(s.Sim.ParentID, domain.InvalidTrackID)
	collection.Fill(s.Sim.EventID, domain.InvalidEventID)
	collection.Fill(s.Sim.PostStepAction, domain.InvalidActionID)
	collection.Fill(s.Sim.AlongStepAction, domain.InvalidActionID)
	collection.Fill(s.Sim.Status, domain.StatusInactive)
	collection.FillSequence(s.Init.Vacancies)
	s.Init.Counters.Set(0, domain.CoreStateCounters{NumVacancies: size})

	SeedRng(&s.Rng, params.Rng.Seed, stream, 0)

	assert.Ensure(s.Valid() && s.Size() == size, "resized state is valid")
	return nil
}

// SeedRng reinitializes every slot's stream from the run seed, the stream
// ID, and an event ID, so results do not depend on slot reuse history.
func SeedRng(r *RngStateData, seed uint64, stream domain.StreamID, event domain.EventID) {
	hi := seed ^ (uint64(event)+1)*0x9e3779b97f4a7c15
	for i := range r.State.Data() {
		lo := uint64(stream)<<32 | uint64(i)
		r.State.Set(i, *rand.NewPCG(hi, lo))
	}
}
