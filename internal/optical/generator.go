package optical

import (
	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// GeneratorLabel is the registry label of the direct photon generator.
const GeneratorLabel = "optical-generate"

// GeneratorAction fills vacant slots from photons queued by Insert. Both
// are taken from the back of their buffers.
type GeneratorAction struct {
	action.ConcreteAction
	gen GeneratorID
}

// NewGenerator creates the generator for an action ID and generator ID.
func NewGenerator(id domain.ActionID, gen GeneratorID) *GeneratorAction {
	return &GeneratorAction{
		ConcreteAction: action.NewConcreteAction(id, GeneratorLabel, "generate optical photons from a direct list"),
		gen:            gen,
	}
}

// FindGenerator returns the registered generator action.
func FindGenerator(params *CoreParams) (*GeneratorAction, error) {
	reg := params.ActionRegistry()
	id := reg.FindAction(GeneratorLabel)
	if !id.Valid() {
		return nil, domain.Validationf(domain.ErrActionNotFound, "optical generator was not added to the stepping loop")
	}
	g, ok := reg.Action(id).(*GeneratorAction)
	if !ok {
		return nil, domain.Validationf(domain.ErrActionNotFound, "incorrect type for '%s' action", GeneratorLabel)
	}
	return g, nil
}

// GeneratorID is the ID in the generator registry.
func (a *GeneratorAction) GeneratorID() GeneratorID { return a.gen }

// Order places generation at the start of the step.
func (a *GeneratorAction) Order() domain.StepActionOrder { return domain.OrderStart }

// Insert queues photons on the host.
func (a *GeneratorAction) Insert(params *CoreParams, state *State, photons []Photon) error {
	capacity := params.Ref().Capacity
	if len(photons) > capacity.Primaries {
		return domain.Validationf(domain.ErrCapacityExceeded,
			"optical primaries (%d) exceed the per-insertion capacity (%d)", len(photons), capacity.Primaries)
	}
	c := state.SyncGetCounters()
	if c.NumInitializers+len(photons) > capacity.Generators {
		return domain.Validationf(domain.ErrCapacityExceeded,
			"insufficient optical initializer capacity (%d) with size (%d) for photons (%d)",
			capacity.Generators, c.NumInitializers, len(photons))
	}
	for i, ph := range photons {
		if !(ph.Energy > 0) {
			return domain.Validationf(domain.ErrInvalidPrimary, "optical photon %d has energy %g eV", i, ph.Energy)
		}
		state.Ref().Init.Initializers.Set(c.NumInitializers+i, ph)
	}
	state.Counters().NumInitializers += len(photons)
	return nil
}

// Step moves queued photons into vacant slots.
func (a *GeneratorAction) Step(params *CoreParams, state *State) error {
	p := params.Ref()
	data := state.Ref()
	return state.Execute(a.Label(), func() error {
		c := state.Counters()
		n := min(c.NumVacancies, c.NumInitializers)
		c.NumGenerated = n
		if n > 0 {
			numInit, numVac := c.NumInitializers, c.NumVacancies
			err := state.ParallelFor(n, func(tid int) {
				ph := data.Init.Initializers.At(numInit - tid - 1)
				slot := int(data.Init.Vacancies.At(numVac - tid - 1))
				data.Sim.Status.Set(slot, domain.StatusInitializing)
				data.Sim.NumSteps.Set(slot, 0)
				data.Sim.StepLength.Set(slot, 0)
				data.Sim.Time.Set(slot, ph.Time)
				data.Sim.PostStepAction.Set(slot, domain.InvalidActionID)
				data.Energy.Set(slot, ph.Energy)
				data.Geometry.Pos.Set(slot, ph.Position)
				data.Geometry.Dir.Set(slot, ph.Direction)
				data.Geometry.Volume.Set(slot, p.Geometry.Locate(ph.Position[2]))
				data.Physics.InteractionMFP.Set(slot, 0)
				data.Physics.MacroXS.Set(slot, 0)
			})
			if err != nil {
				return err
			}
			c.NumInitializers -= n
			c.NumVacancies -= n
		}
		c.NumActive = state.Size() - c.NumVacancies
		return nil
	})
}
