package track

import (
	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// InitializeTracksAction moves pending initializers into vacant slots. Both
// are taken from the back of their buffers, so the most recently created
// initializers are placed first.
type InitializeTracksAction struct {
	action.ConcreteAction
}

// NewInitializeTracks creates the action with the given ID.
func NewInitializeTracks(id domain.ActionID) *InitializeTracksAction {
	return &InitializeTracksAction{
		ConcreteAction: action.NewConcreteAction(id, "initialize-tracks",
			"initialize track states from pending initializers"),
	}
}

// Order places the action at the start of the step.
func (a *InitializeTracksAction) Order() domain.StepActionOrder { return domain.OrderStart }

// Step fills min(vacancies, initializers) slots.
func (a *InitializeTracksAction) Step(params *core.Params, state *core.State) error {
	data := state.Ref()
	p := params.Ref()
	return state.Execute(a.Label(), func() error {
		c := state.Counters()
		n := min(c.NumVacancies, c.NumInitializers)
		if n > 0 {
			numInit, numVac := c.NumInitializers, c.NumVacancies
			err := state.ParallelFor(n, func(tid int) {
				init := data.Init.Initializers.At(numInit - tid - 1)
				slot := int(data.Init.Vacancies.At(numVac - tid - 1))
				initTrack(p, data, slot, init)
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

func initTrack(p *core.ParamsData, data *core.StateData, slot int, init domain.TrackInitializer) {
	data.Sim.Status.Set(slot, domain.StatusInitializing)
	data.Sim.TrackID.Set(slot, init.TrackID)
	data.Sim.ParentID.Set(slot, init.ParentID)
	data.Sim.EventID.Set(slot, init.EventID)
	data.Sim.NumSteps.Set(slot, 0)
	data.Sim.StepLength.Set(slot, 0)
	data.Sim.Time.Set(slot, init.Time)
	data.Sim.Weight.Set(slot, init.Weight)
	data.Sim.PostStepAction.Set(slot, domain.InvalidActionID)
	data.Sim.AlongStepAction.Set(slot, p.Scalars.AlongStepAction)

	data.Particle.ParticleID.Set(slot, init.ParticleID)
	data.Particle.Energy.Set(slot, init.Energy)

	data.Geometry.Pos.Set(slot, init.Position)
	data.Geometry.Dir.Set(slot, init.Direction)
	data.Geometry.Volume.Set(slot, p.Geometry.Locate(init.Position[2]))

	data.Physics.InteractionMFP.Set(slot, 0)
	data.Physics.MacroXS.Set(slot, 0)
	data.Physics.EnergyDeposit.Set(slot, 0)
	data.Physics.NumSecondaries.Set(slot, 0)
}
