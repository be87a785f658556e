package stepping

import (
	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// ModelAction applies one discrete model to the tracks that selected it.
type ModelAction struct {
	action.ConcreteAction
	model int
}

// NewModelAction creates the action for the model at index model.
func NewModelAction(id domain.ActionID, model int, m core.Model) *ModelAction {
	return &ModelAction{
		ConcreteAction: action.NewConcreteAction(id, m.Label, "interact by "+m.Kind.String()),
		model:          model,
	}
}

// Order is post-step.
func (a *ModelAction) Order() domain.StepActionOrder { return domain.OrderPost }

// Step runs the interactor kernel.
func (a *ModelAction) Step(params *core.Params, state *core.State) error {
	p := params.Ref()
	model := &p.Physics.Models[a.model]
	perTrack := p.Physics.SecondaryCapacity
	data := state.Ref()

	launchAll(state, a.Label(), func(i int) {
		if data.Sim.PostStepAction.At(i) != a.ActionID() || data.Sim.Status.At(i) != domain.StatusAlive {
			return
		}
		slot := domain.TrackSlotID(i)
		energy := data.Particle.Energy.At(i)

		switch model.Kind {
		case core.ModelAbsorption:
			data.Physics.EnergyDeposit.Set(i, data.Physics.EnergyDeposit.At(i)+energy)
			data.Particle.Energy.Set(i, 0)
			data.Sim.Status.Set(i, domain.StatusKilled)
		case core.ModelScatter:
			data.Geometry.Dir.Set(i, isotropic(&data.Rng, slot))
		case core.ModelSplit:
			n := int(data.Physics.NumSecondaries.At(i))
			if n >= perTrack {
				data.Sim.Status.Set(i, domain.StatusErrored)
				return
			}
			emitted := energy * model.EnergyFraction
			data.Physics.Secondaries.Set(i*perTrack+n, domain.Secondary{
				ParticleID: model.Secondary,
				Energy:     emitted,
				Direction:  isotropic(&data.Rng, slot),
			})
			data.Physics.NumSecondaries.Set(i, int32(n+1))
			data.Particle.Energy.Set(i, energy-emitted)
		}
	})
	return nil
}
