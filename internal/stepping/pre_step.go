package stepping

import (
	"math"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// PreStepAction promotes new tracks, applies the step limit, and samples
// the physics step length.
type PreStepAction struct {
	action.ConcreteAction
}

// NewPreStep creates the action with the given ID.
func NewPreStep(id domain.ActionID) *PreStepAction {
	return &PreStepAction{ConcreteAction: action.NewConcreteAction(id, "pre-step", "update beginning-of-step state")}
}

// Order is pre-step.
func (a *PreStepAction) Order() domain.StepActionOrder { return domain.OrderPre }

// Step runs the pre-step kernel.
func (a *PreStepAction) Step(params *core.Params, state *core.State) error {
	p := params.Ref()
	data := state.Ref()
	launchAll(state, a.Label(), func(i int) {
		slot := domain.TrackSlotID(i)
		sim := &data.Sim
		status := sim.Status.At(i)
		if status == domain.StatusInactive {
			return
		}
		data.Physics.NumSecondaries.Set(i, 0)
		data.Physics.EnergyDeposit.Set(i, 0)

		if status == domain.StatusInitializing {
			if !data.Geometry.Volume.At(i).Valid() {
				status = domain.StatusErrored
			} else {
				status = domain.StatusAlive
			}
			sim.Status.Set(i, status)
		}
		if status == domain.StatusAlive {
			steps := sim.NumSteps.At(i) + 1
			sim.NumSteps.Set(i, steps)
			if int(steps) > p.Sim.MaxSteps {
				status = domain.StatusErrored
				sim.Status.Set(i, status)
			}
		}
		if status == domain.StatusErrored {
			sim.StepLength.Set(i, 0)
			sim.PostStepAction.Set(i, p.Scalars.TrackingCutAction)
			return
		}

		vol := data.Geometry.Volume.At(i)
		mat := p.Geometry.Materials[vol]
		xs := p.Physics.TotalXS(data.Particle.ParticleID.At(i), mat, data.Particle.Energy.At(i))
		data.Physics.MacroXS.Set(i, xs)

		mfp := data.Physics.InteractionMFP.At(i)
		if mfp <= 0 {
			mfp = -math.Log(1 - data.Rng.Uniform(slot))
			data.Physics.InteractionMFP.Set(i, mfp)
		}
		if xs > 0 {
			sim.StepLength.Set(i, mfp/xs)
			sim.PostStepAction.Set(i, p.Scalars.DiscreteSelectAction)
		} else {
			sim.StepLength.Set(i, math.Inf(1))
			sim.PostStepAction.Set(i, p.Scalars.PropagationLimitAction)
		}
	})
	return nil
}
