package stepping

import (
	"math"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// AlongStepAction moves alive tracks in a straight line to the nearest of
// the physics interaction point, the slab boundary, or the propagation
// limit, applying continuous energy loss to charged particles.
type AlongStepAction struct {
	action.ConcreteAction
}

// NewAlongStep creates the action with the given ID.
func NewAlongStep(id domain.ActionID) *AlongStepAction {
	return &AlongStepAction{ConcreteAction: action.NewConcreteAction(id, "along-step", "straight-line propagation with continuous loss")}
}

// Order is along-step.
func (a *AlongStepAction) Order() domain.StepActionOrder { return domain.OrderAlong }

// Step runs the along-step kernel.
func (a *AlongStepAction) Step(params *core.Params, state *core.State) error {
	p := params.Ref()
	data := state.Ref()
	lo, hi := p.Geometry.Bounds[0], p.Geometry.Bounds[len(p.Geometry.Bounds)-1]
	propagationLimit := hi - lo

	launchAll(state, a.Label(), func(i int) {
		sim := &data.Sim
		if sim.Status.At(i) != domain.StatusAlive || sim.AlongStepAction.At(i) != a.ActionID() {
			return
		}

		step := sim.StepLength.At(i)
		post := sim.PostStepAction.At(i)
		if step > propagationLimit {
			step = propagationLimit
			post = p.Scalars.PropagationLimitAction
		}

		pos := data.Geometry.Pos.At(i)
		dir := data.Geometry.Dir.At(i)
		vol := data.Geometry.Volume.At(i)
		if geo := p.Geometry.DistanceToBoundary(vol, pos[2], dir[2]); geo <= step {
			step = geo
			post = p.Scalars.BoundaryAction
		}

		for k := range pos {
			pos[k] += dir[k] * step
		}
		data.Geometry.Pos.Set(i, pos)

		pid := data.Particle.ParticleID.At(i)
		def := p.Particle.Particles[pid]
		energy := data.Particle.Energy.At(i)
		sim.Time.Set(i, sim.Time.At(i)+step/speed(def, energy))

		if post == p.Scalars.DiscreteSelectAction {
			data.Physics.InteractionMFP.Set(i, 0)
		} else {
			mfp := data.Physics.InteractionMFP.At(i) - step*data.Physics.MacroXS.At(i)
			data.Physics.InteractionMFP.Set(i, math.Max(mfp, 0))
		}

		if def.Charge != 0 {
			loss := math.Min(energy, p.Material.Materials[p.Geometry.Materials[vol]].EnergyLoss*step)
			energy -= loss
			data.Particle.Energy.Set(i, energy)
			data.Physics.EnergyDeposit.Set(i, data.Physics.EnergyDeposit.At(i)+loss)
		}
		if energy <= p.Physics.EnergyCutoff {
			post = p.Scalars.TrackingCutAction
		}

		sim.StepLength.Set(i, step)
		sim.PostStepAction.Set(i, post)
	})
	return nil
}
