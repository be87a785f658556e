package stepping

import (
	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// DiscreteSelectAction chooses which model interacts for tracks that
// reached their sampled interaction point.
type DiscreteSelectAction struct {
	action.ConcreteAction
}

// NewDiscreteSelect creates the action with the given ID.
func NewDiscreteSelect(id domain.ActionID) *DiscreteSelectAction {
	return &DiscreteSelectAction{ConcreteAction: action.NewConcreteAction(id, "discrete-select", "select a discrete interaction")}
}

// Order runs between along-step and post-step.
func (a *DiscreteSelectAction) Order() domain.StepActionOrder { return domain.OrderPrePost }

// Step samples a model in proportion to its cross section at the
// post-step energy.
func (a *DiscreteSelectAction) Step(params *core.Params, state *core.State) error {
	p := params.Ref()
	data := state.Ref()
	launchAll(state, a.Label(), func(i int) {
		if data.Sim.PostStepAction.At(i) != a.ActionID() || data.Sim.Status.At(i) != domain.StatusAlive {
			return
		}
		pid := data.Particle.ParticleID.At(i)
		mat := p.Geometry.Materials[data.Geometry.Volume.At(i)]
		energy := data.Particle.Energy.At(i)

		total := p.Physics.TotalXS(pid, mat, energy)
		if total <= 0 {
			data.Sim.PostStepAction.Set(i, p.Scalars.PropagationLimitAction)
			return
		}
		target := data.Rng.Uniform(domain.TrackSlotID(i)) * total
		selected := domain.InvalidActionID
		for m := range p.Physics.Models {
			model := &p.Physics.Models[m]
			if model.Particle != pid {
				continue
			}
			selected = p.Physics.ModelActions[m]
			target -= model.XS[mat].Eval(energy)
			if target < 0 {
				break
			}
		}
		data.Sim.PostStepAction.Set(i, selected)
	})
	return nil
}

// BoundaryAction moves tracks that reached a slab boundary into the next
// slab, killing those that leave the world.
type BoundaryAction struct {
	action.ConcreteAction
}

// NewBoundary creates the action with the given ID.
func NewBoundary(id domain.ActionID) *BoundaryAction {
	return &BoundaryAction{ConcreteAction: action.NewConcreteAction(id, "geo-boundary", "cross a geometry boundary")}
}

// Order is post-step.
func (a *BoundaryAction) Order() domain.StepActionOrder { return domain.OrderPost }

// Step crosses the boundary in the direction of travel.
func (a *BoundaryAction) Step(params *core.Params, state *core.State) error {
	geo := params.Ref().Geometry
	data := state.Ref()
	launchAll(state, a.Label(), func(i int) {
		if data.Sim.PostStepAction.At(i) != a.ActionID() || data.Sim.Status.At(i) != domain.StatusAlive {
			return
		}
		vol := data.Geometry.Volume.At(i)
		pos := data.Geometry.Pos.At(i)
		if data.Geometry.Dir.At(i)[2] > 0 {
			pos[2] = geo.Bounds[vol+1]
			vol++
		} else {
			pos[2] = geo.Bounds[vol]
			vol--
		}
		data.Geometry.Pos.Set(i, pos)
		if vol < 0 || int(vol) >= geo.NumVolumes() {
			data.Geometry.Volume.Set(i, domain.InvalidVolumeID)
			data.Sim.Status.Set(i, domain.StatusKilled)
			return
		}
		data.Geometry.Volume.Set(i, vol)
	})
	return nil
}

// PropagationLimitAction marks tracks whose step was truncated without
// reaching a boundary or interaction. The along-step already moved them.
type PropagationLimitAction struct {
	action.ConcreteAction
}

// NewPropagationLimit creates the action with the given ID.
func NewPropagationLimit(id domain.ActionID) *PropagationLimitAction {
	return &PropagationLimitAction{ConcreteAction: action.NewConcreteAction(id, "geo-propagation-limit", "propagation substep/range limit")}
}

// Order is post-step.
func (a *PropagationLimitAction) Order() domain.StepActionOrder { return domain.OrderPost }

// Step has no per-track effect.
func (a *PropagationLimitAction) Step(*core.Params, *core.State) error { return nil }

// TrackingCutAction kills errored tracks and tracks below the energy
// cutoff, depositing their remaining energy locally.
type TrackingCutAction struct {
	action.ConcreteAction
}

// NewTrackingCut creates the action with the given ID.
func NewTrackingCut(id domain.ActionID) *TrackingCutAction {
	return &TrackingCutAction{ConcreteAction: action.NewConcreteAction(id, "tracking-cut", "kill a track and deposit its energy")}
}

// Order is post-step.
func (a *TrackingCutAction) Order() domain.StepActionOrder { return domain.OrderPost }

// Step kills the assigned tracks.
func (a *TrackingCutAction) Step(_ *core.Params, state *core.State) error {
	data := state.Ref()
	launchAll(state, a.Label(), func(i int) {
		if data.Sim.PostStepAction.At(i) != a.ActionID() {
			return
		}
		if st := data.Sim.Status.At(i); st != domain.StatusAlive && st != domain.StatusErrored {
			return
		}
		deposit := data.Physics.EnergyDeposit.At(i) + data.Particle.Energy.At(i)
		data.Physics.EnergyDeposit.Set(i, deposit)
		data.Particle.Energy.Set(i, 0)
		data.Sim.Status.Set(i, domain.StatusKilled)
	})
	return nil
}
