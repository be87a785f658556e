package optical

import (
	"math"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/track"
)

// cLight is the speed of light in vacuum in cm/ns.
const cLight = 29.9792458

func launchAll(state *State, label string, body func(slot int)) {
	state.Launch(label, state.Size(), body)
}

// PreStepAction promotes new photons, applies the step limit, and samples
// the distance to the next discrete interaction.
type PreStepAction struct {
	action.ConcreteAction
}

// NewPreStep creates the action with the given ID.
func NewPreStep(id domain.ActionID) *PreStepAction {
	return &PreStepAction{ConcreteAction: action.NewConcreteAction(id, "optical-pre-step", "update beginning-of-step optical state")}
}

// Order is pre-step.
func (a *PreStepAction) Order() domain.StepActionOrder { return domain.OrderPre }

// Step runs the pre-step kernel.
func (a *PreStepAction) Step(params *CoreParams, state *State) error {
	p := params.Ref()
	data := state.Ref()
	launchAll(state, a.Label(), func(i int) {
		sim := &data.Sim
		status := sim.Status.At(i)
		if status == domain.StatusInactive {
			return
		}
		if status == domain.StatusInitializing {
			status = domain.StatusAlive
			if !data.Geometry.Volume.At(i).Valid() {
				status = domain.StatusErrored
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

		mat := p.Geometry.Materials[data.Geometry.Volume.At(i)]
		xs := p.Physics.TotalXS(mat, data.Energy.At(i))
		data.Physics.MacroXS.Set(i, xs)
		if xs <= 0 {
			sim.StepLength.Set(i, math.Inf(1))
			sim.PostStepAction.Set(i, domain.InvalidActionID)
			return
		}
		mfp := data.Physics.InteractionMFP.At(i)
		if mfp <= 0 {
			mfp = -math.Log(1 - data.Rng.Uniform(domain.TrackSlotID(i)))
			data.Physics.InteractionMFP.Set(i, mfp)
		}
		sim.StepLength.Set(i, mfp/xs)
		sim.PostStepAction.Set(i, p.Physics.DiscreteAction())
	})
	return nil
}

// AlongStepAction moves photons in a straight line to the interaction
// point or the next slab boundary. At a boundary the photon is reflected or
// transmitted according to the surface reflectivity; photons crossing the
// world boundary escape and are killed.
type AlongStepAction struct {
	action.ConcreteAction
}

// NewAlongStep creates the action with the given ID.
func NewAlongStep(id domain.ActionID) *AlongStepAction {
	return &AlongStepAction{ConcreteAction: action.NewConcreteAction(id, "optical-along-step", "move optical photons")}
}

// Order is along-step.
func (a *AlongStepAction) Order() domain.StepActionOrder { return domain.OrderAlong }

// Step runs the along-step kernel.
func (a *AlongStepAction) Step(params *CoreParams, state *State) error {
	p := params.Ref()
	data := state.Ref()
	launchAll(state, a.Label(), func(i int) {
		sim := &data.Sim
		if sim.Status.At(i) != domain.StatusAlive {
			return
		}
		slot := domain.TrackSlotID(i)
		pos := data.Geometry.Pos.At(i)
		dir := data.Geometry.Dir.At(i)
		vol := data.Geometry.Volume.At(i)
		step := sim.StepLength.At(i)

		geo := p.Geometry.DistanceToBoundary(vol, pos[2], dir[2])
		if math.IsInf(step, 1) && math.IsInf(geo, 1) {
			// Travelling parallel to the slabs in a transparent medium.
			sim.Status.Set(i, domain.StatusErrored)
			return
		}
		crossing := geo <= step
		if crossing {
			step = geo
		}
		for k := range pos {
			pos[k] += dir[k] * step
		}
		n := p.Material.Materials[p.Geometry.Materials[vol]].RefractiveIndex
		sim.Time.Set(i, sim.Time.At(i)+step*n/cLight)
		sim.StepLength.Set(i, step)

		if !crossing {
			data.Geometry.Pos.Set(i, pos)
			data.Physics.InteractionMFP.Set(i, 0)
			return
		}

		mfp := data.Physics.InteractionMFP.At(i) - step*data.Physics.MacroXS.At(i)
		data.Physics.InteractionMFP.Set(i, math.Max(mfp, 0))
		sim.PostStepAction.Set(i, domain.InvalidActionID)

		next := vol - 1
		if dir[2] > 0 {
			next = vol + 1
			pos[2] = p.Geometry.Bounds[vol+1]
		} else {
			pos[2] = p.Geometry.Bounds[vol]
		}
		data.Geometry.Pos.Set(i, pos)
		if next < 0 || int(next) >= p.Geometry.NumVolumes() {
			data.Geometry.Volume.Set(i, domain.InvalidVolumeID)
			sim.Status.Set(i, domain.StatusKilled)
			return
		}
		if data.Rng.Uniform(slot) < p.SurfacePhysics.Reflectivity[min(vol, next)] {
			dir[2] = -dir[2]
			data.Geometry.Dir.Set(i, dir)
			return
		}
		data.Geometry.Volume.Set(i, next)
	})
	return nil
}

// TrackingCutAction kills errored photons.
type TrackingCutAction struct {
	action.ConcreteAction
}

// NewTrackingCut creates the action with the given ID.
func NewTrackingCut(id domain.ActionID) *TrackingCutAction {
	return &TrackingCutAction{ConcreteAction: action.NewConcreteAction(id, "optical-tracking-cut", "kill an optical photon")}
}

// Order is post-step.
func (a *TrackingCutAction) Order() domain.StepActionOrder { return domain.OrderPost }

// Step kills the assigned photons.
func (a *TrackingCutAction) Step(_ *CoreParams, state *State) error {
	data := state.Ref()
	launchAll(state, a.Label(), func(i int) {
		if data.Sim.PostStepAction.At(i) != a.ActionID() {
			return
		}
		if st := data.Sim.Status.At(i); st == domain.StatusAlive || st == domain.StatusErrored {
			data.Energy.Set(i, 0)
			data.Sim.Status.Set(i, domain.StatusKilled)
		}
	})
	return nil
}

// LocateVacanciesAction rebuilds the vacancy list at the end of the step.
type LocateVacanciesAction struct {
	action.ConcreteAction
}

// NewLocateVacancies creates the action with the given ID.
func NewLocateVacancies(id domain.ActionID) *LocateVacanciesAction {
	return &LocateVacanciesAction{ConcreteAction: action.NewConcreteAction(id, "optical-locate-vacancies", "locate empty optical track slots")}
}

// Order is end of step.
func (a *LocateVacanciesAction) Order() domain.StepActionOrder { return domain.OrderEnd }

// Step rebuilds the vacancies and updates the alive count.
func (a *LocateVacanciesAction) Step(_ *CoreParams, state *State) error {
	data := state.Ref()
	return state.Execute(a.Label(), func() error {
		c := state.Counters()
		c.NumVacancies = track.LocateVacancies(data.Sim.Status, data.Init.Vacancies)
		c.NumAlive = state.Size() - c.NumVacancies
		return nil
	})
}

// DiscreteSelectAction picks the model for photons that reached their
// interaction point, in proportion to each model's inverse MFP.
type DiscreteSelectAction struct {
	action.ConcreteAction
}

// NewDiscreteSelect creates the action with the given ID.
func NewDiscreteSelect(id domain.ActionID) *DiscreteSelectAction {
	return &DiscreteSelectAction{ConcreteAction: action.NewConcreteAction(id, "optical-discrete-select", "select a discrete optical interaction")}
}

// Order runs between along-step and post-step.
func (a *DiscreteSelectAction) Order() domain.StepActionOrder { return domain.OrderPrePost }

// Step samples a model for each selected photon.
func (a *DiscreteSelectAction) Step(params *CoreParams, state *State) error {
	p := params.Ref()
	data := state.Ref()
	launchAll(state, a.Label(), func(i int) {
		if data.Sim.PostStepAction.At(i) != a.ActionID() || data.Sim.Status.At(i) != domain.StatusAlive {
			return
		}
		mat := p.Geometry.Materials[data.Geometry.Volume.At(i)]
		energy := data.Energy.At(i)
		target := data.Rng.Uniform(domain.TrackSlotID(i)) * data.Physics.MacroXS.At(i)
		selected := domain.InvalidActionID
		for m := 0; m < p.Physics.NumModels(); m++ {
			xs := p.Physics.XS(m, mat, energy)
			if xs == 0 {
				continue
			}
			selected = p.Physics.ModelAction(m)
			if target -= xs; target < 0 {
				break
			}
		}
		data.Sim.PostStepAction.Set(i, selected)
	})
	return nil
}
