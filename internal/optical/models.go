package optical

import (
	"math"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/grid"
)

// MieParams parameterizes Mie scattering in a material as a mix of
// forward and backward Henyey-Greenstein lobes.
type MieParams struct {
	Forward      float64 // forward asymmetry parameter g
	Backward     float64 // backward asymmetry parameter g
	ForwardRatio float64 // probability of the forward lobe
}

// WLSParams describes wavelength shifting in a material.
type WLSParams struct {
	MeanNumPhotons float64 // re-emitted photons per absorption
	TimeConstant   float64 // ns
	Energy         float64 // re-emitted photon energy, eV
}

var modelDescriptions = [...]string{
	"interact by optical absorption",
	"interact by optical Rayleigh",
	"interact by optical Mie",
	"interact by optical wavelength shifting",
	"interact by optical wavelength shifting (delta time profile)",
}

// model holds what every optical model shares: its identity and its
// imported per-material MFP grids.
type model struct {
	action.ConcreteAction
	kind  ModelKind
	grids []grid.Grid
}

func newModel(id domain.ActionID, kind ModelKind, grids []grid.Grid) model {
	return model{
		ConcreteAction: action.NewConcreteAction(id, "optical-"+kind.String(), modelDescriptions[kind]),
		kind:           kind,
		grids:          grids,
	}
}

// Kind is the optical process.
func (m *model) Kind() ModelKind { return m.kind }

// Order is post-step.
func (m *model) Order() domain.StepActionOrder { return domain.OrderPost }

// BuildMFPs pushes the imported grid for mat, or an empty grid if none was
// imported.
func (m *model) BuildMFPs(mat domain.MaterialID, b *MFPBuilder) {
	if int(mat) < len(m.grids) {
		b.Push(m.grids[mat])
		return
	}
	b.PushEmpty()
}

func (m *model) applies(data *StateData, i int) bool {
	return data.Sim.PostStepAction.At(i) == m.ActionID() && data.Sim.Status.At(i) == domain.StatusAlive
}

// AbsorptionModel kills photons.
type AbsorptionModel struct{ model }

// NewAbsorptionModel creates the model.
func NewAbsorptionModel(id domain.ActionID, grids []grid.Grid) *AbsorptionModel {
	return &AbsorptionModel{newModel(id, ModelAbsorption, grids)}
}

// Step absorbs every selected photon.
func (m *AbsorptionModel) Step(_ *CoreParams, state *State) error {
	data := state.Ref()
	launchAll(state, m.Label(), func(i int) {
		if !m.applies(data, i) {
			return
		}
		data.Energy.Set(i, 0)
		data.Sim.Status.Set(i, domain.StatusKilled)
	})
	return nil
}

// RayleighModel scatters photons with a (1 + cos^2) angular distribution.
type RayleighModel struct{ model }

// NewRayleighModel creates the model.
func NewRayleighModel(id domain.ActionID, grids []grid.Grid) *RayleighModel {
	return &RayleighModel{newModel(id, ModelRayleigh, grids)}
}

// Step scatters every selected photon.
func (m *RayleighModel) Step(_ *CoreParams, state *State) error {
	data := state.Ref()
	launchAll(state, m.Label(), func(i int) {
		if !m.applies(data, i) {
			return
		}
		slot := domain.TrackSlotID(i)
		uniform := func() float64 { return data.Rng.Uniform(slot) }
		cost := sampleRayleighCosine(uniform)
		data.Geometry.Dir.Set(i, rotate(data.Geometry.Dir.At(i), cost, 2*math.Pi*uniform()))
	})
	return nil
}

// MieModel scatters photons with a two-lobe Henyey-Greenstein
// distribution.
type MieModel struct {
	model
	params []MieParams // indexed by material
}

// NewMieModel creates the model.
func NewMieModel(id domain.ActionID, grids []grid.Grid, params []MieParams) *MieModel {
	return &MieModel{model: newModel(id, ModelMie, grids), params: params}
}

// Step scatters every selected photon.
func (m *MieModel) Step(params *CoreParams, state *State) error {
	p := params.Ref()
	data := state.Ref()
	launchAll(state, m.Label(), func(i int) {
		if !m.applies(data, i) {
			return
		}
		slot := domain.TrackSlotID(i)
		uniform := func() float64 { return data.Rng.Uniform(slot) }
		mie := m.params[p.Geometry.Materials[data.Geometry.Volume.At(i)]]
		g := -mie.Backward
		if uniform() < mie.ForwardRatio {
			g = mie.Forward
		}
		cost := sampleHenyeyGreenstein(g, uniform)
		data.Geometry.Dir.Set(i, rotate(data.Geometry.Dir.At(i), cost, 2*math.Pi*uniform()))
	})
	return nil
}

// WLSModel absorbs photons and re-emits a Poisson-distributed number of
// lower-energy photons. The first re-emitted photon reuses the track slot;
// the rest are queued as initializers.
type WLSModel struct {
	model
	params []WLSParams // indexed by material
}

// NewWLSModel creates a wavelength shifting model. kind must be ModelWLS
// (exponential re-emission delay) or ModelWLS2 (fixed delay).
func NewWLSModel(id domain.ActionID, kind ModelKind, grids []grid.Grid, params []WLSParams) *WLSModel {
	return &WLSModel{model: newModel(id, kind, grids), params: params}
}

// Step re-emits the selected photons in slot order.
func (m *WLSModel) Step(params *CoreParams, state *State) error {
	p := params.Ref()
	data := state.Ref()
	return state.Execute(m.Label(), func() error {
		c := state.Counters()
		capacity := data.Init.Initializers.Len()
		for i := 0; i < state.Size(); i++ {
			if !m.applies(data, i) {
				continue
			}
			slot := domain.TrackSlotID(i)
			uniform := func() float64 { return data.Rng.Uniform(slot) }
			wls := m.params[p.Geometry.Materials[data.Geometry.Volume.At(i)]]

			n := samplePoisson(wls.MeanNumPhotons, uniform)
			if n == 0 {
				data.Energy.Set(i, 0)
				data.Sim.Status.Set(i, domain.StatusKilled)
				continue
			}
			emit := func() Photon {
				delay := wls.TimeConstant
				if m.kind == ModelWLS {
					delay = -wls.TimeConstant * math.Log(1-uniform())
				}
				return Photon{
					Energy:    wls.Energy,
					Position:  data.Geometry.Pos.At(i),
					Direction: isotropic(&data.Rng, slot),
					Time:      data.Sim.Time.At(i) + delay,
				}
			}

			first := emit()
			data.Energy.Set(i, first.Energy)
			data.Geometry.Dir.Set(i, first.Direction)
			data.Sim.Time.Set(i, first.Time)
			data.Physics.InteractionMFP.Set(i, 0)
			for k := 1; k < n; k++ {
				if c.NumInitializers >= capacity {
					return domain.Validationf(domain.ErrCapacityExceeded,
						"insufficient optical initializer capacity (%d) for wavelength-shifted photons", capacity)
				}
				data.Init.Initializers.Set(c.NumInitializers, emit())
				c.NumInitializers++
			}
		}
		return nil
	})
}
