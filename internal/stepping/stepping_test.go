package stepping_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/grid"
	"github.com/celeritas-project/celer-engine/internal/stepping"
)

const (
	electron domain.ParticleID = 0
	gamma    domain.ParticleID = 1
)

func setup(t *testing.T, maxSteps int) (*core.Params, stepping.Actions, *core.State) {
	t.Helper()
	energies := []float64{0.01, 1000}
	flat := func(v float64) grid.Grid { return grid.MustNew(energies, []float64{v, v}) }
	params, actions, err := stepping.BuildParams(core.Input{
		Geometry: &core.GeoParams{Bounds: []float64{-10, 0, 10}, Materials: []domain.MaterialID{0, 1}},
		Material: &core.MaterialParams{Materials: []core.Material{
			{Name: "water", EnergyLoss: 2},
			{Name: "lead", EnergyLoss: 12},
		}},
		Particle: &core.ParticleParams{Particles: []core.ParticleDef{
			{Name: "e-", Mass: 0.511, Charge: -1},
			{Name: "gamma"},
		}},
		Physics: &core.PhysicsParams{
			Models: []core.Model{
				{Label: "brems", Kind: core.ModelSplit, Particle: electron, Secondary: gamma,
					EnergyFraction: 0.25, XS: []grid.Grid{flat(0.1), flat(0.5)}},
				{Label: "photoelectric", Kind: core.ModelAbsorption, Particle: gamma,
					XS: []grid.Grid{flat(0.05), flat(0.2)}},
			},
			SecondaryCapacity: 1,
			EnergyCutoff:      0.01,
		},
		Rng:        &core.RngParams{Seed: 99},
		Sim:        &core.SimParams{MaxSteps: maxSteps},
		Init:       &core.TrackInitParams{Capacity: 16, MaxEvents: 1},
		MaxStreams: 1,
	}, stepping.Options{})
	require.NoError(t, err)
	state, err := core.NewState(params, domain.MemSpaceHost, 0, 4)
	require.NoError(t, err)
	t.Cleanup(state.Close)
	return params, actions, state
}

// place puts a track directly into a slot.
func place(params *core.Params, state *core.State, slot int, status domain.TrackStatus, pid domain.ParticleID, z, dz, energy float64) {
	data := state.Ref()
	data.Sim.Status.Set(slot, status)
	data.Sim.AlongStepAction.Set(slot, params.Ref().Scalars.AlongStepAction)
	data.Particle.ParticleID.Set(slot, pid)
	data.Particle.Energy.Set(slot, energy)
	data.Geometry.Pos.Set(slot, domain.Vec3{0, 0, z})
	data.Geometry.Dir.Set(slot, domain.Vec3{0, 0, dz})
	data.Geometry.Volume.Set(slot, params.Ref().Geometry.Locate(z))
}

func TestBuildParamsRegistersActions(t *testing.T) {
	params, actions, _ := setup(t, 10)
	reg := params.ActionRegistry()
	for _, label := range []string{
		"extend-from-primaries", "initialize-tracks", "locate-vacancies", "extend-from-secondaries",
		"pre-step", "along-step", "discrete-select", "geo-boundary", "geo-propagation-limit",
		"tracking-cut", "brems", "photoelectric",
	} {
		assert.True(t, reg.FindAction(label).Valid(), label)
	}
	assert.False(t, reg.FindAction("status-check").Valid())

	scalars := params.Ref().Scalars
	assert.Equal(t, actions.Boundary.ActionID(), scalars.BoundaryAction)
	assert.Equal(t, actions.TrackingCut.ActionID(), scalars.TrackingCutAction)
	require.Len(t, actions.Models, 2)
	assert.Equal(t, []domain.ActionID{actions.Models[0].ActionID(), actions.Models[1].ActionID()},
		params.Ref().Physics.ModelActions)
}

func TestPreStep(t *testing.T) {
	params, actions, state := setup(t, 2)
	scalars := params.Ref().Scalars
	data := state.Ref()

	place(params, state, 0, domain.StatusInitializing, electron, -5, 1, 10)
	place(params, state, 1, domain.StatusInitializing, electron, 50, 1, 10)
	place(params, state, 2, domain.StatusAlive, gamma, 5, 1, 1)
	data.Sim.NumSteps.Set(2, 2)

	require.NoError(t, actions.PreStep.Step(params, state))

	assert.Equal(t, domain.StatusAlive, data.Sim.Status.At(0))
	assert.Equal(t, int32(1), data.Sim.NumSteps.At(0))
	assert.Equal(t, scalars.DiscreteSelectAction, data.Sim.PostStepAction.At(0))
	assert.InDelta(t, 0.1, data.Physics.MacroXS.At(0), 1e-12)
	mfp := data.Physics.InteractionMFP.At(0)
	assert.Greater(t, mfp, 0.0)
	assert.InDelta(t, mfp/0.1, data.Sim.StepLength.At(0), 1e-9)

	// Outside the world.
	assert.Equal(t, domain.StatusErrored, data.Sim.Status.At(1))
	assert.Equal(t, scalars.TrackingCutAction, data.Sim.PostStepAction.At(1))

	// Step limit exceeded.
	assert.Equal(t, domain.StatusErrored, data.Sim.Status.At(2))
	assert.Equal(t, scalars.TrackingCutAction, data.Sim.PostStepAction.At(2))

	assert.Equal(t, domain.StatusInactive, data.Sim.Status.At(3))
}

func TestAlongStepToBoundary(t *testing.T) {
	params, actions, state := setup(t, 10)
	scalars := params.Ref().Scalars
	data := state.Ref()

	place(params, state, 0, domain.StatusAlive, electron, -5, 1, 100)
	data.Sim.StepLength.Set(0, 8)
	data.Sim.PostStepAction.Set(0, scalars.DiscreteSelectAction)
	data.Physics.InteractionMFP.Set(0, 0.8)
	data.Physics.MacroXS.Set(0, 0.1)

	require.NoError(t, actions.AlongStep.Step(params, state))

	assert.Equal(t, scalars.BoundaryAction, data.Sim.PostStepAction.At(0))
	assert.InDelta(t, 5, data.Sim.StepLength.At(0), 1e-12)
	assert.InDelta(t, 0, data.Geometry.Pos.At(0)[2], 1e-12)
	assert.InDelta(t, 90, data.Particle.Energy.At(0), 1e-12)
	assert.InDelta(t, 10, data.Physics.EnergyDeposit.At(0), 1e-12)
	assert.InDelta(t, 0.3, data.Physics.InteractionMFP.At(0), 1e-12)
	assert.Greater(t, data.Sim.Time.At(0), 0.0)

	require.NoError(t, actions.Boundary.Step(params, state))
	assert.Equal(t, domain.VolumeID(1), data.Geometry.Volume.At(0))
	assert.Equal(t, domain.StatusAlive, data.Sim.Status.At(0))
}

func TestAlongStepInteraction(t *testing.T) {
	params, actions, state := setup(t, 10)
	scalars := params.Ref().Scalars
	data := state.Ref()

	place(params, state, 0, domain.StatusAlive, gamma, -5, -1, 1)
	data.Sim.StepLength.Set(0, 2)
	data.Sim.PostStepAction.Set(0, scalars.DiscreteSelectAction)
	data.Physics.InteractionMFP.Set(0, 0.1)

	require.NoError(t, actions.AlongStep.Step(params, state))
	assert.Equal(t, scalars.DiscreteSelectAction, data.Sim.PostStepAction.At(0))
	assert.InDelta(t, -7, data.Geometry.Pos.At(0)[2], 1e-12)
	assert.Zero(t, data.Physics.InteractionMFP.At(0))
	assert.Equal(t, 1.0, data.Particle.Energy.At(0), "neutral particles have no continuous loss")

	require.NoError(t, actions.DiscreteSelect.Step(params, state))
	assert.Equal(t, actions.Models[1].ActionID(), data.Sim.PostStepAction.At(0))

	require.NoError(t, actions.Models[1].Step(params, state))
	assert.Equal(t, domain.StatusKilled, data.Sim.Status.At(0))
	assert.Equal(t, 1.0, data.Physics.EnergyDeposit.At(0))
}

func TestAlongStepEnergyCutoff(t *testing.T) {
	params, actions, state := setup(t, 10)
	scalars := params.Ref().Scalars
	data := state.Ref()

	place(params, state, 0, domain.StatusAlive, electron, 5, 1, 1)
	data.Sim.StepLength.Set(0, 4)
	data.Sim.PostStepAction.Set(0, scalars.DiscreteSelectAction)

	require.NoError(t, actions.AlongStep.Step(params, state))
	assert.Equal(t, scalars.TrackingCutAction, data.Sim.PostStepAction.At(0))
	assert.Zero(t, data.Particle.Energy.At(0))

	require.NoError(t, actions.TrackingCut.Step(params, state))
	assert.Equal(t, domain.StatusKilled, data.Sim.Status.At(0))
	assert.InDelta(t, 1, data.Physics.EnergyDeposit.At(0), 1e-12)
}

func TestBoundaryLeavesWorld(t *testing.T) {
	params, actions, state := setup(t, 10)
	data := state.Ref()

	place(params, state, 0, domain.StatusAlive, gamma, 9, 1, 1)
	data.Geometry.Pos.Set(0, domain.Vec3{0, 0, 10})
	data.Sim.PostStepAction.Set(0, params.Ref().Scalars.BoundaryAction)

	require.NoError(t, actions.Boundary.Step(params, state))
	assert.Equal(t, domain.StatusKilled, data.Sim.Status.At(0))
	assert.Equal(t, domain.InvalidVolumeID, data.Geometry.Volume.At(0))
}

func TestTrackingCutKillsErrored(t *testing.T) {
	params, actions, state := setup(t, 10)
	data := state.Ref()

	place(params, state, 0, domain.StatusErrored, electron, 0, 1, 3)
	data.Sim.PostStepAction.Set(0, params.Ref().Scalars.TrackingCutAction)
	place(params, state, 1, domain.StatusKilled, electron, 0, 1, 3)
	data.Sim.PostStepAction.Set(1, params.Ref().Scalars.TrackingCutAction)

	require.NoError(t, actions.TrackingCut.Step(params, state))
	assert.Equal(t, domain.StatusKilled, data.Sim.Status.At(0))
	assert.Equal(t, 3.0, data.Physics.EnergyDeposit.At(0))
	assert.Zero(t, data.Physics.EnergyDeposit.At(1))
}

func TestSplitModel(t *testing.T) {
	params, actions, state := setup(t, 10)
	data := state.Ref()
	split := actions.Models[0]

	place(params, state, 0, domain.StatusAlive, electron, 1, 1, 8)
	data.Sim.PostStepAction.Set(0, split.ActionID())

	require.NoError(t, split.Step(params, state))
	assert.Equal(t, domain.StatusAlive, data.Sim.Status.At(0))
	assert.InDelta(t, 6, data.Particle.Energy.At(0), 1e-12)
	require.Equal(t, int32(1), data.Physics.NumSecondaries.At(0))
	sec := data.Physics.Secondaries.At(0)
	assert.Equal(t, gamma, sec.ParticleID)
	assert.InDelta(t, 2, sec.Energy, 1e-12)
	norm := math.Sqrt(sec.Direction[0]*sec.Direction[0] + sec.Direction[1]*sec.Direction[1] + sec.Direction[2]*sec.Direction[2])
	assert.InDelta(t, 1, norm, 1e-12)

	// Storage for one secondary per step is full.
	require.NoError(t, split.Step(params, state))
	assert.Equal(t, domain.StatusErrored, data.Sim.Status.At(0))
}
