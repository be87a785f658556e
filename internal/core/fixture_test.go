package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/device"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/grid"
)

// testInput builds a minimal valid two-slab problem whose scalar actions
// are placeholders.
func testInput(t *testing.T, maxStreams int) Input {
	t.Helper()
	reg := action.NewRegistry()
	labels := []string{"boundary", "propagation-limit", "tracking-cut", "along-step", "discrete-select", "absorb"}
	for _, label := range labels {
		require.NoError(t, reg.Insert(action.NewConcreteAction(reg.NextID(), label, "")))
	}

	xs := grid.MustNew([]float64{0.1, 10}, []float64{0.5, 0.1})
	return Input{
		Geometry: &GeoParams{Bounds: []float64{-10, 0, 10}, Materials: []domain.MaterialID{0, 1}},
		Material: &MaterialParams{Materials: []Material{{Name: "water", EnergyLoss: 2}, {Name: "lead", EnergyLoss: 12}}},
		Particle: &ParticleParams{Particles: []ParticleDef{{Name: "e-", Mass: 0.511, Charge: -1}}},
		Physics: &PhysicsParams{
			Models:            []Model{{Label: "absorb", Kind: ModelAbsorption, XS: []grid.Grid{xs, {}}}},
			ModelActions:      []domain.ActionID{5},
			SecondaryCapacity: 2,
			EnergyCutoff:      0.01,
		},
		Rng:       &RngParams{Seed: 12345},
		Sim:       &SimParams{MaxSteps: 100},
		Init:      &TrackInitParams{Capacity: 64, MaxEvents: 4},
		ActionReg: reg,
		Scalars: Scalars{
			BoundaryAction:         0,
			PropagationLimitAction: 1,
			TrackingCutAction:      2,
			AlongStepAction:        3,
			DiscreteSelectAction:   4,
		},
		MaxStreams: maxStreams,
	}
}

func testParams(t *testing.T, maxStreams int) *Params {
	t.Helper()
	p, err := NewParams(testInput(t, maxStreams))
	require.NoError(t, err)
	return p
}

func testDeviceParams(t *testing.T, maxStreams int) *Params {
	t.Helper()
	in := testInput(t, maxStreams)
	in.Device = device.New(maxStreams, 2)
	t.Cleanup(in.Device.Close)
	p, err := NewParams(in)
	require.NoError(t, err)
	return p
}
