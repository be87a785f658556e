package track_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/grid"
	"github.com/celeritas-project/celer-engine/internal/stepping"
)

func buildParams(t *testing.T, capacity int, checker bool) (*core.Params, stepping.Actions) {
	t.Helper()
	xs := grid.MustNew([]float64{0.01, 100}, []float64{0.1, 0.1})
	params, actions, err := stepping.BuildParams(core.Input{
		Geometry: &core.GeoParams{Bounds: []float64{-10, 10}, Materials: []domain.MaterialID{0}},
		Material: &core.MaterialParams{Materials: []core.Material{{Name: "water", EnergyLoss: 2}}},
		Particle: &core.ParticleParams{Particles: []core.ParticleDef{{Name: "e-", Mass: 0.511, Charge: -1}}},
		Physics: &core.PhysicsParams{
			Models:            []core.Model{{Label: "absorb", Kind: core.ModelAbsorption, XS: []grid.Grid{xs}}},
			SecondaryCapacity: 2,
			EnergyCutoff:      0.01,
		},
		Rng:        &core.RngParams{Seed: 7},
		Sim:        &core.SimParams{MaxSteps: 50},
		Init:       &core.TrackInitParams{Capacity: capacity, MaxEvents: 4},
		MaxStreams: 1,
	}, stepping.Options{StatusChecker: checker})
	require.NoError(t, err)
	return params, actions
}

func newState(t *testing.T, params *core.Params, size int) *core.State {
	t.Helper()
	state, err := core.NewState(params, domain.MemSpaceHost, 0, size)
	require.NoError(t, err)
	t.Cleanup(state.Close)
	return state
}

func primaries(event domain.EventID, energies ...float64) []domain.Primary {
	out := make([]domain.Primary, len(energies))
	for i, e := range energies {
		out[i] = domain.Primary{Energy: e, Direction: domain.Vec3{0, 0, 1}, EventID: event}
	}
	return out
}
