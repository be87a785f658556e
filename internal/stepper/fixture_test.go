package stepper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/device"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/grid"
	"github.com/celeritas-project/celer-engine/internal/stepping"
)

// problemInput is a water/lead slab pair with charged primaries that
// scatter and split off neutral secondaries, which are later absorbed.
func problemInput(maxStreams int) core.Input {
	energies := []float64{0.01, 100}
	return core.Input{
		Geometry: &core.GeoParams{
			Bounds:    []float64{-20, 0, 20},
			Materials: []domain.MaterialID{0, 1},
			Names:     []string{"water", "lead"},
		},
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
				{
					Label: "scatter", Kind: core.ModelScatter, Particle: 0,
					XS: []grid.Grid{grid.MustNew(energies, []float64{0.2, 0.1}), grid.MustNew(energies, []float64{0.8, 0.4})},
				},
				{
					Label: "brems", Kind: core.ModelSplit, Particle: 0, Secondary: 1, EnergyFraction: 0.3,
					XS: []grid.Grid{grid.MustNew(energies, []float64{0, 0.1}), grid.MustNew(energies, []float64{0, 0.5})},
				},
				{
					Label: "photoelectric", Kind: core.ModelAbsorption, Particle: 1,
					XS: []grid.Grid{grid.MustNew(energies, []float64{0.05, 0.02}), grid.MustNew(energies, []float64{0.5, 0.2})},
				},
			},
			SecondaryCapacity: 2,
			EnergyCutoff:      0.01,
		},
		Rng:        &core.RngParams{Seed: 20240501},
		Sim:        &core.SimParams{MaxSteps: 1000},
		Init:       &core.TrackInitParams{Capacity: 4096, MaxEvents: 8},
		MaxStreams: maxStreams,
	}
}

func buildParams(t *testing.T, maxStreams int, opts stepping.Options, withDevice bool) *core.Params {
	t.Helper()
	in := problemInput(maxStreams)
	if withDevice {
		in.Device = device.New(maxStreams, 4)
		t.Cleanup(in.Device.Close)
	}
	params, _, err := stepping.BuildParams(in, opts)
	require.NoError(t, err)
	return params
}

func makePrimaries(n int, event domain.EventID) []domain.Primary {
	out := make([]domain.Primary, n)
	for i := range out {
		out[i] = domain.Primary{
			ParticleID: 0,
			Energy:     10,
			Position:   domain.Vec3{0, 0, -15 + float64(i%5)},
			Direction:  domain.Vec3{0, 0, 1},
			EventID:    event,
		}
	}
	return out
}

func newStepper(t *testing.T, params *core.Params, mem domain.MemSpace, timed bool) *Stepper {
	t.Helper()
	s, err := New(context.Background(), Input{
		Params:        params,
		StreamID:      0,
		NumTrackSlots: 32,
		MemSpace:      mem,
		ActionTimes:   timed,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

type eventTrace struct {
	results []Result
	digests []uint64
}

// runEvent inserts primaries and steps until no tracks remain, recording
// the counters and state digest after every step.
func runEvent(t *testing.T, s *Stepper, primaries []domain.Primary) eventTrace {
	t.Helper()
	ctx := context.Background()
	var out eventTrace

	result, err := s.StepWithPrimaries(ctx, primaries)
	require.NoError(t, err)
	for i := 0; ; i++ {
		require.Less(t, i, 10000, "event did not finish")
		digest, err := s.State().Digest()
		require.NoError(t, err)
		out.results = append(out.results, result)
		out.digests = append(out.digests, digest)
		if result.Done() {
			return out
		}
		result, err = s.Step(ctx)
		require.NoError(t, err)
	}
}
