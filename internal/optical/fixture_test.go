package optical

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/device"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// water in [-10, 0) and a wavelength-shifting scintillator in [0, 10).
func testGeometry() *core.GeoParams {
	return &core.GeoParams{
		Bounds:    []float64{-10, 0, 10},
		Materials: []domain.MaterialID{0, 1},
		Names:     []string{"water", "scint"},
	}
}

func flat(mfp float64) ImportGrid {
	return ImportGrid{Energy: []float64{1, 10}, MFP: []float64{mfp, mfp}}
}

func testImportData() *ImportData {
	return &ImportData{
		Materials: []ImportMaterial{
			{Name: "water", RefractiveIndex: 1.33},
			{Name: "scint", RefractiveIndex: 1.58, WLS: &WLSParams{MeanNumPhotons: 1, TimeConstant: 2, Energy: 2.5}},
		},
		Models: []ImportModel{
			{Kind: ModelAbsorption, MFP: []ImportGrid{flat(50), flat(20)}},
			{Kind: ModelRayleigh, MFP: []ImportGrid{flat(30), {}}},
			{Kind: ModelWLS, MFP: []ImportGrid{{}, flat(40)}},
		},
		Surfaces: []ImportSurface{{Name: "water-scint", Reflectivity: 0.1}},
	}
}

func testRng() *core.RngParams { return &core.RngParams{Seed: 42} }

func testCapacity() Capacity {
	return Capacity{Generators: 4096, Tracks: 64, Primaries: 256}
}

func setupParams(t *testing.T, user UserBuildMap, withDevice bool) *CoreParams {
	t.Helper()
	in := SetupInput{
		Geometry:   testGeometry(),
		Rng:        testRng(),
		Data:       testImportData(),
		UserModels: user,
		MaxSteps:   500,
		MaxStreams: 2,
		Capacity:   testCapacity(),
	}
	if withDevice {
		in.Device = device.New(2, 4)
		t.Cleanup(in.Device.Close)
	}
	params, err := Setup(in)
	require.NoError(t, err)
	return params
}

// photonsAt emits n photons of 3 eV from z with directions spread between
// nearly backward and nearly forward along z.
func photonsAt(n int, z float64) []Photon {
	out := make([]Photon, n)
	for i := range out {
		cost := -0.95 + 1.9*float64(i)/float64(max(n-1, 1))
		out[i] = Photon{
			Energy:    3,
			Position:  domain.Vec3{0, 0, z},
			Direction: domain.Vec3{math.Sqrt(1 - cost*cost), 0, cost},
		}
	}
	return out
}
