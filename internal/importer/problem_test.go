package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/optical"
)

func TestLoad_SlabProblem(t *testing.T) {
	p, err := Load("testdata/slabs.yaml")
	require.NoError(t, err)

	assert.Equal(t, "water-scintillator", p.Name)
	assert.Equal(t, []float64{-20, 0, 20}, p.Geometry.Bounds)
	assert.Equal(t, []domain.MaterialID{0, 1}, p.Geometry.Materials)
	assert.Equal(t, []string{"tank", "detector"}, p.Geometry.Names)
	require.Len(t, p.Particle.Particles, 2)
	assert.InDelta(t, -1, p.Particle.Particles[0].Charge, 0)

	require.Len(t, p.Physics.Models, 3)
	brems := p.Physics.Models[1]
	assert.Equal(t, core.ModelSplit, brems.Kind)
	assert.Equal(t, domain.ParticleID(1), brems.Secondary)
	assert.InDelta(t, 0.1, brems.XS[1].Eval(100), 1e-12)
	assert.InDelta(t, 0.01, p.Physics.EnergyCutoff, 0)

	o := p.Optical
	require.NotNil(t, o)
	assert.Equal(t, 8192, o.Generators)
	assert.InDelta(t, 10, o.Scintillation.Yield, 0)
	require.Len(t, o.Data.Materials, 2)
	assert.InDelta(t, 1.58, o.Data.Materials[1].RefractiveIndex, 0)
	require.NotNil(t, o.Data.Materials[1].WLS)
	assert.Nil(t, o.Data.Materials[0].WLS)
	require.NotNil(t, o.Data.Materials[0].Mie)

	rayleigh, ok := o.Data.Model(optical.ModelRayleigh)
	require.True(t, ok)
	assert.Equal(t, []float64{60, 30}, rayleigh.MFP[0].MFP)
	assert.Empty(t, rayleigh.MFP[1].Energy)
}

func TestLoad_OpticalSetupFromProblem(t *testing.T) {
	p, err := Load("testdata/slabs.yaml")
	require.NoError(t, err)

	params, err := optical.Setup(optical.SetupInput{
		Geometry:   p.Geometry,
		Rng:        &core.RngParams{Seed: 1},
		Data:       p.Optical.Data,
		UserModels: p.Optical.UserModels(),
		MaxSteps:   p.Optical.MaxSteps,
		MaxStreams: 1,
		Capacity:   optical.Capacity{Generators: p.Optical.Generators, Tracks: 128, Primaries: p.Optical.Primaries},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, params.Ref().Physics.NumModels())
}

func TestParse_OmitsModels(t *testing.T) {
	data := []byte(`
materials: [{name: water, optical: {refractive_index: 1.33}}]
geometry: {bounds: [0, 1], volumes: [{name: w, material: water}]}
particles: [{name: gamma}]
optical:
  models:
    - kind: absorption
      mfp: {water: {energy: [1, 2], value: [3, 3]}}
    - kind: rayleigh
      mfp: {water: {energy: [1, 2], value: [5, 5]}}
  omit: [rayleigh]
`)
	p, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, []optical.ModelKind{optical.ModelRayleigh}, p.Optical.Omitted)
	assert.Len(t, p.Optical.UserModels(), 1)
	assert.Empty(t, p.Physics.Models)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"syntax":             `materials: [`,
		"no materials":       `particles: [{name: e-}]`,
		"no particles":       `materials: [{name: water}]`,
		"duplicate material": `{materials: [{name: a}, {name: a}], particles: [{name: e-}]}`,
		"undefined volume material": `
materials: [{name: water}]
particles: [{name: e-}]
geometry: {bounds: [0, 1], volumes: [{name: v, material: lead}]}`,
		"decreasing bounds": `
materials: [{name: water}]
particles: [{name: e-}]
geometry: {bounds: [1, 0], volumes: [{name: v, material: water}]}`,
		"unknown model kind": `
materials: [{name: water}]
particles: [{name: e-}]
geometry: {bounds: [0, 1], volumes: [{name: v, material: water}]}
physics: {models: [{label: x, kind: annihilate, particle: e-}]}`,
		"unknown table material": `
materials: [{name: water}]
particles: [{name: e-}]
geometry: {bounds: [0, 1], volumes: [{name: v, material: water}]}
physics: {models: [{label: x, kind: scatter, particle: e-, xs: {lead: {energy: [1], value: [1]}}}]}`,
		"bad split fraction": `
materials: [{name: water}]
particles: [{name: e-}, {name: gamma}]
geometry: {bounds: [0, 1], volumes: [{name: v, material: water}]}
physics: {models: [{label: x, kind: split, particle: e-, secondary: gamma, energy_fraction: 1.5}]}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			require.ErrorIs(t, err, domain.ErrProblemInvalid)
		})
	}

	_, err := Parse([]byte(`
materials: [{name: water}]
particles: [{name: e-}]
geometry: {bounds: [0, 1], volumes: [{name: v, material: water}]}
optical: {models: [{kind: cherenkov}]}`))
	require.ErrorIs(t, err, domain.ErrUnsupportedModel)
}
