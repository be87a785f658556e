package optical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

func validInput(t *testing.T) Input {
	t.Helper()
	reg := action.NewRegistry()
	data := testImportData()
	materials := data.MaterialParams()
	physics, err := NewPhysicsParams(PhysicsInput{Materials: materials, ActionReg: reg})
	require.NoError(t, err)
	return Input{
		Geometry:       testGeometry(),
		Material:       materials,
		Physics:        physics,
		Rng:            &core.RngParams{Seed: 1},
		Sim:            &SimParams{MaxSteps: 10},
		Surface:        &SurfaceParams{Names: []string{"water-scint"}},
		SurfacePhysics: &SurfacePhysicsParams{Reflectivity: []float64{0.5}},
		ActionReg:      reg,
		GenReg:         NewGeneratorRegistry(),
		MaxStreams:     1,
		Capacity:       testCapacity(),
	}
}

func TestInput_ReportsEachMissingField(t *testing.T) {
	cases := []struct {
		field string
		clear func(*Input)
	}{
		{"geometry", func(in *Input) { in.Geometry = nil }},
		{"material", func(in *Input) { in.Material = nil }},
		{"physics", func(in *Input) { in.Physics = nil }},
		{"rng", func(in *Input) { in.Rng = nil }},
		{"sim", func(in *Input) { in.Sim = nil }},
		{"surface", func(in *Input) { in.Surface = nil }},
		{"surface_physics", func(in *Input) { in.SurfacePhysics = nil }},
		{"action_reg", func(in *Input) { in.ActionReg = nil }},
		{"gen_reg", func(in *Input) { in.GenReg = nil }},
		{"max_streams", func(in *Input) { in.MaxStreams = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			in := validInput(t)
			tc.clear(&in)
			_, err := NewCoreParams(in)
			require.ErrorIs(t, err, domain.ErrOpticalInputMissing)
			assert.Contains(t, err.Error(), "optical core input is missing "+tc.field+" data")
		})
	}
}

func TestInput_RejectsNonPositiveCapacity(t *testing.T) {
	for _, tc := range []struct {
		name string
		mod  func(*Capacity)
	}{
		{"generator", func(c *Capacity) { c.Generators = 0 }},
		{"track", func(c *Capacity) { c.Tracks = -1 }},
		{"primary", func(c *Capacity) { c.Primaries = 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput(t)
			tc.mod(&in.Capacity)
			_, err := NewCoreParams(in)
			require.ErrorIs(t, err, domain.ErrInvalidCapacity)
			assert.Contains(t, err.Error(), tc.name)
		})
	}
}

func TestInput_RejectsInconsistentSurfaces(t *testing.T) {
	in := validInput(t)
	in.Surface.Names = nil
	_, err := NewCoreParams(in)
	require.ErrorIs(t, err, domain.ErrInvalidParams)

	in = validInput(t)
	in.SurfacePhysics.Reflectivity = []float64{1.5}
	_, err = NewCoreParams(in)
	require.ErrorIs(t, err, domain.ErrInvalidParams)
	assert.Contains(t, err.Error(), "reflectivity")
}

func TestInput_RejectsUnphysicalRefractiveIndex(t *testing.T) {
	in := validInput(t)
	in.Material.Materials[0].RefractiveIndex = 0.5
	_, err := NewCoreParams(in)
	require.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestNewCoreParams_RegistersFixedActions(t *testing.T) {
	in := validInput(t)
	params, err := NewCoreParams(in)
	require.NoError(t, err)

	reg := params.ActionRegistry()
	assert.Equal(t, []string{
		"optical-discrete-select",
		"optical-pre-step", "optical-along-step", "optical-tracking-cut", "optical-locate-vacancies",
	}, reg.Labels())
	assert.Equal(t, reg.FindAction("optical-tracking-cut"), params.Ref().Scalars.TrackingCutAction)
	assert.Equal(t, 1, params.MaxStreams())
}

func TestSetup_BuildsModelsFromImport(t *testing.T) {
	params := setupParams(t, nil, false)

	assert.Equal(t, []string{
		GeneratorLabel,
		"optical-discrete-select", "optical-absorption", "optical-rayleigh", "optical-wls",
		"optical-pre-step", "optical-along-step", "optical-tracking-cut", "optical-locate-vacancies",
	}, params.ActionRegistry().Labels())
	assert.Equal(t, []string{DirectGenerator}, params.GeneratorRegistry().Labels())

	physics := params.Ref().Physics
	require.Equal(t, 3, physics.NumModels())
	assert.Equal(t, ModelWLS, physics.Model(2).Kind())
	// Rayleigh is absent from the scintillator and WLS from water.
	assert.Zero(t, physics.XS(1, 1, 3))
	assert.Zero(t, physics.XS(2, 0, 3))
	assert.InDelta(t, 1.0/50+1.0/30, physics.TotalXS(0, 3), 1e-12)
	assert.InDelta(t, 1.0/20+1.0/40, physics.TotalXS(1, 3), 1e-12)

	idx, ok := physics.ActionToModel(physics.ModelAction(1))
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = physics.ActionToModel(physics.DiscreteAction())
	assert.False(t, ok)
}

func TestGeneratorRegistry_RejectsDuplicates(t *testing.T) {
	gens := NewGeneratorRegistry()
	id, err := gens.Insert("direct")
	require.NoError(t, err)
	assert.Equal(t, GeneratorID(0), id)
	_, err = gens.Insert("direct")
	require.ErrorIs(t, err, domain.ErrDuplicateLabel)
	assert.Equal(t, 1, gens.NumGenerators())
}
