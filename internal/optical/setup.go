package optical

import (
	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/device"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// DirectGenerator is the generator registry label of the direct photon list.
const DirectGenerator = "direct"

// SetupInput describes an optical problem on top of a core geometry.
type SetupInput struct {
	Geometry   *core.GeoParams
	Rng        *core.RngParams
	Data       *ImportData
	UserModels UserBuildMap
	MaxSteps   int
	MaxStreams int
	Capacity   Capacity
	Device     *device.Device
}

// Setup builds the optical registries, the generator, the physics, and the
// optical core params from imported data.
func Setup(in SetupInput) (*CoreParams, error) {
	if in.Data == nil {
		return nil, domain.Validationf(domain.ErrOpticalInputMissing, "optical core input is missing import data")
	}
	importer, err := NewModelImporter(in.Data, in.UserModels)
	if err != nil {
		return nil, err
	}
	builders, err := importer.BuildAll()
	if err != nil {
		return nil, err
	}

	reg := action.NewRegistry()
	gens := NewGeneratorRegistry()
	gen, err := gens.Insert(DirectGenerator)
	if err != nil {
		return nil, err
	}
	if err := reg.Insert(NewGenerator(reg.NextID(), gen)); err != nil {
		return nil, err
	}

	materials := in.Data.MaterialParams()
	physics, err := NewPhysicsParams(PhysicsInput{
		ModelBuilders: builders,
		Materials:     materials,
		ActionReg:     reg,
	})
	if err != nil {
		return nil, err
	}

	surfaces := &SurfaceParams{}
	surfacePhysics := &SurfacePhysicsParams{}
	for _, s := range in.Data.Surfaces {
		surfaces.Names = append(surfaces.Names, s.Name)
		surfacePhysics.Reflectivity = append(surfacePhysics.Reflectivity, s.Reflectivity)
	}

	return NewCoreParams(Input{
		Geometry:       in.Geometry,
		Material:       materials,
		Physics:        physics,
		Rng:            in.Rng,
		Sim:            &SimParams{MaxSteps: in.MaxSteps},
		Surface:        surfaces,
		SurfacePhysics: surfacePhysics,
		ActionReg:      reg,
		GenReg:         gens,
		MaxStreams:     in.MaxStreams,
		Capacity:       in.Capacity,
		Device:         in.Device,
	})
}
