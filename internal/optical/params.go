// Package optical is the optical photon transport loop. It mirrors the core
// stepping loop at a smaller scale: a fixed set of always-on actions, a
// generator that fills vacant slots from queued photons, and discrete
// models selected by their tabulated mean free paths.
package optical

import (
	"go.uber.org/zap"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/device"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/logger"
)

// Material is an optical medium.
type Material struct {
	Name            string
	RefractiveIndex float64
}

// MaterialParams lists the optical materials, indexed by the geometry's
// material IDs.
type MaterialParams struct {
	Materials []Material
}

// NumMaterials is the number of optical materials.
func (m *MaterialParams) NumMaterials() int { return len(m.Materials) }

// SimParams limits the optical loop.
type SimParams struct {
	MaxSteps int
}

// SurfaceParams names the interior slab boundaries. Surface i separates
// volume i from volume i+1.
type SurfaceParams struct {
	Names []string
}

// NumSurfaces is the number of interior boundaries.
func (s *SurfaceParams) NumSurfaces() int { return len(s.Names) }

// SurfacePhysicsParams holds the reflection probability of each surface.
type SurfacePhysicsParams struct {
	Reflectivity []float64
}

// Capacity sizes the per-stream optical buffers.
type Capacity struct {
	Generators int // queued photons per stream
	Tracks     int // default track slots per stream
	Primaries  int // photons accepted per insertion
}

// GeneratorID indexes a photon generator.
type GeneratorID int32

// GeneratorRegistry names the photon generators feeding the loop.
type GeneratorRegistry struct {
	labels []string
}

// NewGeneratorRegistry creates an empty registry.
func NewGeneratorRegistry() *GeneratorRegistry { return &GeneratorRegistry{} }

// Insert adds a generator and returns its ID.
func (r *GeneratorRegistry) Insert(label string) (GeneratorID, error) {
	for _, l := range r.labels {
		if l == label {
			return -1, domain.Validationf(domain.ErrDuplicateLabel, "duplicate generator label %q", label)
		}
	}
	r.labels = append(r.labels, label)
	return GeneratorID(len(r.labels) - 1), nil
}

// NumGenerators is the number of registered generators.
func (r *GeneratorRegistry) NumGenerators() int { return len(r.labels) }

// Labels returns the generator labels in ID order.
func (r *GeneratorRegistry) Labels() []string { return append([]string(nil), r.labels...) }

// Scalars caches IDs used in the hot path.
type Scalars struct {
	TrackingCutAction domain.ActionID
	MaxStreams        int
}

// ParamsData aggregates the optical sub-parameters.
type ParamsData struct {
	Geometry       *core.GeoParams
	Material       *MaterialParams
	Physics        *PhysicsParams
	Rng            *core.RngParams
	Sim            *SimParams
	Surface        *SurfaceParams
	SurfacePhysics *SurfacePhysicsParams
	Capacity       Capacity
	Scalars        Scalars
}

// Input is everything needed to construct CoreParams.
type Input struct {
	Geometry       *core.GeoParams
	Material       *MaterialParams
	Physics        *PhysicsParams
	Rng            *core.RngParams
	Sim            *SimParams
	Surface        *SurfaceParams
	SurfacePhysics *SurfacePhysicsParams
	ActionReg      *action.Registry
	GenReg         *GeneratorRegistry
	MaxStreams     int
	Capacity       Capacity
	Device         *device.Device
}

// Validate names the first missing input.
func (in *Input) Validate() error {
	missing := func(what string) error {
		return domain.Validationf(domain.ErrOpticalInputMissing, "optical core input is missing %s data", what)
	}
	switch {
	case in.Geometry == nil:
		return missing("geometry")
	case in.Material == nil:
		return missing("material")
	case in.Physics == nil:
		return missing("physics")
	case in.Rng == nil:
		return missing("rng")
	case in.Sim == nil:
		return missing("sim")
	case in.Surface == nil:
		return missing("surface")
	case in.SurfacePhysics == nil:
		return missing("surface_physics")
	case in.ActionReg == nil:
		return missing("action_reg")
	case in.GenReg == nil:
		return missing("gen_reg")
	case in.MaxStreams <= 0:
		return missing("max_streams")
	}

	capacity := func(what string, n int) error {
		if n > 0 {
			return nil
		}
		return domain.Validationf(domain.ErrInvalidCapacity, "optical %s capacity must be positive (got %d)", what, n)
	}
	if err := capacity("generator", in.Capacity.Generators); err != nil {
		return err
	}
	if err := capacity("track", in.Capacity.Tracks); err != nil {
		return err
	}
	if err := capacity("primary", in.Capacity.Primaries); err != nil {
		return err
	}
	return in.validateConsistency()
}

func (in *Input) validateConsistency() error {
	if !in.Geometry.Valid() {
		return domain.Validationf(domain.ErrInvalidParams, "optical geometry is malformed")
	}
	numMat := in.Material.NumMaterials()
	for v, m := range in.Geometry.Materials {
		if int(m) < 0 || int(m) >= numMat {
			return domain.Validationf(domain.ErrInvalidParams,
				"volume %d uses optical material %d but only %d are defined", v, m, numMat)
		}
	}
	for _, m := range in.Material.Materials {
		if m.RefractiveIndex < 1 {
			return domain.Validationf(domain.ErrInvalidParams,
				"optical material %q has refractive index %g < 1", m.Name, m.RefractiveIndex)
		}
	}
	if in.Physics.NumMaterials() != numMat {
		return domain.Validationf(domain.ErrInvalidParams,
			"optical physics was built for %d materials but %d are defined", in.Physics.NumMaterials(), numMat)
	}
	if in.Sim.MaxSteps <= 0 {
		return domain.Validationf(domain.ErrInvalidParams, "optical step limit must be positive")
	}
	if want := in.Geometry.NumVolumes() - 1; in.Surface.NumSurfaces() != want {
		return domain.Validationf(domain.ErrInvalidParams,
			"optical geometry has %d interior surfaces but %d are named", want, in.Surface.NumSurfaces())
	}
	if len(in.SurfacePhysics.Reflectivity) != in.Surface.NumSurfaces() {
		return domain.Validationf(domain.ErrInvalidParams,
			"optical surface physics has %d entries for %d surfaces",
			len(in.SurfacePhysics.Reflectivity), in.Surface.NumSurfaces())
	}
	for i, r := range in.SurfacePhysics.Reflectivity {
		if r < 0 || r > 1 {
			return domain.Validationf(domain.ErrInvalidParams, "surface %d reflectivity %g is outside [0, 1]", i, r)
		}
	}
	return nil
}

// CoreParams is the shared, immutable optical problem definition.
type CoreParams struct {
	data   ParamsData
	reg    *action.Registry
	gen    *GeneratorRegistry
	device *device.Device
	log    *zap.SugaredLogger
}

// NewCoreParams validates the input and registers the always-on actions:
// pre-step, along-step, tracking cut, and vacancy location.
func NewCoreParams(in Input) (*CoreParams, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	reg := in.ActionReg

	var scalars Scalars
	if err := reg.Insert(NewPreStep(reg.NextID())); err != nil {
		return nil, err
	}
	if err := reg.Insert(NewAlongStep(reg.NextID())); err != nil {
		return nil, err
	}
	scalars.TrackingCutAction = reg.NextID()
	if err := reg.Insert(NewTrackingCut(scalars.TrackingCutAction)); err != nil {
		return nil, err
	}
	if err := reg.Insert(NewLocateVacancies(reg.NextID())); err != nil {
		return nil, err
	}
	scalars.MaxStreams = in.MaxStreams

	p := &CoreParams{
		data: ParamsData{
			Geometry:       in.Geometry,
			Material:       in.Material,
			Physics:        in.Physics,
			Rng:            in.Rng,
			Sim:            in.Sim,
			Surface:        in.Surface,
			SurfacePhysics: in.SurfacePhysics,
			Capacity:       in.Capacity,
			Scalars:        scalars,
		},
		reg:    reg,
		gen:    in.GenReg,
		device: in.Device,
		log:    logger.For(logger.ComponentOptical),
	}
	p.log.Infow("Optical setup complete",
		"actions", reg.NumActions(), "models", in.Physics.NumModels(),
		"generators", in.GenReg.NumGenerators(), "max_streams", in.MaxStreams)
	return p, nil
}

// Ref exposes the parameter data.
func (p *CoreParams) Ref() *ParamsData { return &p.data }

// ActionRegistry is the optical action registry.
func (p *CoreParams) ActionRegistry() *action.Registry { return p.reg }

// GeneratorRegistry lists the photon generators.
func (p *CoreParams) GeneratorRegistry() *GeneratorRegistry { return p.gen }

// MaxStreams bounds the stream IDs of optical states.
func (p *CoreParams) MaxStreams() int { return p.data.Scalars.MaxStreams }

// Device is the device used for device-resident states, or nil.
func (p *CoreParams) Device() *device.Device { return p.device }
