// Package core holds the per-run parameters and per-stream state that the
// stepping loop operates on. Per-track data is stored as struct-of-arrays:
// each field is a collection indexed by track slot.
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/device"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/grid"
	"github.com/celeritas-project/celer-engine/internal/logger"
)

// GeoParams is a one-dimensional stack of slabs along z. Slab i spans
// [Bounds[i], Bounds[i+1]) and is filled with Materials[i].
type GeoParams struct {
	Bounds    []float64
	Materials []domain.MaterialID
	Names     []string
}

// Valid reports whether the slab stack is well formed.
func (g *GeoParams) Valid() bool {
	if g == nil || len(g.Bounds) < 2 || len(g.Materials) != len(g.Bounds)-1 {
		return false
	}
	for i := 1; i < len(g.Bounds); i++ {
		if !(g.Bounds[i] > g.Bounds[i-1]) {
			return false
		}
	}
	return true
}

// NumVolumes is the number of slabs.
func (g *GeoParams) NumVolumes() int { return len(g.Materials) }

// Locate returns the slab containing z, or an invalid volume outside.
func (g *GeoParams) Locate(z float64) domain.VolumeID {
	if z < g.Bounds[0] || z >= g.Bounds[len(g.Bounds)-1] {
		return domain.InvalidVolumeID
	}
	lo, hi := 0, len(g.Bounds)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if z >= g.Bounds[mid] {
			lo = mid
		} else {
			hi = mid
		}
	}
	return domain.VolumeID(lo)
}

// DistanceToBoundary is the path length along a direction with z cosine dz
// from z to the edge of volume v.
func (g *GeoParams) DistanceToBoundary(v domain.VolumeID, z, dz float64) float64 {
	switch {
	case dz > 0:
		return math.Max(0, (g.Bounds[v+1]-z)/dz)
	case dz < 0:
		return math.Max(0, (g.Bounds[v]-z)/dz)
	default:
		return math.Inf(1)
	}
}

// Material is a homogeneous medium.
type Material struct {
	Name string
	// EnergyLoss is the continuous stopping power for charged particles, in
	// MeV/cm.
	EnergyLoss float64
}

// MaterialParams lists the materials used by the geometry.
type MaterialParams struct {
	Materials []Material
}

// Valid reports whether any material is defined.
func (m *MaterialParams) Valid() bool { return m != nil && len(m.Materials) > 0 }

// NumMaterials is the number of materials.
func (m *MaterialParams) NumMaterials() int { return len(m.Materials) }

// ParticleDef describes a particle type.
type ParticleDef struct {
	Name   string
	Mass   float64 // MeV
	Charge float64 // elementary charges
}

// ParticleParams lists the particle types.
type ParticleParams struct {
	Particles []ParticleDef
}

// Valid reports whether any particle is defined.
func (p *ParticleParams) Valid() bool { return p != nil && len(p.Particles) > 0 }

// Find returns the particle ID for a name, or false.
func (p *ParticleParams) Find(name string) (domain.ParticleID, bool) {
	for i, def := range p.Particles {
		if def.Name == name {
			return domain.ParticleID(i), true
		}
	}
	return 0, false
}

// ModelKind selects the interaction applied by a discrete model.
type ModelKind int

const (
	// ModelAbsorption kills the track and deposits its energy.
	ModelAbsorption ModelKind = iota
	// ModelScatter resamples the direction isotropically.
	ModelScatter
	// ModelSplit emits a secondary carrying part of the track's energy.
	ModelSplit
)

var modelKindNames = [...]string{"absorption", "scatter", "split"}

// String returns the lowercase model kind.
func (k ModelKind) String() string {
	if k < 0 || int(k) >= len(modelKindNames) {
		return fmt.Sprintf("model(%d)", int(k))
	}
	return modelKindNames[k]
}

// ParseModelKind converts a problem-file name to a ModelKind.
func ParseModelKind(s string) (ModelKind, error) {
	for i, name := range modelKindNames {
		if strings.EqualFold(s, name) {
			return ModelKind(i), nil
		}
	}
	return 0, domain.Validationf(domain.ErrProblemInvalid, "unknown model kind %q", s)
}

// Model is a discrete interaction for one particle type, tabulated as a
// macroscopic cross section (1/cm) versus energy (MeV) in each material.
type Model struct {
	Label     string
	Kind      ModelKind
	Particle  domain.ParticleID
	XS        []grid.Grid // indexed by MaterialID; empty means not applicable
	Secondary domain.ParticleID
	// EnergyFraction is the fraction of energy given to a split secondary.
	EnergyFraction float64
}

// PhysicsParams holds the discrete models and per-track limits.
type PhysicsParams struct {
	Models []Model
	// ModelActions maps each model to its registered action.
	ModelActions []domain.ActionID
	// SecondaryCapacity is the number of secondaries a track may emit per
	// step.
	SecondaryCapacity int
	// EnergyCutoff kills tracks that fall below it, in MeV.
	EnergyCutoff float64
}

// Valid reports whether every model has one grid per material and an
// action.
func (p *PhysicsParams) Valid(numMaterials int) bool {
	if p == nil || p.SecondaryCapacity <= 0 || len(p.ModelActions) != len(p.Models) {
		return false
	}
	for i, m := range p.Models {
		if len(m.XS) != numMaterials || !p.ModelActions[i].Valid() {
			return false
		}
	}
	return true
}

// TotalXS is the summed macroscopic cross section for a particle in a
// material at an energy.
func (p *PhysicsParams) TotalXS(pid domain.ParticleID, mat domain.MaterialID, energy float64) float64 {
	var total float64
	for i := range p.Models {
		if m := &p.Models[i]; m.Particle == pid {
			total += m.XS[mat].Eval(energy)
		}
	}
	return total
}

// RngParams seeds the per-slot random number streams.
type RngParams struct {
	Seed uint64
}

// Valid is always true for constructed params.
func (r *RngParams) Valid() bool { return r != nil }

// SimParams limits the simulation.
type SimParams struct {
	// MaxSteps is the per-track step limit before the track is errored.
	MaxSteps int
}

// Valid reports whether the step limit is set.
func (s *SimParams) Valid() bool { return s != nil && s.MaxSteps > 0 }

// TrackInitParams sizes the track initialization buffers.
type TrackInitParams struct {
	Capacity  int // initializer buffer size per stream
	MaxEvents int
}

// Valid reports whether the capacities are positive.
func (t *TrackInitParams) Valid() bool { return t != nil && t.Capacity > 0 && t.MaxEvents > 0 }

// Scalars caches the IDs of always-present actions for dispatch without a
// registry lookup.
type Scalars struct {
	BoundaryAction         domain.ActionID
	PropagationLimitAction domain.ActionID
	TrackingCutAction      domain.ActionID
	AlongStepAction        domain.ActionID
	DiscreteSelectAction   domain.ActionID
	MaxStreams             int
}

// Valid reports whether every action is assigned and streams are allowed.
func (s Scalars) Valid() bool {
	return s.BoundaryAction.Valid() && s.PropagationLimitAction.Valid() &&
		s.TrackingCutAction.Valid() && s.AlongStepAction.Valid() &&
		s.DiscreteSelectAction.Valid() && s.MaxStreams > 0
}

// ParamsData aggregates every sub-parameter.
type ParamsData struct {
	Geometry *GeoParams
	Material *MaterialParams
	Particle *ParticleParams
	Physics  *PhysicsParams
	Rng      *RngParams
	Sim      *SimParams
	Init     *TrackInitParams
	Scalars  Scalars
}

// Valid reports whether every constituent is assigned and valid.
func (d *ParamsData) Valid() bool {
	return d.Geometry.Valid() && d.Material.Valid() && d.Particle.Valid() &&
		d.Physics.Valid(d.Material.NumMaterials()) && d.Rng.Valid() &&
		d.Sim.Valid() && d.Init.Valid() && d.Scalars.Valid()
}

// Input is everything needed to construct Params.
type Input struct {
	Geometry  *GeoParams
	Material  *MaterialParams
	Particle  *ParticleParams
	Physics   *PhysicsParams
	Rng       *RngParams
	Sim       *SimParams
	Init      *TrackInitParams
	ActionReg *action.Registry
	Scalars   Scalars
	// MaxStreams bounds the stream IDs of states built from these params.
	MaxStreams int
	// Device is required to build device-resident states.
	Device *device.Device
}

// Validate reports the first missing or invalid field by name.
func (in *Input) Validate() error {
	missing := func(what string) error {
		return domain.Validationf(domain.ErrInvalidParams, "core input is missing %s data", what)
	}
	switch {
	case !in.Geometry.Valid():
		return missing("geometry")
	case !in.Material.Valid():
		return missing("material")
	case !in.Particle.Valid():
		return missing("particle")
	case in.Physics == nil:
		return missing("physics")
	case !in.Rng.Valid():
		return missing("rng")
	case !in.Sim.Valid():
		return missing("sim")
	case !in.Init.Valid():
		return missing("init")
	case in.ActionReg == nil:
		return missing("action_reg")
	case in.MaxStreams <= 0:
		return missing("max_streams")
	}
	for i, v := range in.Geometry.Materials {
		if int(v) < 0 || int(v) >= in.Material.NumMaterials() {
			return domain.Validationf(domain.ErrInvalidParams,
				"volume %d has material %d but only %d materials exist", i, v, in.Material.NumMaterials())
		}
	}
	if !in.Physics.Valid(in.Material.NumMaterials()) {
		return domain.Validationf(domain.ErrInvalidParams,
			"physics has inconsistent model tables for %d materials", in.Material.NumMaterials())
	}
	return nil
}

// Params is the immutable per-run data shared by every stream.
type Params struct {
	data   ParamsData
	reg    *action.Registry
	device *device.Device
}

// NewParams validates the input and saves the scalars.
func NewParams(in Input) (*Params, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	scalars := in.Scalars
	scalars.MaxStreams = in.MaxStreams
	if !scalars.Valid() {
		return nil, domain.Validationf(domain.ErrInvalidParams,
			"core scalars are missing an always-on action: %+v", scalars)
	}
	for _, id := range []domain.ActionID{scalars.BoundaryAction, scalars.PropagationLimitAction,
		scalars.TrackingCutAction, scalars.AlongStepAction, scalars.DiscreteSelectAction} {
		if int(id) >= in.ActionReg.NumActions() {
			return nil, domain.Validationf(domain.ErrActionNotFound,
				"scalar action %d is not registered (%d actions)", id, in.ActionReg.NumActions())
		}
	}

	p := &Params{
		data: ParamsData{
			Geometry: in.Geometry,
			Material: in.Material,
			Particle: in.Particle,
			Physics:  in.Physics,
			Rng:      in.Rng,
			Sim:      in.Sim,
			Init:     in.Init,
			Scalars:  scalars,
		},
		reg:    in.ActionReg,
		device: in.Device,
	}
	logger.For(logger.ComponentCore).Infow("Core setup complete",
		"actions", p.reg.NumActions(), "max_streams", scalars.MaxStreams,
		"volumes", in.Geometry.NumVolumes(), "models", len(in.Physics.Models))
	return p, nil
}

// Ref returns the shared parameter data.
func (p *Params) Ref() *ParamsData { return &p.data }

// ActionRegistry returns the registry of every action in the run.
func (p *Params) ActionRegistry() *action.Registry { return p.reg }

// MaxStreams bounds the stream IDs of states.
func (p *Params) MaxStreams() int { return p.data.Scalars.MaxStreams }

// Device is the accelerator, or nil when running host-only.
func (p *Params) Device() *device.Device { return p.device }
