// Package importer reads a slab problem definition from YAML: the geometry,
// materials, particles, tabulated physics, and optional optical data.
package importer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/grid"
	"github.com/celeritas-project/celer-engine/internal/logger"
	"github.com/celeritas-project/celer-engine/internal/optical"
)

// Table is a tabulated function of energy.
type Table struct {
	Energy []float64 `yaml:"energy"`
	Value  []float64 `yaml:"value"`
}

type mieFile struct {
	Forward      float64 `yaml:"forward"`
	Backward     float64 `yaml:"backward"`
	ForwardRatio float64 `yaml:"forward_ratio"`
}

type wlsFile struct {
	MeanNumPhotons float64 `yaml:"mean_num_photons"`
	TimeConstant   float64 `yaml:"time_constant"`
	Energy         float64 `yaml:"energy"`
}

type opticalMaterialFile struct {
	RefractiveIndex float64  `yaml:"refractive_index"`
	Mie             *mieFile `yaml:"mie"`
	WLS             *wlsFile `yaml:"wls"`
	WLS2            *wlsFile `yaml:"wls2"`
}

type materialFile struct {
	Name       string               `yaml:"name"`
	EnergyLoss float64              `yaml:"energy_loss"`
	Optical    *opticalMaterialFile `yaml:"optical"`
}

type volumeFile struct {
	Name     string `yaml:"name"`
	Material string `yaml:"material"`
}

type geometryFile struct {
	Bounds  []float64    `yaml:"bounds"`
	Volumes []volumeFile `yaml:"volumes"`
}

type particleFile struct {
	Name   string  `yaml:"name"`
	Mass   float64 `yaml:"mass"`
	Charge float64 `yaml:"charge"`
}

type modelFile struct {
	Label          string           `yaml:"label"`
	Kind           string           `yaml:"kind"`
	Particle       string           `yaml:"particle"`
	Secondary      string           `yaml:"secondary"`
	EnergyFraction float64          `yaml:"energy_fraction"`
	XS             map[string]Table `yaml:"xs"`
}

type physicsFile struct {
	EnergyCutoff float64     `yaml:"energy_cutoff"`
	Models       []modelFile `yaml:"models"`
}

type surfaceFile struct {
	Name         string  `yaml:"name"`
	Reflectivity float64 `yaml:"reflectivity"`
}

type opticalModelFile struct {
	Kind string           `yaml:"kind"`
	MFP  map[string]Table `yaml:"mfp"`
}

type opticalFile struct {
	MaxSteps      int                `yaml:"max_steps"`
	Generators    int                `yaml:"generators"`
	Primaries     int                `yaml:"primaries"`
	Yield         float64            `yaml:"yield"`
	PhotonEnergy  float64            `yaml:"photon_energy"`
	Surfaces      []surfaceFile      `yaml:"surfaces"`
	Models        []opticalModelFile `yaml:"models"`
	OmittedModels []string           `yaml:"omit"`
}

type problemFile struct {
	Name      string         `yaml:"name"`
	Materials []materialFile `yaml:"materials"`
	Geometry  geometryFile   `yaml:"geometry"`
	Particles []particleFile `yaml:"particles"`
	Physics   physicsFile    `yaml:"physics"`
	Optical   *opticalFile   `yaml:"optical"`
}

// Scintillation converts deposited energy to optical photons.
type Scintillation struct {
	Yield        float64 // photons per MeV
	PhotonEnergy float64 // eV
}

// Optical is the optical part of a problem.
type Optical struct {
	Data          *optical.ImportData
	Omitted       []optical.ModelKind
	MaxSteps      int
	Generators    int
	Primaries     int
	Scintillation Scintillation
}

// Problem is an imported problem definition. Run sizes such as the number
// of track slots and the random seed come from the run configuration.
type Problem struct {
	Name     string
	Geometry *core.GeoParams
	Material *core.MaterialParams
	Particle *core.ParticleParams
	Physics  *core.PhysicsParams
	Optical  *Optical
}

// Load reads and converts a YAML problem file.
func Load(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problem file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.For(logger.ComponentImporter).Infow("Loaded problem",
		"name", p.Name, "path", path, "volumes", p.Geometry.NumVolumes(),
		"models", len(p.Physics.Models), "optical", p.Optical != nil)
	return p, nil
}

// Parse converts YAML problem data.
func Parse(data []byte) (*Problem, error) {
	var f problemFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, domain.WrapEngineError(domain.ErrProblemInvalid.Code, "parse problem YAML", err)
	}
	return f.convert()
}

func invalid(format string, args ...any) error {
	return domain.Validationf(domain.ErrProblemInvalid, format, args...)
}

func (f *problemFile) convert() (*Problem, error) {
	if len(f.Materials) == 0 {
		return nil, invalid("problem defines no materials")
	}
	if len(f.Particles) == 0 {
		return nil, invalid("problem defines no particles")
	}

	p := &Problem{
		Name:     f.Name,
		Material: &core.MaterialParams{},
		Particle: &core.ParticleParams{},
	}
	matIDs := make(map[string]domain.MaterialID, len(f.Materials))
	for i, m := range f.Materials {
		if _, dup := matIDs[m.Name]; dup || m.Name == "" {
			return nil, invalid("material %d has a missing or duplicate name %q", i, m.Name)
		}
		if m.EnergyLoss < 0 {
			return nil, invalid("material %q has negative energy loss", m.Name)
		}
		matIDs[m.Name] = domain.MaterialID(i)
		p.Material.Materials = append(p.Material.Materials, core.Material{Name: m.Name, EnergyLoss: m.EnergyLoss})
	}
	for _, def := range f.Particles {
		if _, dup := p.Particle.Find(def.Name); dup || def.Name == "" {
			return nil, invalid("particle has a missing or duplicate name %q", def.Name)
		}
		p.Particle.Particles = append(p.Particle.Particles, core.ParticleDef{Name: def.Name, Mass: def.Mass, Charge: def.Charge})
	}

	geo, err := f.Geometry.convert(matIDs)
	if err != nil {
		return nil, err
	}
	p.Geometry = geo

	if p.Physics, err = f.Physics.convert(f.Materials, p.Particle); err != nil {
		return nil, err
	}
	if f.Optical != nil {
		if p.Optical, err = f.Optical.convert(f.Materials); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (g *geometryFile) convert(matIDs map[string]domain.MaterialID) (*core.GeoParams, error) {
	out := &core.GeoParams{Bounds: g.Bounds}
	for _, v := range g.Volumes {
		id, ok := matIDs[v.Material]
		if !ok {
			return nil, invalid("volume %q uses undefined material %q", v.Name, v.Material)
		}
		out.Materials = append(out.Materials, id)
		out.Names = append(out.Names, v.Name)
	}
	if !out.Valid() {
		return nil, invalid("geometry needs increasing bounds and one volume per slab (%d bounds, %d volumes)",
			len(g.Bounds), len(g.Volumes))
	}
	return out, nil
}

// tables converts per-material tables to grids in material order. Materials
// without a table get an empty grid.
func tables(what string, materials []materialFile, byName map[string]Table) ([]grid.Grid, error) {
	known := make(map[string]bool, len(materials))
	out := make([]grid.Grid, len(materials))
	for i, m := range materials {
		known[m.Name] = true
		t, ok := byName[m.Name]
		if !ok {
			continue
		}
		g, err := grid.New(t.Energy, t.Value)
		if err != nil {
			return nil, fmt.Errorf("%s in material %q: %w", what, m.Name, err)
		}
		out[i] = g
	}
	for name := range byName {
		if !known[name] {
			return nil, invalid("%s refers to undefined material %q", what, name)
		}
	}
	return out, nil
}

func (ph *physicsFile) convert(materials []materialFile, particles *core.ParticleParams) (*core.PhysicsParams, error) {
	out := &core.PhysicsParams{EnergyCutoff: ph.EnergyCutoff}
	for _, m := range ph.Models {
		kind, err := core.ParseModelKind(m.Kind)
		if err != nil {
			return nil, err
		}
		pid, ok := particles.Find(m.Particle)
		if !ok {
			return nil, invalid("model %q applies to undefined particle %q", m.Label, m.Particle)
		}
		model := core.Model{Label: m.Label, Kind: kind, Particle: pid, EnergyFraction: m.EnergyFraction}
		if kind == core.ModelSplit {
			sid, ok := particles.Find(m.Secondary)
			if !ok {
				return nil, invalid("model %q emits undefined particle %q", m.Label, m.Secondary)
			}
			if !(m.EnergyFraction > 0 && m.EnergyFraction < 1) {
				return nil, invalid("model %q energy fraction %g is outside (0, 1)", m.Label, m.EnergyFraction)
			}
			model.Secondary = sid
		}
		if model.XS, err = tables("model "+m.Label+" cross section", materials, m.XS); err != nil {
			return nil, err
		}
		out.Models = append(out.Models, model)
	}
	return out, nil
}

func (o *opticalFile) convert(materials []materialFile) (*Optical, error) {
	out := &Optical{
		Data:       &optical.ImportData{},
		MaxSteps:   o.MaxSteps,
		Generators: o.Generators,
		Primaries:  o.Primaries,
		Scintillation: Scintillation{
			Yield:        o.Yield,
			PhotonEnergy: o.PhotonEnergy,
		},
	}
	for _, m := range materials {
		im := optical.ImportMaterial{Name: m.Name, RefractiveIndex: 1}
		if om := m.Optical; om != nil {
			if om.RefractiveIndex != 0 {
				im.RefractiveIndex = om.RefractiveIndex
			}
			if om.Mie != nil {
				im.Mie = &optical.MieParams{Forward: om.Mie.Forward, Backward: om.Mie.Backward, ForwardRatio: om.Mie.ForwardRatio}
			}
			im.WLS = om.WLS.convert()
			im.WLS2 = om.WLS2.convert()
		}
		out.Data.Materials = append(out.Data.Materials, im)
	}
	for _, s := range o.Surfaces {
		out.Data.Surfaces = append(out.Data.Surfaces, optical.ImportSurface{Name: s.Name, Reflectivity: s.Reflectivity})
	}
	for _, m := range o.Models {
		kind, err := optical.ParseModelKind(m.Kind)
		if err != nil {
			return nil, err
		}
		grids, err := tables("optical "+m.Kind+" MFP", materials, m.MFP)
		if err != nil {
			return nil, err
		}
		im := optical.ImportModel{Kind: kind, MFP: make([]optical.ImportGrid, len(grids))}
		for i, g := range grids {
			im.MFP[i].Energy, im.MFP[i].MFP = g.Points()
		}
		out.Data.Models = append(out.Data.Models, im)
	}
	for _, name := range o.OmittedModels {
		kind, err := optical.ParseModelKind(name)
		if err != nil {
			return nil, err
		}
		out.Omitted = append(out.Omitted, kind)
	}
	return out, nil
}

func (w *wlsFile) convert() *optical.WLSParams {
	if w == nil {
		return nil
	}
	return &optical.WLSParams{MeanNumPhotons: w.MeanNumPhotons, TimeConstant: w.TimeConstant, Energy: w.Energy}
}

// UserModels omits the optical models listed in the problem file.
func (o *Optical) UserModels() optical.UserBuildMap {
	if len(o.Omitted) == 0 {
		return nil
	}
	out := make(optical.UserBuildMap, len(o.Omitted))
	for _, kind := range o.Omitted {
		out[kind] = optical.WarnAndIgnore(kind)
	}
	return out
}
