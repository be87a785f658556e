package optical

import (
	"fmt"

	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/grid"
	"github.com/celeritas-project/celer-engine/internal/logger"
)

// ImportGrid is a tabulated mean free path (cm) versus photon energy (eV).
// An empty grid means the process does not occur in the material.
type ImportGrid struct {
	Energy []float64
	MFP    []float64
}

// ImportModel is the imported MFP table of one process, indexed by
// material.
type ImportModel struct {
	Kind ModelKind
	MFP  []ImportGrid
}

// ImportMaterial is an imported optical material with its optional
// process parameters.
type ImportMaterial struct {
	Name            string
	RefractiveIndex float64
	Mie             *MieParams
	WLS             *WLSParams
	WLS2            *WLSParams
}

// ImportSurface is an interior boundary between two slabs.
type ImportSurface struct {
	Name         string
	Reflectivity float64
}

// ImportData is the optical part of a problem definition.
type ImportData struct {
	Materials []ImportMaterial
	Models    []ImportModel
	Surfaces  []ImportSurface
}

// MaterialParams extracts the optical materials.
func (d *ImportData) MaterialParams() *MaterialParams {
	out := &MaterialParams{Materials: make([]Material, len(d.Materials))}
	for i, m := range d.Materials {
		out.Materials[i] = Material{Name: m.Name, RefractiveIndex: m.RefractiveIndex}
	}
	return out
}

// Model returns the imported table for a process.
func (d *ImportData) Model(kind ModelKind) (*ImportModel, bool) {
	for i := range d.Models {
		if d.Models[i].Kind == kind {
			return &d.Models[i], true
		}
	}
	return nil, false
}

// UserBuildInput is what a user builder may draw on.
type UserBuildInput struct {
	Data      *ImportData
	Materials *MaterialParams
}

// UserBuilder overrides the builder for one process. A nil ModelBuilder
// with a nil error omits the process.
type UserBuilder func(UserBuildInput) (ModelBuilder, error)

// UserBuildMap maps processes to user builders.
type UserBuildMap map[ModelKind]UserBuilder

// WarnAndIgnore omits a process with a warning.
func WarnAndIgnore(kind ModelKind) UserBuilder {
	return func(UserBuildInput) (ModelBuilder, error) {
		logger.For(logger.ComponentOptical).Warnf("Omitting optical model '%s' from physics", kind)
		return nil, nil
	}
}

// ModelImporter creates model builders from imported data.
type ModelImporter struct {
	input UserBuildInput
	user  UserBuildMap
}

// NewModelImporter wraps imported data and optional user builders.
func NewModelImporter(data *ImportData, user UserBuildMap) (*ModelImporter, error) {
	if data == nil || len(data.Materials) == 0 {
		return nil, domain.Validationf(domain.ErrOpticalInputMissing, "optical import data has no materials")
	}
	return &ModelImporter{
		input: UserBuildInput{Data: data, Materials: data.MaterialParams()},
		user:  user,
	}, nil
}

// Build returns the builder for a process. User builders take precedence
// over the built-in ones. A nil builder means the process was omitted.
func (mi *ModelImporter) Build(kind ModelKind) (ModelBuilder, error) {
	if user, ok := mi.user[kind]; ok {
		return user(mi.input)
	}
	switch kind {
	case ModelAbsorption:
		return mi.buildAbsorption()
	case ModelRayleigh:
		return mi.buildRayleigh()
	case ModelMie:
		return mi.buildMie()
	case ModelWLS, ModelWLS2:
		return mi.buildWLS(kind)
	}
	return nil, domain.Validationf(domain.ErrUnsupportedModel, "cannot build unsupported optical model '%s'", kind)
}

// BuildAll returns builders for every imported process, in import order,
// skipping omitted ones.
func (mi *ModelImporter) BuildAll() ([]ModelBuilder, error) {
	var out []ModelBuilder
	for _, m := range mi.input.Data.Models {
		b, err := mi.Build(m.Kind)
		if err != nil {
			return nil, err
		}
		if b != nil {
			out = append(out, b)
		}
	}
	return out, nil
}

// grids converts the imported MFP table for a process.
func (mi *ModelImporter) grids(kind ModelKind) ([]grid.Grid, error) {
	imported, ok := mi.input.Data.Model(kind)
	if !ok {
		return nil, domain.Validationf(domain.ErrProblemInvalid, "optical model '%s' has no imported MFP table", kind)
	}
	out := make([]grid.Grid, len(imported.MFP))
	for mat, g := range imported.MFP {
		if len(g.Energy) == 0 && len(g.MFP) == 0 {
			continue
		}
		built, err := grid.New(g.Energy, g.MFP)
		if err != nil {
			return nil, domain.WrapEngineError(domain.ErrInvalidGrid.Code,
				fmt.Sprintf("optical model '%s' MFP table for material %d", kind, mat), err)
		}
		out[mat] = built
	}
	return out, nil
}

func (mi *ModelImporter) buildAbsorption() (ModelBuilder, error) {
	grids, err := mi.grids(ModelAbsorption)
	if err != nil {
		return nil, err
	}
	return func(id domain.ActionID) (Model, error) { return NewAbsorptionModel(id, grids), nil }, nil
}

func (mi *ModelImporter) buildRayleigh() (ModelBuilder, error) {
	grids, err := mi.grids(ModelRayleigh)
	if err != nil {
		return nil, err
	}
	return func(id domain.ActionID) (Model, error) { return NewRayleighModel(id, grids), nil }, nil
}

func (mi *ModelImporter) buildMie() (ModelBuilder, error) {
	grids, err := mi.grids(ModelMie)
	if err != nil {
		return nil, err
	}
	params := make([]MieParams, len(mi.input.Data.Materials))
	for mat, m := range mi.input.Data.Materials {
		if m.Mie != nil {
			params[mat] = *m.Mie
		} else if mat < len(grids) && !grids[mat].Empty() {
			return nil, domain.Validationf(domain.ErrProblemInvalid,
				"optical material %q has a Mie MFP table but no Mie parameters", m.Name)
		}
	}
	return func(id domain.ActionID) (Model, error) { return NewMieModel(id, grids, params), nil }, nil
}

func (mi *ModelImporter) buildWLS(kind ModelKind) (ModelBuilder, error) {
	grids, err := mi.grids(kind)
	if err != nil {
		return nil, err
	}
	params := make([]WLSParams, len(mi.input.Data.Materials))
	for mat, m := range mi.input.Data.Materials {
		wls := m.WLS
		if kind == ModelWLS2 {
			wls = m.WLS2
		}
		if wls == nil {
			if mat < len(grids) && !grids[mat].Empty() {
				return nil, domain.Validationf(domain.ErrProblemInvalid,
					"optical material %q has a %s MFP table but no re-emission parameters", m.Name, kind)
			}
			continue
		}
		if !(wls.Energy > 0) || wls.MeanNumPhotons < 0 || wls.TimeConstant < 0 {
			return nil, domain.Validationf(domain.ErrProblemInvalid,
				"optical material %q has invalid %s parameters", m.Name, kind)
		}
		params[mat] = *wls
	}
	return func(id domain.ActionID) (Model, error) { return NewWLSModel(id, kind, grids, params), nil }, nil
}
