package optical

import (
	"strings"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/grid"
)

// ModelKind identifies a discrete optical process.
type ModelKind int

const (
	ModelAbsorption ModelKind = iota
	ModelRayleigh
	ModelMie
	ModelWLS
	ModelWLS2
	numModelKinds
)

var modelKindNames = [...]string{"absorption", "rayleigh", "mie", "wls", "wls2"}

// String returns the lowercase model name.
func (k ModelKind) String() string {
	if k < 0 || k >= numModelKinds {
		return "unknown"
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
	return -1, domain.Validationf(domain.ErrUnsupportedModel, "cannot build unsupported optical model '%s'", s)
}

// Model is a discrete optical interaction. It is a post-step action that
// applies to the tracks which selected it.
type Model interface {
	action.StepAction[*CoreParams, *State]
	Kind() ModelKind
	// BuildMFPs appends exactly one mean free path grid for a material. An
	// empty grid means the model does not apply in that material.
	BuildMFPs(mat domain.MaterialID, b *MFPBuilder)
}

// ModelBuilder constructs a model with its assigned action ID.
type ModelBuilder func(id domain.ActionID) (Model, error)

// MFPBuilder collects mean free path grids in material order.
type MFPBuilder struct {
	grids []grid.Grid
}

// Push appends a grid.
func (b *MFPBuilder) Push(g grid.Grid) { b.grids = append(b.grids, g) }

// PushEmpty appends a grid marking the model as not applicable.
func (b *MFPBuilder) PushEmpty() { b.grids = append(b.grids, grid.Grid{}) }

// Len is the number of grids built so far.
func (b *MFPBuilder) Len() int { return len(b.grids) }

// PhysicsInput configures PhysicsParams.
type PhysicsInput struct {
	ModelBuilders []ModelBuilder
	Materials     *MaterialParams
	ActionReg     *action.Registry
}

// PhysicsParams holds the optical models and their MFP tables.
type PhysicsParams struct {
	models       []Model
	modelActions []domain.ActionID
	grids        [][]grid.Grid // [model][material]
	numMaterials int
	discrete     domain.ActionID
}

// NewPhysicsParams registers the discrete selection action and one action
// per model, then builds each model's MFP grids.
func NewPhysicsParams(in PhysicsInput) (*PhysicsParams, error) {
	if in.Materials == nil || in.ActionReg == nil {
		return nil, domain.Validationf(domain.ErrOpticalInputMissing,
			"optical physics input is missing materials or action registry")
	}
	reg := in.ActionReg
	p := &PhysicsParams{numMaterials: in.Materials.NumMaterials()}

	discrete := NewDiscreteSelect(reg.NextID())
	if err := reg.Insert(discrete); err != nil {
		return nil, err
	}
	p.discrete = discrete.ActionID()

	for _, build := range in.ModelBuilders {
		m, err := build(reg.NextID())
		if err != nil {
			return nil, err
		}
		if err := reg.Insert(m); err != nil {
			return nil, err
		}
		grids, err := buildGrids(m, p.numMaterials)
		if err != nil {
			return nil, err
		}
		p.models = append(p.models, m)
		p.modelActions = append(p.modelActions, m.ActionID())
		p.grids = append(p.grids, grids)
	}
	return p, nil
}

// buildGrids requires one grid per material and positive MFP values.
func buildGrids(m Model, numMaterials int) ([]grid.Grid, error) {
	var b MFPBuilder
	for mat := 0; mat < numMaterials; mat++ {
		before := b.Len()
		m.BuildMFPs(domain.MaterialID(mat), &b)
		if got := b.Len() - before; got != 1 {
			return nil, domain.Validationf(domain.ErrMFPGridMismatch,
				"optical model %q built %d MFP grids for material %d", m.Label(), got, mat)
		}
	}
	for mat, g := range b.grids {
		_, y := g.Points()
		for _, v := range y {
			if !(v > 0) {
				return nil, domain.Validationf(domain.ErrInvalidGrid,
					"optical model %q has non-positive MFP %g in material %d", m.Label(), v, mat)
			}
		}
	}
	return b.grids, nil
}

// NumModels is the number of discrete models.
func (p *PhysicsParams) NumModels() int { return len(p.models) }

// NumMaterials is the number of materials the grids were built for.
func (p *PhysicsParams) NumMaterials() int { return p.numMaterials }

// Model returns the model at index i.
func (p *PhysicsParams) Model(i int) Model { return p.models[i] }

// ModelAction maps a model index to its action ID.
func (p *PhysicsParams) ModelAction(i int) domain.ActionID { return p.modelActions[i] }

// ActionToModel maps an action ID to a model index.
func (p *PhysicsParams) ActionToModel(id domain.ActionID) (int, bool) {
	for i, a := range p.modelActions {
		if a == id {
			return i, true
		}
	}
	return -1, false
}

// DiscreteAction is the ID of the discrete selection action.
func (p *PhysicsParams) DiscreteAction() domain.ActionID { return p.discrete }

// MFPGrid returns a model's grid for a material.
func (p *PhysicsParams) MFPGrid(model int, mat domain.MaterialID) grid.Grid {
	return p.grids[model][mat]
}

// XS is a model's macroscopic cross section (inverse MFP) at an energy, or
// zero if the model does not apply in the material.
func (p *PhysicsParams) XS(model int, mat domain.MaterialID, energy float64) float64 {
	g := p.grids[model][mat]
	if g.Empty() {
		return 0
	}
	return 1 / g.Eval(energy)
}

// TotalXS sums the cross sections of every model.
func (p *PhysicsParams) TotalXS(mat domain.MaterialID, energy float64) float64 {
	var total float64
	for i := range p.models {
		total += p.XS(i, mat, energy)
	}
	return total
}
