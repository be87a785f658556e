package stepping

import (
	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/track"
)

// Options selects optional actions.
type Options struct {
	// StatusChecker registers the debug status checker.
	StatusChecker bool
	// Register, if set, adds user actions after the built-in ones.
	Register func(reg *action.Registry) error
}

// Actions are the built-in actions of a core run.
type Actions struct {
	Track            track.Actions
	PreStep          *PreStepAction
	AlongStep        *AlongStepAction
	DiscreteSelect   *DiscreteSelectAction
	Boundary         *BoundaryAction
	PropagationLimit *PropagationLimitAction
	TrackingCut      *TrackingCutAction
	Models           []*ModelAction
}

// BuildParams registers every always-on action into a fresh registry,
// assigns an action to each physics model, and constructs the core params.
// The input's ActionReg and Scalars are overwritten.
func BuildParams(in core.Input, opts Options) (*core.Params, Actions, error) {
	var out Actions
	if in.Physics == nil {
		return nil, out, domain.Validationf(domain.ErrInvalidParams, "core input is missing physics data")
	}
	reg := action.NewRegistry()

	var err error
	if out.Track, err = track.Register(reg, opts.StatusChecker); err != nil {
		return nil, out, err
	}
	out.PreStep = NewPreStep(reg.NextID())
	if err := reg.Insert(out.PreStep); err != nil {
		return nil, out, err
	}
	out.AlongStep = NewAlongStep(reg.NextID())
	if err := reg.Insert(out.AlongStep); err != nil {
		return nil, out, err
	}
	out.DiscreteSelect = NewDiscreteSelect(reg.NextID())
	if err := reg.Insert(out.DiscreteSelect); err != nil {
		return nil, out, err
	}
	out.Boundary = NewBoundary(reg.NextID())
	if err := reg.Insert(out.Boundary); err != nil {
		return nil, out, err
	}
	out.PropagationLimit = NewPropagationLimit(reg.NextID())
	if err := reg.Insert(out.PropagationLimit); err != nil {
		return nil, out, err
	}
	out.TrackingCut = NewTrackingCut(reg.NextID())
	if err := reg.Insert(out.TrackingCut); err != nil {
		return nil, out, err
	}

	physics := *in.Physics
	physics.ModelActions = make([]domain.ActionID, len(physics.Models))
	for i, m := range physics.Models {
		ma := NewModelAction(reg.NextID(), i, m)
		if err := reg.Insert(ma); err != nil {
			return nil, out, err
		}
		physics.ModelActions[i] = ma.ActionID()
		out.Models = append(out.Models, ma)
	}

	if opts.Register != nil {
		if err := opts.Register(reg); err != nil {
			return nil, out, err
		}
	}

	in.Physics = &physics
	in.ActionReg = reg
	in.Scalars = core.Scalars{
		BoundaryAction:         out.Boundary.ActionID(),
		PropagationLimitAction: out.PropagationLimit.ActionID(),
		TrackingCutAction:      out.TrackingCut.ActionID(),
		AlongStepAction:        out.AlongStep.ActionID(),
		DiscreteSelectAction:   out.DiscreteSelect.ActionID(),
	}
	params, err := core.NewParams(in)
	if err != nil {
		return nil, out, err
	}
	return params, out, nil
}
