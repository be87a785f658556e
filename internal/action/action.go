// Package action defines the stepping-loop action interfaces, the
// append-only action registry, and the sequence that orders and dispatches
// registered actions once per step iteration.
package action

import "github.com/celeritas-project/celer-engine/internal/domain"

// Action is a registered unit of stepping-loop behavior.
type Action interface {
	ActionID() domain.ActionID
	Label() string
	Description() string
}

// StepAction is executed once per step iteration over a whole state.
type StepAction[P, S any] interface {
	Action
	Order() domain.StepActionOrder
	Step(params P, state S) error
}

// BeginRunAction is executed once per state before the first step.
type BeginRunAction[P, S any] interface {
	Action
	BeginRun(params P, state S) error
}

// StatusChecker is a begin-run action that the sequence invokes after every
// executed step action to validate the track states it produced.
type StatusChecker[P, S any] interface {
	BeginRunAction[P, S]
	CheckStep(id domain.ActionID, params P, state S) error
}

// ConcreteAction stores the identity of an action. Embed it to satisfy the
// Action interface.
type ConcreteAction struct {
	id          domain.ActionID
	label       string
	description string
}

// NewConcreteAction creates the identity for an action about to be inserted
// with the given ID.
func NewConcreteAction(id domain.ActionID, label, description string) ConcreteAction {
	return ConcreteAction{id: id, label: label, description: description}
}

// ActionID returns the registry index assigned to this action.
func (a ConcreteAction) ActionID() domain.ActionID { return a.id }

// Label returns the unique short name.
func (a ConcreteAction) Label() string { return a.label }

// Description returns the human-readable explanation.
func (a ConcreteAction) Description() string { return a.description }
