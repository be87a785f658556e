package action

import (
	"reflect"

	"github.com/celeritas-project/celer-engine/internal/assert"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// Entry describes one registered action for diagnostics output.
type Entry struct {
	ID          domain.ActionID `json:"id"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
}

// Registry assigns dense IDs to actions in insertion order. It is
// append-only: there is no removal, and it is read-only once setup is done.
type Registry struct {
	actions []Action
	byLabel map[string]domain.ActionID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byLabel: make(map[string]domain.ActionID)}
}

// NextID returns the ID that the next Insert will assign.
func (r *Registry) NextID() domain.ActionID {
	return domain.ActionID(len(r.actions))
}

// Insert registers an action whose ID must equal NextID.
func (r *Registry) Insert(a Action) error {
	if isNil(a) {
		return domain.ErrNullAction
	}
	label := a.Label()
	if label == "" {
		return domain.Validationf(domain.ErrEmptyLabel,
			"action with ID %d has an empty label", a.ActionID())
	}
	if prev, ok := r.byLabel[label]; ok {
		return domain.Validationf(domain.ErrDuplicateLabel,
			"duplicate action label %q (already registered with ID %d)", label, prev)
	}
	if a.ActionID() != r.NextID() {
		return domain.Validationf(domain.ErrActionIDMismatch,
			"action %q has ID %d but the next registry ID is %d", label, a.ActionID(), r.NextID())
	}
	r.byLabel[label] = a.ActionID()
	r.actions = append(r.actions, a)
	return nil
}

// isNil also catches a nil pointer stored in a non-nil interface.
func isNil(a Action) bool {
	if a == nil {
		return true
	}
	v := reflect.ValueOf(a)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// NumActions is the number of registered actions.
func (r *Registry) NumActions() int { return len(r.actions) }

// Empty reports whether nothing has been registered.
func (r *Registry) Empty() bool { return len(r.actions) == 0 }

// Action returns the action with the given ID.
func (r *Registry) Action(id domain.ActionID) Action {
	assert.Expect(id.Valid() && int(id) < len(r.actions), "action id < num actions")
	return r.actions[id]
}

// IDToLabel returns the label of the action with the given ID.
func (r *Registry) IDToLabel(id domain.ActionID) string {
	return r.Action(id).Label()
}

// FindAction returns the ID for a label, or an invalid ID if absent.
func (r *Registry) FindAction(label string) domain.ActionID {
	if id, ok := r.byLabel[label]; ok {
		return id
	}
	return domain.InvalidActionID
}

// Labels returns every label indexed by action ID.
func (r *Registry) Labels() []string {
	out := make([]string, len(r.actions))
	for i, a := range r.actions {
		out[i] = a.Label()
	}
	return out
}

// Entries returns the ID, label and description of every action.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.actions))
	for i, a := range r.actions {
		out[i] = Entry{ID: a.ActionID(), Label: a.Label(), Description: a.Description()}
	}
	return out
}

// StepActions returns the registered actions that can step with params P
// and state S, in registration order.
func StepActions[P, S any](r *Registry) []StepAction[P, S] {
	var out []StepAction[P, S]
	for _, a := range r.actions {
		if sa, ok := a.(StepAction[P, S]); ok {
			out = append(out, sa)
		}
	}
	return out
}

// BeginRunActions returns the registered actions with a begin-run hook for
// params P and state S, in registration order.
func BeginRunActions[P, S any](r *Registry) []BeginRunAction[P, S] {
	var out []BeginRunAction[P, S]
	for _, a := range r.actions {
		if ba, ok := a.(BeginRunAction[P, S]); ok {
			out = append(out, ba)
		}
	}
	return out
}
