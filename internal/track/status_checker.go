package track

import (
	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// validTransitions lists the status changes a single action may make.
// Each key is a source status, and the value is the set of valid targets.
var validTransitions = map[domain.TrackStatus]map[domain.TrackStatus]bool{
	domain.StatusInactive:     {domain.StatusInitializing: true},
	domain.StatusInitializing: {domain.StatusAlive: true, domain.StatusErrored: true},
	domain.StatusAlive:        {domain.StatusKilled: true, domain.StatusErrored: true},
	domain.StatusErrored:      {domain.StatusKilled: true},
	domain.StatusKilled:       {domain.StatusInactive: true},
}

// IsValidTransition reports whether a slot may change from one status to
// another within a single action. Unchanged status is always valid.
func IsValidTransition(from, to domain.TrackStatus) bool {
	if from == to {
		return true
	}
	return validTransitions[from][to]
}

type statusSnapshot struct {
	status []domain.TrackStatus
}

// StatusChecker validates track statuses after every step action. It is
// attached automatically to a sequence when registered, and is meant for
// debugging since it synchronizes device states after each action.
type StatusChecker struct {
	action.ConcreteAction
}

// NewStatusChecker creates the checker with the given ID.
func NewStatusChecker(id domain.ActionID) *StatusChecker {
	return &StatusChecker{
		ConcreteAction: action.NewConcreteAction(id, "status-check",
			"verify track status transitions and vacancies"),
	}
}

// BeginRun records the initial statuses for a state.
func (c *StatusChecker) BeginRun(_ *core.Params, state *core.State) error {
	if err := state.Sync(); err != nil {
		return err
	}
	snap := &statusSnapshot{status: make([]domain.TrackStatus, state.Size())}
	copy(snap.status, state.Ref().Sim.Status.Data())
	state.SetAux(c.ActionID(), snap)
	return nil
}

// CheckStep compares statuses against those seen after the previous action.
func (c *StatusChecker) CheckStep(id domain.ActionID, params *core.Params, state *core.State) error {
	if err := state.Sync(); err != nil {
		return err
	}
	snap, ok := state.Aux(c.ActionID()).(*statusSnapshot)
	if !ok {
		if err := c.BeginRun(params, state); err != nil {
			return err
		}
		snap = state.Aux(c.ActionID()).(*statusSnapshot)
	}

	label := params.ActionRegistry().IDToLabel(id)
	data := state.Ref()
	for i, cur := range data.Sim.Status.Data() {
		prev := snap.status[i]
		if !IsValidTransition(prev, cur) {
			return domain.Validationf(domain.ErrStatusCheckFailed,
				"invalid status transition %s -> %s in slot %d after action %q", prev, cur, i, label)
		}
		snap.status[i] = cur
	}

	if ordered, ok := params.ActionRegistry().Action(id).(interface {
		Order() domain.StepActionOrder
	}); ok && ordered.Order() == domain.OrderEnd {
		return checkVacancies(data, state.SyncGetCounters(), label)
	}
	return nil
}

// checkVacancies verifies that the live vacancy entries are exactly the
// inactive slots, each listed once.
func checkVacancies(data *core.StateData, counters domain.CoreStateCounters, label string) error {
	seen := make([]bool, data.Size())
	for i := 0; i < counters.NumVacancies; i++ {
		slot := data.Init.Vacancies.At(i)
		if !slot.Valid() || int(slot) >= data.Size() {
			return domain.Validationf(domain.ErrStatusCheckFailed,
				"vacancy %d holds invalid slot %d after action %q", i, slot, label)
		}
		if seen[slot] {
			return domain.Validationf(domain.ErrStatusCheckFailed,
				"slot %d is listed as vacant twice after action %q", slot, label)
		}
		seen[slot] = true
		if st := data.Sim.Status.At(int(slot)); st != domain.StatusInactive {
			return domain.Validationf(domain.ErrStatusCheckFailed,
				"vacant slot %d has status %s after action %q", slot, st, label)
		}
	}
	for i, st := range data.Sim.Status.Data() {
		if st == domain.StatusInactive && !seen[i] {
			return domain.Validationf(domain.ErrStatusCheckFailed,
				"inactive slot %d is missing from the vacancies after action %q", i, label)
		}
	}
	return nil
}
