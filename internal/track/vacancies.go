package track

import (
	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/collection"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// LocateVacancies rebuilds the vacancy list from the track statuses: every
// killed slot becomes inactive, and every inactive slot index is written
// once, in increasing order, to the front of vacancies. It returns the
// number of vacancies.
func LocateVacancies(status collection.Collection[domain.TrackStatus], vacancies collection.Collection[domain.TrackSlotID]) int {
	n := 0
	for i, st := range status.Data() {
		if st == domain.StatusKilled {
			status.Set(i, domain.StatusInactive)
			st = domain.StatusInactive
		}
		if st == domain.StatusInactive {
			vacancies.Set(n, domain.TrackSlotID(i))
			n++
		}
	}
	return n
}

// LocateVacanciesAction runs after all post-step actions and records which
// slots are free for the next step.
type LocateVacanciesAction struct {
	action.ConcreteAction
}

// NewLocateVacancies creates the action with the given ID.
func NewLocateVacancies(id domain.ActionID) *LocateVacanciesAction {
	return &LocateVacanciesAction{
		ConcreteAction: action.NewConcreteAction(id, "locate-vacancies",
			"locate empty track slots"),
	}
}

// Order places the action at the end of the step.
func (a *LocateVacanciesAction) Order() domain.StepActionOrder { return domain.OrderEnd }

// Step rebuilds the vacancy list and updates the alive count.
func (a *LocateVacanciesAction) Step(_ *core.Params, state *core.State) error {
	data := state.Ref()
	return state.Execute(a.Label(), func() error {
		c := state.Counters()
		c.NumVacancies = LocateVacancies(data.Sim.Status, data.Init.Vacancies)
		c.NumAlive = state.Size() - c.NumVacancies
		return nil
	})
}
