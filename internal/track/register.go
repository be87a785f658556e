package track

import (
	"github.com/celeritas-project/celer-engine/internal/action"
)

// Actions are the track-management actions of a core run.
type Actions struct {
	Primaries   *ExtendFromPrimariesAction
	Initialize  *InitializeTracksAction
	Vacancies   *LocateVacanciesAction
	Secondaries *ExtendFromSecondariesAction
	Checker     *StatusChecker
}

// Register inserts the track-management actions. Vacancies are located
// before secondaries are extended, since both run at the end of the step.
// The status checker is only registered when requested.
func Register(reg *action.Registry, statusChecker bool) (Actions, error) {
	var out Actions
	out.Primaries = NewExtendFromPrimaries(reg.NextID())
	if err := reg.Insert(out.Primaries); err != nil {
		return out, err
	}
	out.Initialize = NewInitializeTracks(reg.NextID())
	if err := reg.Insert(out.Initialize); err != nil {
		return out, err
	}
	out.Vacancies = NewLocateVacancies(reg.NextID())
	if err := reg.Insert(out.Vacancies); err != nil {
		return out, err
	}
	out.Secondaries = NewExtendFromSecondaries(reg.NextID())
	if err := reg.Insert(out.Secondaries); err != nil {
		return out, err
	}
	if statusChecker {
		out.Checker = NewStatusChecker(reg.NextID())
		if err := reg.Insert(out.Checker); err != nil {
			return out, err
		}
	}
	return out, nil
}
