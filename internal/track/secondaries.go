package track

import (
	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// ExtendFromSecondariesAction turns the secondaries emitted during the step
// into track initializers, in slot order.
type ExtendFromSecondariesAction struct {
	action.ConcreteAction
}

// NewExtendFromSecondaries creates the action with the given ID.
func NewExtendFromSecondaries(id domain.ActionID) *ExtendFromSecondariesAction {
	return &ExtendFromSecondariesAction{
		ConcreteAction: action.NewConcreteAction(id, "extend-from-secondaries",
			"create track initializers from secondaries"),
	}
}

// Order places the action at the end of the step.
func (a *ExtendFromSecondariesAction) Order() domain.StepActionOrder { return domain.OrderEnd }

// Step appends initializers for every secondary. Exceeding the initializer
// capacity is an error; the counts are read back to the host, which
// synchronizes device states.
func (a *ExtendFromSecondariesAction) Step(params *core.Params, state *core.State) error {
	data := state.Ref()
	perTrack := params.Ref().Physics.SecondaryCapacity
	err := state.Execute(a.Label(), func() error {
		c := state.Counters()
		total := 0
		for _, n := range data.Physics.NumSecondaries.Data() {
			total += int(n)
		}
		c.NumSecondaries = total
		if c.NumInitializers+total > data.Init.Initializers.Len() {
			return domain.Validationf(domain.ErrCapacityExceeded,
				"insufficient capacity (%d) for track initializers (created %d new secondaries "+
					"for a total capacity requirement of %d): increase initializer capacity or decrease track slots",
				data.Init.Initializers.Len(), total, c.NumInitializers+total)
		}

		out := c.NumInitializers
		for slot := 0; slot < state.Size(); slot++ {
			n := int(data.Physics.NumSecondaries.At(slot))
			if n == 0 {
				continue
			}
			event := data.Sim.EventID.At(slot)
			for k := 0; k < n; k++ {
				sec := data.Physics.Secondaries.At(slot*perTrack + k)
				data.Init.Initializers.Set(out, domain.TrackInitializer{
					TrackID:    nextTrackID(data, event),
					ParentID:   data.Sim.TrackID.At(slot),
					PrimaryID:  -1,
					EventID:    event,
					ParticleID: sec.ParticleID,
					Energy:     sec.Energy,
					Position:   data.Geometry.Pos.At(slot),
					Direction:  sec.Direction,
					Time:       data.Sim.Time.At(slot),
					Weight:     data.Sim.Weight.At(slot),
				})
				out++
			}
			data.Physics.NumSecondaries.Set(slot, 0)
		}
		c.NumInitializers = out
		c.NumGenerated += total
		c.MaxInitializers = max(c.MaxInitializers, c.NumInitializers)
		return nil
	})
	if err != nil {
		return err
	}
	if state.MemSpace() == domain.MemSpaceDevice {
		return state.Sync()
	}
	return nil
}
