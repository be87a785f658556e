// Package track implements track initialization and vacancy management:
// primaries and secondaries become pending initializers, initializers fill
// vacant track slots, and dead slots are located at the end of each step.
package track

import (
	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// ExtendFromPrimariesLabel is the registry label of the primary action.
const ExtendFromPrimariesLabel = "extend-from-primaries"

// pendingPrimaries is the per-stream staging buffer.
type pendingPrimaries struct {
	primaries []domain.Primary
}

// ExtendFromPrimariesAction converts inserted primaries into track
// initializers at the start of the next step.
type ExtendFromPrimariesAction struct {
	action.ConcreteAction
}

// NewExtendFromPrimaries creates the action with the given ID.
func NewExtendFromPrimaries(id domain.ActionID) *ExtendFromPrimariesAction {
	return &ExtendFromPrimariesAction{
		ConcreteAction: action.NewConcreteAction(id, ExtendFromPrimariesLabel,
			"create track initializers from primaries"),
	}
}

// FindExtendFromPrimaries returns the registered primary action, or nil if
// none was registered.
func FindExtendFromPrimaries(params *core.Params) (*ExtendFromPrimariesAction, error) {
	reg := params.ActionRegistry()
	id := reg.FindAction(ExtendFromPrimariesLabel)
	if !id.Valid() {
		return nil, nil
	}
	a, ok := reg.Action(id).(*ExtendFromPrimariesAction)
	if !ok {
		return nil, domain.Validationf(domain.ErrActionNotFound,
			"incorrect type for '%s' action", ExtendFromPrimariesLabel)
	}
	return a, nil
}

// Order places the action before track initialization.
func (a *ExtendFromPrimariesAction) Order() domain.StepActionOrder { return domain.OrderGenerate }

// Insert stages host primaries for the next step. Every primary's event
// must be below max_events, since track IDs are counted per event.
func (a *ExtendFromPrimariesAction) Insert(params *core.Params, state *core.State, primaries []domain.Primary) error {
	maxEvents := params.Ref().Init.MaxEvents
	for _, p := range primaries {
		if !p.EventID.Valid() || int(p.EventID) >= maxEvents {
			return domain.Validationf(domain.ErrEventOutOfRange,
				"event number %d exceeds max_events=%d", p.EventID, maxEvents)
		}
	}

	counters := state.SyncGetCounters()
	capacity := params.Ref().Init.Capacity
	if len(primaries)+counters.NumInitializers > capacity {
		return domain.Validationf(domain.ErrCapacityExceeded,
			"insufficient initializer capacity (%d) with size (%d) for primaries (%d)",
			capacity, counters.NumInitializers, len(primaries))
	}

	pending := a.pending(state)
	if len(pending.primaries) != 0 {
		return domain.Validationf(domain.ErrNotImplemented, "multiple consecutive primary insertions")
	}
	pending.primaries = append(pending.primaries, primaries...)

	counters.NumPrimaries = len(pending.primaries)
	counters.NumPending = len(pending.primaries)
	state.SyncPutCounters(counters)
	return nil
}

func (a *ExtendFromPrimariesAction) pending(state *core.State) *pendingPrimaries {
	if p, ok := state.Aux(a.ActionID()).(*pendingPrimaries); ok {
		return p
	}
	p := &pendingPrimaries{}
	state.SetAux(a.ActionID(), p)
	return p
}

// Step appends one initializer per staged primary.
func (a *ExtendFromPrimariesAction) Step(params *core.Params, state *core.State) error {
	pending := a.pending(state)
	if len(pending.primaries) == 0 {
		return nil
	}
	primaries := pending.primaries
	pending.primaries = nil

	data := state.Ref()
	return state.Execute(a.Label(), func() error {
		c := state.Counters()
		if c.NumInitializers+len(primaries) > data.Init.Initializers.Len() {
			return domain.Validationf(domain.ErrCapacityExceeded,
				"insufficient initializer capacity (%d) with size (%d) for primaries (%d)",
				data.Init.Initializers.Len(), c.NumInitializers, len(primaries))
		}
		for i, p := range primaries {
			data.Init.Initializers.Set(c.NumInitializers+i, domain.TrackInitializer{
				TrackID:    nextTrackID(data, p.EventID),
				ParentID:   domain.InvalidTrackID,
				PrimaryID:  int32(i),
				EventID:    p.EventID,
				ParticleID: p.ParticleID,
				Energy:     p.Energy,
				Position:   p.Position,
				Direction:  p.Direction,
				Time:       p.Time,
				Weight:     weightOrOne(p.Weight),
			})
		}
		c.NumInitializers += len(primaries)
		c.NumGenerated += len(primaries)
		c.MaxInitializers = max(c.MaxInitializers, c.NumInitializers)
		c.NumPrimaries = 0
		c.NumPending = 0
		return nil
	})
}

func nextTrackID(data *core.StateData, event domain.EventID) domain.TrackID {
	counter := data.Init.TrackCounters.Ptr(int(event))
	id := *counter
	*counter++
	return id
}

func weightOrOne(w float64) float64 {
	if w == 0 {
		return 1
	}
	return w
}
