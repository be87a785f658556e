package optical

import (
	"context"
	"math/rand/v2"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// LaunchLabel is the core registry label of the optical launch action.
const LaunchLabel = "optical-launch"

// LaunchInput configures the scintillation offload from the core loop.
type LaunchInput struct {
	Optical      *CoreParams
	Yield        float64 // photons per MeV deposited
	PhotonEnergy float64 // eV
	// AutoFlush is the number of buffered photons that triggers transport
	// during a core step.
	AutoFlush     int
	NumTrackSlots int
	MaxIterations int
	ActionTimes   bool
	Observer      action.Observer
}

// LaunchAction is a core user-post action that converts energy deposited
// by core tracks into scintillation photons and runs the optical loop on
// them. Each core state owns its own optical loop, created at begin-run.
type LaunchAction struct {
	action.ConcreteAction
	in LaunchInput
}

// launchState is the per-stream auxiliary data of the launch action.
type launchState struct {
	loop    *Loop
	rng     *rand.PCG
	buffer  []Photon
	offered int
}

func (ls *launchState) Close() { ls.loop.Close() }

// NewLaunchAction creates the action with the given core action ID.
func NewLaunchAction(id domain.ActionID, in LaunchInput) (*LaunchAction, error) {
	switch {
	case in.Optical == nil:
		return nil, domain.Validationf(domain.ErrOpticalInputMissing, "optical launch is missing optical params")
	case !(in.Yield >= 0):
		return nil, domain.Validationf(domain.ErrInvalidParams, "scintillation yield %g is negative", in.Yield)
	case !(in.PhotonEnergy > 0):
		return nil, domain.Validationf(domain.ErrInvalidParams, "scintillation photon energy %g eV is not positive", in.PhotonEnergy)
	}
	if in.AutoFlush <= 0 {
		in.AutoFlush = in.Optical.Ref().Capacity.Generators
	}
	return &LaunchAction{
		ConcreteAction: action.NewConcreteAction(id, LaunchLabel, "generate and transport optical photons"),
		in:             in,
	}, nil
}

// FindLaunchAction returns the registered launch action, or nil if the core
// run has no optical physics.
func FindLaunchAction(params *core.Params) *LaunchAction {
	reg := params.ActionRegistry()
	id := reg.FindAction(LaunchLabel)
	if !id.Valid() {
		return nil
	}
	a, _ := reg.Action(id).(*LaunchAction)
	return a
}

// Order runs after the core post-step actions.
func (a *LaunchAction) Order() domain.StepActionOrder { return domain.OrderUserPost }

// BeginRun creates the optical loop for the core state's stream.
func (a *LaunchAction) BeginRun(params *core.Params, state *core.State) error {
	loop, err := NewLoop(context.Background(), LoopInput{
		Params:        a.in.Optical,
		MemSpace:      state.MemSpace(),
		StreamID:      state.StreamID(),
		NumTrackSlots: a.in.NumTrackSlots,
		MaxIterations: a.in.MaxIterations,
		Options:       action.Options{ActionTimes: a.in.ActionTimes, Observer: a.in.Observer},
	})
	if err != nil {
		return err
	}
	seed := params.Ref().Rng.Seed ^ rngSalt
	state.SetAux(a.ActionID(), &launchState{
		loop: loop,
		rng:  rand.NewPCG(seed, uint64(state.StreamID())),
	})
	return nil
}

func (a *LaunchAction) aux(state *core.State) *launchState {
	ls, _ := state.Aux(a.ActionID()).(*launchState)
	return ls
}

// Step collects photons from every track that deposited energy this step
// and transports them once enough are buffered.
func (a *LaunchAction) Step(_ *core.Params, state *core.State) error {
	ls := a.aux(state)
	if ls == nil {
		return domain.Validationf(domain.ErrActionFailed, "optical launch has no loop for stream %d", state.StreamID())
	}
	if err := state.Sync(); err != nil {
		return err
	}
	data := state.Ref()
	rng := rand.New(ls.rng)
	for i := 0; i < state.Size(); i++ {
		if !data.Sim.Status.At(i).IsActive() || data.Sim.Status.At(i) == domain.StatusInitializing {
			continue
		}
		n := int(data.Physics.EnergyDeposit.At(i) * a.in.Yield)
		pos := data.Geometry.Pos.At(i)
		time := data.Sim.Time.At(i)
		for k := 0; k < n; k++ {
			ls.buffer = append(ls.buffer, Photon{
				Energy:    a.in.PhotonEnergy,
				Position:  pos,
				Direction: isotropicFrom(rng.Float64),
				Time:      time,
			})
		}
		ls.offered += n
	}
	if len(ls.buffer) >= a.in.AutoFlush {
		return a.flush(ls)
	}
	return nil
}

// Flush transports every buffered photon for the state's stream.
func (a *LaunchAction) Flush(state *core.State) error {
	ls := a.aux(state)
	if ls == nil {
		return nil
	}
	if err := state.Sync(); err != nil {
		return err
	}
	return a.flush(ls)
}

func (a *LaunchAction) flush(ls *launchState) error {
	photons := ls.buffer
	ls.buffer = ls.buffer[:0]
	return ls.loop.Transport(context.Background(), photons)
}

// Buffered is the number of photons waiting for transport on a stream.
func (a *LaunchAction) Buffered(state *core.State) int {
	if ls := a.aux(state); ls != nil {
		return len(ls.buffer)
	}
	return 0
}

// Stats returns the optical loop statistics of a stream.
func (a *LaunchAction) Stats(state *core.State) Stats {
	if ls := a.aux(state); ls != nil {
		return ls.loop.Stats()
	}
	return Stats{}
}
