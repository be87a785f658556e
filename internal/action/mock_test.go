package action

import (
	"time"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

type mockParams struct {
	reg *Registry
}

func (p *mockParams) ActionRegistry() *Registry { return p.reg }

type mockState struct {
	mem      domain.MemSpace
	data     []int
	warm     bool
	syncs    int
	times    *Times
	postStep []domain.ActionID
	calls    []string
}

func newMockState(mem domain.MemSpace, size int) *mockState {
	s := &mockState{
		mem:      mem,
		data:     make([]int, size),
		times:    NewTimes(0),
		postStep: make([]domain.ActionID, size),
	}
	for i := range s.data {
		s.data[i] = i + 1
	}
	for i := range s.postStep {
		s.postStep[i] = domain.InvalidActionID
	}
	return s
}

func (s *mockState) MemSpace() domain.MemSpace { return s.mem }
func (s *mockState) Size() int { return len(s.data) }
func (s *mockState) StreamID() domain.StreamID { return 0 }
func (s *mockState) WarmingUp() bool { return s.warm }
func (s *mockState) Sync() error {
	s.syncs++
	return nil
}
func (s *mockState) ActionTimes() *Times { return s.times }
func (s *mockState) PostStepAction(slot domain.TrackSlotID) domain.ActionID {
	return s.postStep[slot]
}

// mockStep mixes its ID into every slot so that the final state depends on
// both which actions ran and their order.
type mockStep struct {
	ConcreteAction
	order domain.StepActionOrder
	delay time.Duration
	err   error
}

func (a *mockStep) Order() domain.StepActionOrder { return a.order }

func (a *mockStep) Step(_ *mockParams, s *mockState) error {
	s.calls = append(s.calls, a.Label())
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.err != nil {
		return a.err
	}
	for i := range s.data {
		if a.order == domain.OrderPost && s.postStep[i] != a.ActionID() {
			continue
		}
		s.data[i] = s.data[i]*31 + int(a.ActionID()) + 1
	}
	return nil
}

type mockBeginRun struct {
	ConcreteAction
	runs int
}

func (a *mockBeginRun) BeginRun(*mockParams, *mockState) error {
	a.runs++
	return nil
}

type mockChecker struct {
	ConcreteAction
	checked []domain.ActionID
}

func (c *mockChecker) BeginRun(*mockParams, *mockState) error { return nil }

func (c *mockChecker) CheckStep(id domain.ActionID, _ *mockParams, _ *mockState) error {
	c.checked = append(c.checked, id)
	return nil
}

func addStep(reg *Registry, label string, order domain.StepActionOrder) *mockStep {
	a := &mockStep{ConcreteAction: NewConcreteAction(reg.NextID(), label, "mock "+label), order: order}
	if err := reg.Insert(a); err != nil {
		panic(err)
	}
	return a
}
