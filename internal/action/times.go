package action

import (
	"time"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

// Times is per-stream auxiliary storage for accumulated action wall time,
// indexed by action ID.
type Times struct {
	accum []time.Duration
}

// NewTimes creates storage for n actions.
func NewTimes(n int) *Times {
	return &Times{accum: make([]time.Duration, n)}
}

// Add accumulates elapsed time for an action.
func (t *Times) Add(id domain.ActionID, elapsed time.Duration) {
	if int(id) >= len(t.accum) {
		grown := make([]time.Duration, int(id)+1)
		copy(grown, t.accum)
		t.accum = grown
	}
	t.accum[id] += elapsed
}

// Get returns the accumulated time for an action.
func (t *Times) Get(id domain.ActionID) time.Duration {
	if t == nil || int(id) >= len(t.accum) {
		return 0
	}
	return t.accum[id]
}

// Reset clears all accumulated time.
func (t *Times) Reset() {
	clear(t.accum)
}

// Observer receives every timed action execution, for export to a metrics
// backend.
type Observer interface {
	ObserveAction(stream domain.StreamID, label string, elapsed time.Duration)
}
