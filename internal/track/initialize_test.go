package track_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

func TestPrimariesBecomeInitializers(t *testing.T) {
	params, actions := buildParams(t, 16, false)
	state := newState(t, params, 4)

	ins := append(primaries(0, 1, 2, 3), primaries(1, 4, 5)...)
	require.NoError(t, actions.Track.Primaries.Insert(params, state, ins))
	c := state.SyncGetCounters()
	assert.Equal(t, 5, c.NumPrimaries)
	assert.Equal(t, 5, c.NumPending)

	require.NoError(t, actions.Track.Primaries.Step(params, state))
	c = state.SyncGetCounters()
	assert.Equal(t, 5, c.NumInitializers)
	assert.Equal(t, 5, c.NumGenerated)
	assert.Equal(t, 5, c.MaxInitializers)
	assert.Zero(t, c.NumPrimaries)
	assert.Zero(t, c.NumPending)

	var ids []domain.TrackID
	for i := 0; i < c.NumInitializers; i++ {
		init := state.Ref().Init.Initializers.At(i)
		assert.False(t, init.ParentID.Valid())
		assert.Equal(t, 1.0, init.Weight)
		ids = append(ids, init.TrackID)
	}
	assert.Equal(t, []domain.TrackID{0, 1, 2, 0, 1}, ids)
}

func TestInsertCapacity(t *testing.T) {
	params, actions := buildParams(t, 8, false)
	state := newState(t, params, 4)

	err := actions.Track.Primaries.Insert(params, state, primaries(0, 1, 1, 1, 1, 1, 1, 1, 1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCapacityExceeded))
	assert.Contains(t, err.Error(), "insufficient initializer capacity (8) with size (0) for primaries (9)")
}

func TestConsecutiveInsertNotSupported(t *testing.T) {
	params, actions := buildParams(t, 16, false)
	state := newState(t, params, 4)

	require.NoError(t, actions.Track.Primaries.Insert(params, state, primaries(0, 1)))
	err := actions.Track.Primaries.Insert(params, state, primaries(0, 1))
	assert.True(t, errors.Is(err, domain.ErrNotImplemented))
}

func TestInsertRejectsEventBeyondMax(t *testing.T) {
	params, actions := buildParams(t, 16, false)
	state := newState(t, params, 4)

	for _, event := range []domain.EventID{4, -1} {
		err := actions.Track.Primaries.Insert(params, state, append(primaries(0, 1), primaries(event, 1)...))
		require.Error(t, err, "event %d", event)
		assert.True(t, errors.Is(err, domain.ErrEventOutOfRange))
	}
	c := state.SyncGetCounters()
	assert.Zero(t, c.NumPrimaries)
	assert.Zero(t, c.NumPending)

	require.NoError(t, actions.Track.Primaries.Insert(params, state, primaries(3, 1)))
	require.NoError(t, actions.Track.Primaries.Step(params, state))
	assert.Equal(t, 1, state.SyncGetCounters().NumInitializers)
}

func TestInitializeFromBack(t *testing.T) {
	params, actions := buildParams(t, 16, false)
	state := newState(t, params, 4)

	require.NoError(t, actions.Track.Primaries.Insert(params, state, primaries(0, 1, 2, 3, 4, 5, 6)))
	require.NoError(t, actions.Track.Primaries.Step(params, state))
	require.NoError(t, actions.Track.Initialize.Step(params, state))

	c := state.SyncGetCounters()
	assert.Equal(t, 2, c.NumInitializers)
	assert.Zero(t, c.NumVacancies)
	assert.Equal(t, 4, c.NumActive)

	data := state.Ref()
	// The last vacancy (slot 3) receives the last initializer.
	for slot, energy := range []float64{3, 4, 5, 6} {
		assert.Equal(t, domain.StatusInitializing, data.Sim.Status.At(slot))
		assert.Equal(t, energy, data.Particle.Energy.At(slot), "slot %d", slot)
		assert.Equal(t, domain.VolumeID(0), data.Geometry.Volume.At(slot))
		assert.Equal(t, params.Ref().Scalars.AlongStepAction, data.Sim.AlongStepAction.At(slot))
	}
}

func TestInitializeWithFewerInitializers(t *testing.T) {
	params, actions := buildParams(t, 16, false)
	state := newState(t, params, 4)

	require.NoError(t, actions.Track.Primaries.Insert(params, state, primaries(0, 9)))
	require.NoError(t, actions.Track.Primaries.Step(params, state))
	require.NoError(t, actions.Track.Initialize.Step(params, state))

	c := state.SyncGetCounters()
	assert.Zero(t, c.NumInitializers)
	assert.Equal(t, 3, c.NumVacancies)
	assert.Equal(t, 1, c.NumActive)
	assert.Equal(t, domain.StatusInitializing, state.Ref().Sim.Status.At(3))
}

func TestExtendFromSecondaries(t *testing.T) {
	params, actions := buildParams(t, 16, false)
	state := newState(t, params, 3)
	data := state.Ref()

	for slot, n := range []int32{2, 0, 1} {
		data.Sim.TrackID.Set(slot, domain.TrackID(10+slot))
		data.Sim.EventID.Set(slot, 0)
		data.Physics.NumSecondaries.Set(slot, n)
		for k := 0; k < int(n); k++ {
			data.Physics.Secondaries.Set(slot*2+k, domain.Secondary{Energy: float64(slot*10 + k + 1)})
		}
	}

	require.NoError(t, actions.Track.Secondaries.Step(params, state))
	c := state.SyncGetCounters()
	assert.Equal(t, 3, c.NumSecondaries)
	assert.Equal(t, 3, c.NumInitializers)
	assert.Equal(t, 3, c.NumGenerated)

	var parents []domain.TrackID
	var energies []float64
	for i := 0; i < 3; i++ {
		init := data.Init.Initializers.At(i)
		parents = append(parents, init.ParentID)
		energies = append(energies, init.Energy)
	}
	assert.Equal(t, []domain.TrackID{10, 10, 12}, parents)
	assert.Equal(t, []float64{1, 2, 21}, energies)
	for slot := 0; slot < 3; slot++ {
		assert.Zero(t, data.Physics.NumSecondaries.At(slot))
	}
}

func TestExtendFromSecondariesCapacity(t *testing.T) {
	params, actions := buildParams(t, 2, false)
	state := newState(t, params, 2)
	data := state.Ref()
	data.Physics.NumSecondaries.Set(0, 2)
	data.Physics.NumSecondaries.Set(1, 1)

	err := actions.Track.Secondaries.Step(params, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCapacityExceeded))
	assert.Contains(t, err.Error(), "increase initializer capacity or decrease track slots")
}
