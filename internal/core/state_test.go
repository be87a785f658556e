package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

func TestResize_SizesEverySubState(t *testing.T) {
	params := testParams(t, 2)
	for _, size := range []int{1, 7, 1024} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			var data StateData
			require.NoError(t, Resize(&data, params.Ref(), domain.MemSpaceHost, 1, size))

			assert.Equal(t, size, data.Size())
			assert.True(t, data.Valid())
			assert.Equal(t, domain.StreamID(1), data.StreamID)
			assert.Equal(t, size*2, data.Physics.Secondaries.Len())
			assert.Equal(t, 64, data.Init.Initializers.Len())
			assert.Equal(t, size, data.Init.Counters.At(0).NumVacancies)
			for i := 0; i < size; i++ {
				assert.Equal(t, domain.TrackSlotID(i), data.Init.Vacancies.At(i))
				assert.Equal(t, domain.StatusInactive, data.Sim.Status.At(i))
			}
		})
	}
}

func TestResize_RejectsStreamBeyondMax(t *testing.T) {
	params := testParams(t, 2)
	var data StateData
	err := Resize(&data, params.Ref(), domain.MemSpaceHost, 2, 16)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStreamOutOfRange))
	assert.Contains(t, err.Error(), "stream ID 2 is out of range: max streams is 2")
	assert.False(t, data.Valid())

	require.NoError(t, Resize(&data, params.Ref(), domain.MemSpaceHost, 1, 16))
}

func TestResize_RejectsZeroSize(t *testing.T) {
	var data StateData
	err := Resize(&data, testParams(t, 1).Ref(), domain.MemSpaceHost, 0, 0)
	assert.True(t, errors.Is(err, domain.ErrZeroSize))
}

func TestNewState_DeviceRequiresDevice(t *testing.T) {
	_, err := NewState(testParams(t, 1), domain.MemSpaceDevice, 0, 8)
	assert.True(t, errors.Is(err, domain.ErrDeviceUnavailable))
}

func TestNewState_DeviceKernelsCompleteBeforeCounterRead(t *testing.T) {
	s, err := NewState(testDeviceParams(t, 1), domain.MemSpaceDevice, 0, 32)
	require.NoError(t, err)
	defer s.Close()

	energy := s.Ref().Particle.Energy
	s.Launch("fill-energy", s.Size(), func(i int) { energy.Set(i, float64(i)) })
	require.NoError(t, s.Execute("count", func() error {
		s.Counters().NumAlive = s.Size()
		return nil
	}))

	c := s.SyncGetCounters()
	assert.Equal(t, 32, c.NumAlive)
	assert.Equal(t, 31.0, energy.At(31))
	require.NoError(t, s.Sync())
}

func TestState_KernelFailureIsReportedOnSync(t *testing.T) {
	s, err := NewState(testDeviceParams(t, 1), domain.MemSpaceDevice, 0, 4)
	require.NoError(t, err)
	defer s.Close()

	s.Launch("bad", 4, func(i int) {
		if i == 2 {
			panic("slot 2 failed")
		}
	})
	_ = s.SyncGetCounters()
	err = s.Sync()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slot 2 failed")
	assert.NoError(t, s.Sync())
}

func TestState_ResetMarksAllVacant(t *testing.T) {
	s, err := NewState(testParams(t, 1), domain.MemSpaceHost, 0, 5)
	require.NoError(t, err)

	data := s.Ref()
	data.Sim.Status.Set(3, domain.StatusAlive)
	data.Init.Vacancies.Set(0, 4)
	s.SyncPutCounters(domain.CoreStateCounters{NumActive: 1, NumVacancies: 4})

	s.Reset()
	c := s.SyncGetCounters()
	assert.Equal(t, domain.CoreStateCounters{NumVacancies: 5}, c)
	for i := 0; i < 5; i++ {
		assert.Equal(t, domain.StatusInactive, data.Sim.Status.At(i))
		assert.Equal(t, domain.TrackSlotID(i), data.Init.Vacancies.At(i))
	}
}

func TestState_WarmingUpRequiresNoActiveTracks(t *testing.T) {
	s, err := NewState(testParams(t, 1), domain.MemSpaceHost, 0, 2)
	require.NoError(t, err)

	s.SetWarmingUp(true)
	assert.True(t, s.WarmingUp())
	s.SetWarmingUp(false)

	s.Counters().NumActive = 1
	assert.Panics(t, func() { s.SetWarmingUp(true) })
}

func TestState_AuxPerAction(t *testing.T) {
	s, err := NewState(testParams(t, 1), domain.MemSpaceHost, 0, 2)
	require.NoError(t, err)

	assert.Nil(t, s.Aux(3))
	s.SetAux(3, "pending")
	s.SetAux(10, 7)
	assert.Equal(t, "pending", s.Aux(3))
	assert.Equal(t, 7, s.Aux(10))
}

func TestStateDigest_TracksContents(t *testing.T) {
	params := testParams(t, 1)
	a, err := NewState(params, domain.MemSpaceHost, 0, 8)
	require.NoError(t, err)
	b, err := NewState(params, domain.MemSpaceHost, 0, 8)
	require.NoError(t, err)

	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	assert.Equal(t, da, db)

	b.Ref().Particle.Energy.Set(3, 1.5)
	db, err = b.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}

func TestStateDigest_CoversEverySlotArray(t *testing.T) {
	params := testParams(t, 1)
	base, err := NewState(params, domain.MemSpaceHost, 0, 4)
	require.NoError(t, err)
	want, err := base.Digest()
	require.NoError(t, err)

	mutations := map[string]func(d *StateData){
		"rng":             func(d *StateData) { d.Rng.Uniform(2) },
		"macro_xs":        func(d *StateData) { d.Physics.MacroXS.Set(1, 0.25) },
		"along_step":      func(d *StateData) { d.Sim.AlongStepAction.Set(0, 3) },
		"num_secondaries": func(d *StateData) { d.Physics.NumSecondaries.Set(3, 1) },
		"secondaries": func(d *StateData) {
			d.Physics.NumSecondaries.Set(0, 1)
			d.Physics.Secondaries.Set(0, domain.Secondary{Energy: 2})
		},
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s, err := NewState(params, domain.MemSpaceHost, 0, 4)
			require.NoError(t, err)
			mutate(s.Ref())
			got, err := s.Digest()
			require.NoError(t, err)
			assert.NotEqual(t, want, got)
		})
	}

	t.Run("stale_secondaries", func(t *testing.T) {
		s, err := NewState(params, domain.MemSpaceHost, 0, 4)
		require.NoError(t, err)
		s.Ref().Physics.Secondaries.Set(0, domain.Secondary{Energy: 2})
		got, err := s.Digest()
		require.NoError(t, err)
		assert.Equal(t, want, got, "entries past NumSecondaries are not live")
	})
}

func TestSeedRng_DeterministicPerEvent(t *testing.T) {
	params := testParams(t, 1)
	s, err := NewState(params, domain.MemSpaceHost, 0, 3)
	require.NoError(t, err)
	rng := &s.Ref().Rng

	SeedRng(rng, 7, 0, 2)
	first := []float64{rng.Uniform(0), rng.Uniform(1), rng.Uniform(0)}
	SeedRng(rng, 7, 0, 2)
	second := []float64{rng.Uniform(0), rng.Uniform(1), rng.Uniform(0)}
	assert.Equal(t, first, second)
	assert.NotEqual(t, first[0], first[1], "slots have independent streams")

	for _, u := range first {
		assert.GreaterOrEqual(t, u, 0.0)
		assert.Less(t, u, 1.0)
	}
}
