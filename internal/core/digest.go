package core

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

type digester struct {
	h   *xxh3.Hasher
	buf [8]byte
}

func (d *digester) u64(v uint64) {
	binary.LittleEndian.PutUint64(d.buf[:], v)
	_, _ = d.h.Write(d.buf[:])
}

func (d *digester) f64(v float64) { d.u64(math.Float64bits(v)) }
func (d *digester) i64(v int64)   { d.u64(uint64(v)) }

func (d *digester) bytes(b []byte) {
	d.i64(int64(len(b)))
	_, _ = d.h.Write(b)
}

func (d *digester) vec(v domain.Vec3) {
	d.f64(v[0])
	d.f64(v[1])
	d.f64(v[2])
}

// StateDigest hashes every track-slot array, including the random number
// streams and the live secondaries, plus the live track-init buffers. Two
// states with the same digest hold the same tracks in the same slots and
// will step identically.
func StateDigest(s *StateData) (uint64, error) {
	d := digester{h: xxh3.New()}
	n := s.Size()
	d.i64(int64(n))
	secCap := 0
	if n > 0 {
		secCap = s.Physics.Secondaries.Len() / n
	}
	for i := 0; i < n; i++ {
		d.vec(s.Geometry.Pos.At(i))
		d.vec(s.Geometry.Dir.At(i))
		d.i64(int64(s.Geometry.Volume.At(i)))
		d.i64(int64(s.Particle.ParticleID.At(i)))
		d.f64(s.Particle.Energy.At(i))
		d.f64(s.Physics.InteractionMFP.At(i))
		d.f64(s.Physics.MacroXS.At(i))
		d.f64(s.Physics.EnergyDeposit.At(i))
		numSec := int(s.Physics.NumSecondaries.At(i))
		d.i64(int64(numSec))
		for j := 0; j < min(numSec, secCap); j++ {
			sec := s.Physics.Secondaries.At(i*secCap + j)
			d.i64(int64(sec.ParticleID))
			d.f64(sec.Energy)
			d.vec(sec.Direction)
		}
		rng, err := s.Rng.State.Ptr(i).MarshalBinary()
		if err != nil {
			return 0, err
		}
		d.bytes(rng)
		d.i64(int64(s.Sim.Status.At(i)))
		d.i64(int64(s.Sim.TrackID.At(i)))
		d.i64(int64(s.Sim.ParentID.At(i)))
		d.i64(int64(s.Sim.EventID.At(i)))
		d.i64(int64(s.Sim.NumSteps.At(i)))
		d.f64(s.Sim.StepLength.At(i))
		d.f64(s.Sim.Time.At(i))
		d.f64(s.Sim.Weight.At(i))
		d.i64(int64(s.Sim.PostStepAction.At(i)))
		d.i64(int64(s.Sim.AlongStepAction.At(i)))
	}

	c := s.Init.Counters.At(0)
	for _, v := range []int{c.NumVacancies, c.NumInitializers, c.NumActive, c.NumAlive} {
		d.i64(int64(v))
	}
	for i := 0; i < c.NumVacancies; i++ {
		d.i64(int64(s.Init.Vacancies.At(i)))
	}
	for i := 0; i < c.NumInitializers; i++ {
		ti := s.Init.Initializers.At(i)
		d.i64(int64(ti.TrackID))
		d.i64(int64(ti.EventID))
		d.i64(int64(ti.ParticleID))
		d.f64(ti.Energy)
		d.vec(ti.Position)
	}
	return d.h.Sum64(), nil
}
