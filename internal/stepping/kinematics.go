// Package stepping implements the always-on core step actions: pre-step
// setup, straight-line along-step transport through the slab geometry,
// discrete interaction selection, boundary crossing, the tracking cut, and
// the discrete physics models.
package stepping

import (
	"math"

	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// cLight is the speed of light in cm/ns.
const cLight = 29.9792458

// speed returns the particle speed in cm/ns.
func speed(def core.ParticleDef, energy float64) float64 {
	if def.Mass == 0 {
		return cLight
	}
	total := energy + def.Mass
	momentum := math.Sqrt(energy * (energy + 2*def.Mass))
	return cLight * momentum / total
}

// isotropic samples a uniform direction on the unit sphere.
func isotropic(rng *core.RngStateData, slot domain.TrackSlotID) domain.Vec3 {
	cost := 2*rng.Uniform(slot) - 1
	phi := 2 * math.Pi * rng.Uniform(slot)
	sint := math.Sqrt(math.Max(0, 1-cost*cost))
	return domain.Vec3{sint * math.Cos(phi), sint * math.Sin(phi), cost}
}

// launchAll runs a kernel over every track slot.
func launchAll(state *core.State, label string, body func(slot int)) {
	state.Launch(label, state.Size(), body)
}
