package optical

import (
	"math"

	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

// isotropic samples a uniform direction on the unit sphere.
func isotropic(rng *core.RngStateData, slot domain.TrackSlotID) domain.Vec3 {
	return isotropicFrom(func() float64 { return rng.Uniform(slot) })
}

func isotropicFrom(uniform func() float64) domain.Vec3 {
	cost := 2*uniform() - 1
	phi := 2 * math.Pi * uniform()
	sint := math.Sqrt(math.Max(0, 1-cost*cost))
	return domain.Vec3{sint * math.Cos(phi), sint * math.Sin(phi), cost}
}

// rotate turns a unit vector by polar angle acos(cost) and azimuth phi
// about its own axis.
func rotate(dir domain.Vec3, cost, phi float64) domain.Vec3 {
	sint := math.Sqrt(math.Max(0, 1-cost*cost))
	a, b := sint*math.Cos(phi), sint*math.Sin(phi)
	ux, uy, uz := dir[0], dir[1], dir[2]
	perp := math.Sqrt(math.Max(0, 1-uz*uz))
	if perp < 1e-8 {
		return domain.Vec3{a, b, math.Copysign(cost, uz)}
	}
	return domain.Vec3{
		ux*cost + (ux*uz*a-uy*b)/perp,
		uy*cost + (uy*uz*a+ux*b)/perp,
		uz*cost - perp*a,
	}
}

// sampleRayleighCosine draws the scattering cosine from (1 + mu^2) by
// rejection.
func sampleRayleighCosine(uniform func() float64) float64 {
	for {
		mu := 2*uniform() - 1
		if 2*uniform() <= 1+mu*mu {
			return mu
		}
	}
}

// sampleHenyeyGreenstein draws a scattering cosine with asymmetry g.
func sampleHenyeyGreenstein(g float64, uniform func() float64) float64 {
	u := uniform()
	if math.Abs(g) < 1e-6 {
		return 2*u - 1
	}
	f := (1 - g*g) / (1 - g + 2*g*u)
	return math.Max(-1, math.Min(1, (1+g*g-f*f)/(2*g)))
}

// samplePoisson draws a photon count with the given mean.
func samplePoisson(mean float64, uniform func() float64) int {
	if mean <= 0 {
		return 0
	}
	if mean > 30 {
		gauss := math.Sqrt(-2*math.Log(1-uniform())) * math.Cos(2*math.Pi*uniform())
		return max(0, int(math.Round(mean+math.Sqrt(mean)*gauss)))
	}
	limit := math.Exp(-mean)
	k := 0
	for p := uniform(); p > limit; p *= uniform() {
		k++
	}
	return k
}
