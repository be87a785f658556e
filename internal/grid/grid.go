// Package grid provides tabulated functions of energy, such as macroscopic
// cross sections and mean free paths, evaluated by linear interpolation.
package grid

import (
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

// Grid is a piecewise-linear function on a strictly increasing abscissa.
// The zero value is an empty grid, meaning "not applicable".
type Grid struct {
	x, y []float64
	pl   *interp.PiecewiseLinear
}

// New fits a grid to the given points. Values outside the abscissa range
// are clamped to the nearest endpoint.
func New(x, y []float64) (Grid, error) {
	if len(x) != len(y) {
		return Grid{}, domain.Validationf(domain.ErrInvalidGrid,
			"grid has %d abscissae but %d values", len(x), len(y))
	}
	if len(x) == 0 {
		return Grid{}, nil
	}
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			return Grid{}, domain.Validationf(domain.ErrInvalidGrid, "grid point %d is NaN", i)
		}
		if i > 0 && !(x[i] > x[i-1]) {
			return Grid{}, domain.Validationf(domain.ErrInvalidGrid,
				"grid abscissae are not strictly increasing at index %d (%g <= %g)", i, x[i], x[i-1])
		}
	}

	g := Grid{x: append([]float64(nil), x...), y: append([]float64(nil), y...)}
	if len(x) > 1 {
		g.pl = &interp.PiecewiseLinear{}
		if err := g.pl.Fit(g.x, g.y); err != nil {
			return Grid{}, domain.WrapEngineError(domain.ErrInvalidGrid.Code, "fit grid", err)
		}
	}
	return g, nil
}

// MustNew is New for tables known to be valid at compile time.
func MustNew(x, y []float64) Grid {
	g, err := New(x, y)
	if err != nil {
		panic(err)
	}
	return g
}

// Empty reports whether the grid has no points.
func (g Grid) Empty() bool { return len(g.x) == 0 }

// Len is the number of grid points.
func (g Grid) Len() int { return len(g.x) }

// Bounds returns the abscissa range.
func (g Grid) Bounds() (lo, hi float64) {
	if g.Empty() {
		return 0, 0
	}
	return g.x[0], g.x[len(g.x)-1]
}

// Eval returns the interpolated value at x, or zero for an empty grid.
func (g Grid) Eval(x float64) float64 {
	switch {
	case g.Empty():
		return 0
	case x <= g.x[0]:
		return g.y[0]
	case x >= g.x[len(g.x)-1]:
		return g.y[len(g.y)-1]
	}
	return g.pl.Predict(x)
}

// Points returns copies of the abscissae and values.
func (g Grid) Points() (x, y []float64) {
	return append([]float64(nil), g.x...), append([]float64(nil), g.y...)
}
