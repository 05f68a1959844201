package reco

import (
	"math"

	"golang.org/x/exp/constraints"
)

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs[T constraints.Float | constraints.Signed](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// binnedCurve is a sequence of equal-width bins over [min, min+n*width).
type binnedCurve struct {
	min    float64
	width  float64
	values []float64
}

// interpolate returns the curve value at x, linearly interpolated between the
// centers of the two bins bracketing x. Outside the outermost centers the
// edge bin is used.
func (c binnedCurve) interpolate(x float64) float64 {
	n := len(c.values)
	if n == 0 {
		return 0
	}
	u := (x - c.min) / c.width
	if math.IsNaN(u) {
		u = 0
	}
	u = clamp(u, 0, float64(n))
	i := min(int(u), n-1)
	frac := u - float64(i) - 0.5
	j := i
	if frac > 0 {
		j = clamp(i+1, 0, n-1)
	} else {
		j = clamp(i-1, 0, n-1)
	}
	if j == i {
		return c.values[i]
	}
	return c.values[i] + abs(frac)*(c.values[j]-c.values[i])
}
