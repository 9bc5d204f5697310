package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	gravity = 9.81

	// zeroStepEpsilon replaces a zero time step so acceleration stays finite.
	zeroStepEpsilon = 1e-6

	kmhToMS = 1 / 3.6
)

// Gradient returns the discrete derivative of y with respect to index:
// central differences inside, one-sided differences at both ends.
func Gradient(y []float64) []float64 {
	n := len(y)
	g := make([]float64, n)
	if n < 2 {
		return g
	}
	g[0] = y[1] - y[0]
	g[n-1] = y[n-1] - y[n-2]
	for i := 1; i < n-1; i++ {
		g[i] = (y[i+1] - y[i-1]) / 2
	}
	return g
}

// DeltaToReference returns driver time minus reference time at each point.
func DeltaToReference(driverTime, referenceTime []float64) []float64 {
	delta := make([]float64, len(driverTime))
	floats.SubTo(delta, driverTime, referenceTime)
	return Sanitize(delta)
}

// LongitudinalG derives acceleration in g from speed (km/h) and elapsed
// time sampled on the same grid.
func LongitudinalG(speedKmh, elapsed []float64) []float64 {
	v := make([]float64, len(speedKmh))
	floats.ScaleTo(v, kmhToMS, speedKmh)

	dv := Gradient(v)
	dt := Gradient(elapsed)
	for i, step := range dt {
		if step == 0 {
			dt[i] = zeroStepEpsilon
		}
	}

	g := make([]float64, len(dv))
	floats.DivTo(g, dv, dt)
	floats.Scale(1/gravity, g)
	return Sanitize(g)
}

// Sanitize replaces every NaN or infinity in xs with 0, in place.
func Sanitize(xs []float64) []float64 {
	for i, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			xs[i] = 0
		}
	}
	return xs
}

// Derive fills the reference delta and longitudinal g of a resampled series
// and zeroes every remaining non-finite value.
func Derive(a *AlignedSeries, referenceTime []float64) {
	a.DeltaToRef = DeltaToReference(a.Time, referenceTime)
	a.LongG = LongitudinalG(a.Speed, a.Time)
	for _, col := range a.columns() {
		if *col == nil {
			*col = make([]float64, a.Len())
		}
		Sanitize(*col)
	}
}
