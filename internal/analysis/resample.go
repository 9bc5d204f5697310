package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

// Grid returns n evenly spaced points from 0 to maxDistance inclusive.
func Grid(maxDistance float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	grid := make([]float64, n)
	if n == 1 {
		return grid
	}
	return floats.Span(grid, 0, maxDistance)
}

// Interpolate linearly interpolates ys, sampled at xs, onto grid. Outside the
// sampled range the nearest edge value is used. Points with a non-finite x
// are ignored and repeated x values keep their first sample.
func Interpolate(xs, ys, grid []float64) []float64 {
	out := make([]float64, len(grid))

	px := make([]float64, 0, len(xs))
	py := make([]float64, 0, len(ys))
	for i := range xs {
		if i >= len(ys) || math.IsNaN(xs[i]) || math.IsInf(xs[i], 0) {
			continue
		}
		if n := len(px); n > 0 && xs[i] <= px[n-1] {
			continue
		}
		px = append(px, xs[i])
		py = append(py, ys[i])
	}

	switch len(px) {
	case 0:
		return out
	case 1:
		for i := range out {
			out[i] = py[0]
		}
		return out
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(px, py); err != nil {
		// Unreachable: px is strictly increasing with at least two points.
		return out
	}
	for i, x := range grid {
		out[i] = pl.Predict(x)
	}
	return out
}

// Resample projects a lap onto grid. Brake is converted from a 0..1 fraction
// to a percentage clamped to [0, 100]. Distance-derived signals are left for
// Derive.
func Resample(lap *session.LapSeries, grid []float64) *AlignedSeries {
	n := len(lap.Samples)
	dist := make([]float64, n)
	cols := struct {
		speed, throttle, brake, rpm, gear, time []float64
	}{
		speed:    make([]float64, n),
		throttle: make([]float64, n),
		brake:    make([]float64, n),
		rpm:      make([]float64, n),
		gear:     make([]float64, n),
		time:     make([]float64, n),
	}
	for i, s := range lap.Samples {
		dist[i] = s.Distance
		cols.speed[i] = s.Speed
		cols.throttle[i] = s.Throttle
		cols.brake[i] = s.Brake
		cols.rpm[i] = s.RPM
		cols.gear[i] = float64(s.Gear)
		cols.time[i] = s.Time
	}

	distance := make([]float64, len(grid))
	copy(distance, grid)

	brake := Interpolate(dist, cols.brake, grid)
	floats.Scale(100, brake)
	for i, b := range brake {
		brake[i] = math.Min(math.Max(b, 0), 100)
	}

	return &AlignedSeries{
		Distance: distance,
		Speed:    Interpolate(dist, cols.speed, grid),
		Throttle: Interpolate(dist, cols.throttle, grid),
		Brake:    brake,
		RPM:      Interpolate(dist, cols.rpm, grid),
		Gear:     Interpolate(dist, cols.gear, grid),
		Time:     Interpolate(dist, cols.time, grid),
	}
}

// referenceTime interpolates the reference lap's elapsed time onto grid.
func referenceTime(lap *session.LapSeries, grid []float64) []float64 {
	xs := make([]float64, len(lap.Samples))
	ts := make([]float64, len(lap.Samples))
	for i, s := range lap.Samples {
		xs[i] = s.Distance
		ts[i] = s.Time
	}
	return Interpolate(xs, ts, grid)
}
