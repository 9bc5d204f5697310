package session

import (
	"math"
	"sort"
)

// kmhToMS converts km/h to m/s.
const kmhToMS = 1 / 3.6

// EnsureDistance prepares a series for resampling. Samples with a non-finite
// time are dropped and the rest are ordered by time. When the series carries
// no distance column, distance is rebuilt by trapezoidal integration of speed
// over elapsed time. Distance is then forced to be non-decreasing.
func EnsureDistance(s *LapSeries) {
	samples := s.Samples[:0]
	for _, sm := range s.Samples {
		if math.IsNaN(sm.Time) || math.IsInf(sm.Time, 0) {
			continue
		}
		samples = append(samples, sm)
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Time < samples[j].Time
	})
	s.Samples = samples

	if len(samples) == 0 {
		return
	}

	if !s.HasDistance {
		integrateDistance(samples)
		s.HasDistance = true
		return
	}

	// Recorded distance can jitter backwards by a few centimetres.
	running := 0.0
	for i := range samples {
		d := samples[i].Distance
		if math.IsNaN(d) || math.IsInf(d, 0) || d < running {
			d = running
		}
		samples[i].Distance = d
		running = d
	}
}

func integrateDistance(samples []Sample) {
	samples[0].Distance = 0
	for i := 1; i < len(samples); i++ {
		dt := samples[i].Time - samples[i-1].Time
		v0 := finiteOrZero(samples[i-1].Speed) * kmhToMS
		v1 := finiteOrZero(samples[i].Speed) * kmhToMS
		step := (v0 + v1) / 2 * dt
		if step < 0 {
			step = 0
		}
		samples[i].Distance = samples[i-1].Distance + step
	}
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
