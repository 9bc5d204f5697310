package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DriverWindow holds one driver's statistics over a window.
type DriverWindow struct {
	Driver      string
	AvgSpeed    float64
	MinSpeed    float64
	AvgBrake    float64
	AvgThrottle float64

	// MeanSpeedStep is the mean difference between consecutive speed
	// samples; positive when the car is net accelerating. NaN for a window
	// with a single sample.
	MeanSpeedStep float64
}

// WindowStats describes one significant window.
type WindowStats struct {
	// Start is the window's starting distance in metres.
	Start int

	// Change is the net change of time_B - time_A across the window.
	// Positive means A gained on B.
	Change float64

	// Gain is the absolute time gained by the faster driver.
	Gain float64

	// A's signals decide the track category; rules read B only to
	// compare the two drivers.
	A, B DriverWindow
}

// GainerIsA reports whether driver A gained time over the window.
func (w *WindowStats) GainerIsA() bool {
	return w.Change > 0
}

// Gainer returns the driver who gained time.
func (w *WindowStats) Gainer() *DriverWindow {
	if w.GainerIsA() {
		return &w.A
	}
	return &w.B
}

// Loser returns the driver who lost time.
func (w *WindowStats) Loser() *DriverWindow {
	if w.GainerIsA() {
		return &w.B
	}
	return &w.A
}

// Insight is one explained window.
type Insight struct {
	Start    int
	Category Category
	Message  string
}

// Classify scans the shared grid in WindowSize windows and explains every
// window where time_B - time_A changes by more than SignificantDelta. Both
// series must come from the same grid. Results follow track order.
func Classify(driverA, driverB string, a, b *AlignedSeries, rules []Rule) []Insight {
	dist := a.Distance
	n := len(dist)
	if n == 0 || b.Len() != n {
		return nil
	}

	maxDist := floats.Max(dist)
	var out []Insight
	for start := 0; start < int(maxDist); start += WindowSize {
		end := start + WindowSize
		lo := sort.SearchFloat64s(dist, float64(start))
		hi := sort.SearchFloat64s(dist, float64(end))
		if lo >= hi {
			continue
		}

		change := (b.Time[hi-1] - a.Time[hi-1]) - (b.Time[lo] - a.Time[lo])
		if math.Abs(change) <= SignificantDelta {
			continue
		}

		w := &WindowStats{
			Start:  start,
			Change: change,
			Gain:   math.Abs(change),
			A:      windowOf(driverA, a, lo, hi),
			B:      windowOf(driverB, b, lo, hi),
		}
		for _, r := range rules {
			if !r.Match(w) {
				continue
			}
			if msg, ok := r.Explain(w); ok {
				out = append(out, Insight{Start: start, Category: r.Category, Message: msg})
			}
			break
		}
	}
	return out
}

func windowOf(driver string, s *AlignedSeries, lo, hi int) DriverWindow {
	speed := s.Speed[lo:hi]

	step := math.NaN()
	if len(speed) > 1 {
		// The mean of consecutive differences telescopes to the end points.
		step = (speed[len(speed)-1] - speed[0]) / float64(len(speed)-1)
	}

	return DriverWindow{
		Driver:        driver,
		AvgSpeed:      stat.Mean(speed, nil),
		MinSpeed:      floats.Min(speed),
		AvgBrake:      stat.Mean(s.Brake[lo:hi], nil),
		AvgThrottle:   stat.Mean(s.Throttle[lo:hi], nil),
		MeanSpeedStep: step,
	}
}

// Insights returns at most MaxInsights distinct explanations of where
// driverA and driverB gained time on each other, in track order. A nil
// series means the driver has no telemetry and yields InsightInsufficient.
// When nothing qualifies the result is InsightNoDifferences.
func Insights(driverA, driverB string, a, b *AlignedSeries, rules []Rule) []string {
	if a == nil || b == nil {
		return []string{InsightInsufficient}
	}
	if rules == nil {
		rules = DefaultRules
	}

	seen := make(map[string]struct{})
	var out []string
	for _, in := range Classify(driverA, driverB, a, b, rules) {
		if _, dup := seen[in.Message]; dup {
			continue
		}
		seen[in.Message] = struct{}{}
		out = append(out, in.Message)
		if len(out) == MaxInsights {
			break
		}
	}

	if len(out) == 0 {
		return []string{InsightNoDifferences}
	}
	return out
}
