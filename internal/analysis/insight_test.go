package analysis_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/analysis"
)

// profile describes a synthetic driver lap on a 1 m grid.
type profile struct {
	speed    func(d float64) float64
	throttle float64
	brake    float64
	// extra is time lost relative to a steady 50 m/s at distance d.
	extra func(d float64) float64
}

func (p profile) series(length float64) *analysis.AlignedSeries {
	grid := analysis.Grid(length, int(length)+1)
	n := len(grid)
	s := &analysis.AlignedSeries{
		Distance: grid,
		Speed:    make([]float64, n),
		Throttle: make([]float64, n),
		Brake:    make([]float64, n),
		Time:     make([]float64, n),
	}
	for i, d := range grid {
		s.Speed[i] = 180
		if p.speed != nil {
			s.Speed[i] = p.speed(d)
		}
		s.Throttle[i] = p.throttle
		s.Brake[i] = p.brake
		s.Time[i] = d / 50
		if p.extra != nil {
			s.Time[i] += p.extra(d)
		}
	}
	return s
}

func constant(v float64) func(float64) float64 {
	return func(float64) float64 { return v }
}

// lossUntil loses total seconds spread evenly over [0, end) metres.
func lossUntil(total, end float64) func(float64) float64 {
	return func(d float64) float64 {
		return total * math.Min(d, end) / end
	}
}

func TestClassify_BelowThresholdIsIgnored(t *testing.T) {
	a := profile{brake: 20}.series(1000)
	b := profile{brake: 20, extra: lossUntil(0.04, 250)}.series(1000)

	assert.Empty(t, analysis.Classify("VER", "LEC", a, b, analysis.DefaultRules))
	assert.Equal(t,
		[]string{analysis.InsightNoDifferences},
		analysis.Insights("VER", "LEC", a, b, nil),
	)
}

func TestClassify_BrakingZone(t *testing.T) {
	a := profile{brake: 20}.series(1000)
	b := profile{brake: 20, extra: lossUntil(0.1, 250)}.series(1000)

	got := analysis.Classify("VER", "LEC", a, b, analysis.DefaultRules)

	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Start)
	assert.Equal(t, analysis.CategoryBraking, got[0].Category)
	assert.Equal(t, "Braking at 0m: VER gains 0.100s on entry phase.", got[0].Message)
}

func TestClassify_BrakingZoneWinsOverOtherCategories(t *testing.T) {
	// Rising speed and an open throttle would also match traction.
	rising := func(d float64) float64 { return 160 + d*0.1 }
	a := profile{speed: rising, throttle: 80, brake: 20}.series(1000)
	b := profile{speed: rising, throttle: 80, brake: 20, extra: lossUntil(0.1, 250)}.series(1000)

	got := analysis.Classify("VER", "LEC", a, b, analysis.DefaultRules)

	require.Len(t, got, 1)
	assert.Equal(t, analysis.CategoryBraking, got[0].Category)
}

func TestClassify_SlowerDriverAIsAttributedToB(t *testing.T) {
	tests := []struct {
		name string
		b    profile
		want string
	}{
		{
			name: "entry phase",
			b:    profile{brake: 20},
			want: "Braking at 0m: LEC gains 0.100s on entry phase.",
		},
		{
			name: "later braking",
			b:    profile{brake: 15},
			want: "Turn at 0m: LEC brakes later/deeper, gaining 0.100s.",
		},
		{
			name: "minimum speed",
			b:    profile{brake: 20, speed: constant(190)},
			want: "Turn at 0m: LEC carries +10km/h higher minimum speed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := profile{brake: 20, extra: lossUntil(0.1, 250)}.series(1000)
			b := tt.b.series(1000)

			got := analysis.Insights("VER", "LEC", a, b, nil)

			assert.Equal(t, []string{tt.want}, got)
		})
	}
}

func TestClassify_Traction(t *testing.T) {
	rising := func(d float64) float64 { return 100 + d*0.1 }

	t.Run("earlier throttle", func(t *testing.T) {
		a := profile{speed: rising, throttle: 80}.series(1000)
		b := profile{speed: rising, throttle: 70, extra: lossUntil(0.1, 250)}.series(1000)

		got := analysis.Classify("VER", "LEC", a, b, analysis.DefaultRules)

		require.Len(t, got, 1)
		assert.Equal(t, analysis.CategoryTraction, got[0].Category)
		assert.Equal(t, "Exit at 0m: VER gets on power earlier (better traction), gaining 0.100s.", got[0].Message)
	})

	t.Run("better drive", func(t *testing.T) {
		a := profile{speed: rising, throttle: 80}.series(1000)
		b := profile{speed: rising, throttle: 90, extra: lossUntil(0.1, 250)}.series(1000)

		got := analysis.Insights("VER", "LEC", a, b, nil)

		assert.Equal(t, []string{"Exit at 0m: VER has better drive out of the corner."}, got)
	})
}

func TestClassify_Straight(t *testing.T) {
	t.Run("speed difference", func(t *testing.T) {
		a := profile{speed: constant(300), throttle: 100}.series(1000)
		b := profile{speed: constant(290), throttle: 100, extra: lossUntil(0.1, 250)}.series(1000)

		got := analysis.Classify("VER", "LEC", a, b, analysis.DefaultRules)

		require.Len(t, got, 1)
		assert.Equal(t, analysis.CategoryStraight, got[0].Category)
		assert.Equal(t, "Straight at 0m: VER is faster by 10km/h (Drag/Setup).", got[0].Message)
	})

	t.Run("small speed difference", func(t *testing.T) {
		a := profile{speed: constant(300), throttle: 100}.series(1000)
		b := profile{speed: constant(302), throttle: 100, extra: lossUntil(0.1, 250)}.series(1000)

		assert.Empty(t, analysis.Classify("VER", "LEC", a, b, analysis.DefaultRules))
		assert.Equal(t,
			[]string{analysis.InsightNoDifferences},
			analysis.Insights("VER", "LEC", a, b, nil),
		)
	})
}

func TestClassify_UnmatchedWindowIsSkipped(t *testing.T) {
	// Mid-speed coasting: no braking, no acceleration, below straight speed.
	a := profile{speed: constant(220), throttle: 30}.series(1000)
	b := profile{speed: constant(220), throttle: 30, extra: lossUntil(0.2, 250)}.series(1000)

	assert.Empty(t, analysis.Classify("VER", "LEC", a, b, analysis.DefaultRules))
}

func TestClassify_MismatchedGrids(t *testing.T) {
	a := profile{}.series(1000)
	b := profile{}.series(500)

	assert.Nil(t, analysis.Classify("VER", "LEC", a, b, analysis.DefaultRules))
}

func TestInsights_CappedInTrackOrder(t *testing.T) {
	// A steady loss of 0.1s per 250m window over a 5km lap.
	loss := func(d float64) float64 { return 0.1 * d / 250 }
	a := profile{brake: 20}.series(5000)
	b := profile{brake: 20, extra: loss}.series(5000)

	require.Len(t, analysis.Classify("VER", "LEC", a, b, analysis.DefaultRules), 20)

	got := analysis.Insights("VER", "LEC", a, b, nil)

	require.Len(t, got, analysis.MaxInsights)
	assert.Equal(t, "Braking at 0m: VER gains 0.100s on entry phase.", got[0])
	assert.Equal(t, "Braking at 1750m: VER gains 0.100s on entry phase.", got[7])
}

func TestInsights_Deduplicated(t *testing.T) {
	loss := func(d float64) float64 { return 0.1 * d / 250 }
	a := profile{brake: 20}.series(2000)
	b := profile{brake: 20, extra: loss}.series(2000)

	sameMessage := analysis.Rule{
		Category: analysis.CategoryBraking,
		Match:    func(*analysis.WindowStats) bool { return true },
		Explain: func(w *analysis.WindowStats) (string, bool) {
			return w.Gainer().Driver + " is quicker here.", true
		},
	}

	got := analysis.Insights("VER", "LEC", a, b, []analysis.Rule{sameMessage})

	assert.Equal(t, []string{"VER is quicker here."}, got)
}

func TestInsights_IdenticalLaps(t *testing.T) {
	a := profile{brake: 20}.series(5000)
	b := profile{brake: 20}.series(5000)

	assert.Empty(t, analysis.Classify("VER", "LEC", a, b, analysis.DefaultRules))
	assert.Equal(t, []string{analysis.InsightNoDifferences}, analysis.Insights("VER", "LEC", a, b, nil))
}

func TestInsights_MissingSeries(t *testing.T) {
	a := profile{}.series(1000)

	assert.Equal(t, []string{analysis.InsightInsufficient}, analysis.Insights("VER", "LEC", a, nil, nil))
	assert.Equal(t, []string{analysis.InsightInsufficient}, analysis.Insights("VER", "LEC", nil, a, nil))
}

func TestWindowStats_GainerAndLoser(t *testing.T) {
	w := &analysis.WindowStats{
		Change: -0.2,
		A:      analysis.DriverWindow{Driver: "VER"},
		B:      analysis.DriverWindow{Driver: "LEC"},
	}

	assert.False(t, w.GainerIsA())
	assert.Equal(t, "LEC", w.Gainer().Driver)
	assert.Equal(t, "VER", w.Loser().Driver)
}

func TestRules_CategoryFollowsDriverA(t *testing.T) {
	braking := analysis.DriverWindow{Driver: "VER", AvgBrake: 40, AvgSpeed: 150, MinSpeed: 90}
	straight := analysis.DriverWindow{Driver: "LEC", AvgSpeed: 300, AvgThrottle: 100}

	tests := []struct {
		name string
		a, b analysis.DriverWindow
		want analysis.Category
	}{
		{name: "A braking, B flat out", a: braking, b: straight, want: analysis.CategoryBraking},
		{name: "A flat out, B braking", a: straight, b: braking, want: analysis.CategoryStraight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &analysis.WindowStats{Change: 0.2, Gain: 0.2, A: tt.a, B: tt.b}

			var matched []analysis.Category
			for _, r := range analysis.DefaultRules {
				if r.Match(w) {
					matched = append(matched, r.Category)
				}
			}
			assert.Equal(t, []analysis.Category{tt.want}, matched)
		})
	}
}
