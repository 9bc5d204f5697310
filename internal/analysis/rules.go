package analysis

import "fmt"

// Category is the track context an insight is attributed to.
type Category string

const (
	CategoryBraking  Category = "braking"
	CategoryTraction Category = "traction"
	CategoryStraight Category = "straight"
)

// Rule classifies a significant window. Rules are tried in order and the
// first whose Match returns true owns the window, even when its Explain
// declines to produce a message.
type Rule struct {
	Category Category
	Match    func(w *WindowStats) bool
	Explain  func(w *WindowStats) (string, bool)
}

// DefaultRules is the classification order used by Classify.
var DefaultRules = []Rule{BrakingRule, TractionRule, StraightRule}

// BrakingRule matches heavy braking at low speed.
var BrakingRule = Rule{
	Category: CategoryBraking,
	Match: func(w *WindowStats) bool {
		return w.A.AvgBrake > 10 && w.A.AvgSpeed < 200
	},
	Explain: func(w *WindowStats) (string, bool) {
		g, l := w.Gainer(), w.Loser()
		switch {
		case g.MinSpeed > l.MinSpeed+5:
			return fmt.Sprintf("Turn at %dm: %s carries +%dkm/h higher minimum speed.",
				w.Start, g.Driver, int(g.MinSpeed-l.MinSpeed)), true
		case g.AvgBrake < l.AvgBrake:
			return fmt.Sprintf("Turn at %dm: %s brakes later/deeper, gaining %.3fs.",
				w.Start, g.Driver, w.Gain), true
		default:
			return fmt.Sprintf("Braking at %dm: %s gains %.3fs on entry phase.",
				w.Start, g.Driver, w.Gain), true
		}
	},
}

// TractionRule matches a net-accelerating window with the throttle mostly open.
var TractionRule = Rule{
	Category: CategoryTraction,
	Match: func(w *WindowStats) bool {
		return w.A.MeanSpeedStep > 0 && w.A.AvgThrottle > 50
	},
	Explain: func(w *WindowStats) (string, bool) {
		g, l := w.Gainer(), w.Loser()
		if g.AvgThrottle > l.AvgThrottle {
			return fmt.Sprintf("Exit at %dm: %s gets on power earlier (better traction), gaining %.3fs.",
				w.Start, g.Driver, w.Gain), true
		}
		return fmt.Sprintf("Exit at %dm: %s has better drive out of the corner.", w.Start, g.Driver), true
	},
}

// StraightRule matches high-speed running. Speed differences of 3 km/h or
// less are not explained.
var StraightRule = Rule{
	Category: CategoryStraight,
	Match: func(w *WindowStats) bool {
		return w.A.AvgSpeed > 250
	},
	Explain: func(w *WindowStats) (string, bool) {
		diff := w.A.AvgSpeed - w.B.AvgSpeed
		if diff < 0 {
			diff = -diff
		}
		if diff <= 3 {
			return "", false
		}
		return fmt.Sprintf("Straight at %dm: %s is faster by %dkm/h (Drag/Setup).",
			w.Start, w.Gainer().Driver, int(diff)), true
	},
}
