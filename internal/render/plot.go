package render

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/analysis"
)

// Trace chart dimensions.
const (
	ChartWidth  = 14 * vg.Inch
	ChartHeight = 8 * vg.Inch
)

// ErrNothingToPlot is returned when the result has no loaded drivers.
var ErrNothingToPlot = errors.New("no telemetry to plot")

// WriteTraces draws speed and delta-to-pole against distance for every loaded
// driver, stacked vertically, and writes the chart as PNG.
func WriteTraces(w io.Writer, r *analysis.Result) error {
	if len(r.Order) == 0 {
		return ErrNothingToPlot
	}

	speed := plot.New()
	speed.Title.Text = "Speed"
	speed.X.Label.Text = "Distance (m)"
	speed.Y.Label.Text = "Speed (km/h)"

	delta := plot.New()
	delta.Title.Text = "Delta to pole"
	delta.X.Label.Text = "Distance (m)"
	delta.Y.Label.Text = "Delta (s)"

	for i, code := range r.Order {
		d, ok := r.Drivers[code]
		if !ok {
			continue
		}
		tel := &d.Telemetry

		speedLine, err := plotter.NewLine(xys(tel.Distance, tel.Speed))
		if err != nil {
			return fmt.Errorf("speed trace for %s: %w", code, err)
		}
		speedLine.Color = plotutil.Color(i)
		speedLine.Width = vg.Points(1)
		speed.Add(speedLine)
		speed.Legend.Add(code, speedLine)

		deltaLine, err := plotter.NewLine(xys(tel.Distance, tel.DeltaToRef))
		if err != nil {
			return fmt.Errorf("delta trace for %s: %w", code, err)
		}
		deltaLine.Color = plotutil.Color(i)
		deltaLine.Width = vg.Points(1)
		delta.Add(deltaLine)
		delta.Legend.Add(code, deltaLine)
	}

	for _, p := range []*plot.Plot{speed, delta} {
		p.Add(plotter.NewGrid())
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10
	}

	plots := [][]*plot.Plot{{speed}, {delta}}
	img := vgimg.New(ChartWidth, ChartHeight)
	dc := draw.New(img)
	canvases := plot.Align(plots, draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Millimeter * 4}, dc)
	for row := range plots {
		plots[row][0].Draw(canvases[row][0])
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// SaveTraces writes the trace chart to path.
func SaveTraces(path string, r *analysis.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return WriteTraces(f, r)
}

func xys(x, y []float64) plotter.XYs {
	n := min(len(x), len(y))
	pts := make(plotter.XYs, n)
	for i := range n {
		pts[i] = plotter.XY{X: x[i], Y: y[i]}
	}
	return pts
}
