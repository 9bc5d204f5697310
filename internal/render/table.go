// Package render formats comparison results for terminals and image files.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/analysis"
)

// BestMarker is appended to sector times equal to the session best.
const BestMarker = "*"

const (
	headerDriver = "Driver"
	headerLap    = "Lap"
	headerGap    = "Gap"
	headerTyre   = "Tyre"
)

// WriteTable writes one row per loaded driver with lap time, gap to pole,
// sectors and tyre.
func WriteTable(w io.Writer, r *analysis.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{headerDriver, headerLap, headerGap, "S1", "S2", "S3", headerTyre})

	for _, code := range r.Order {
		d, ok := r.Drivers[code]
		if !ok {
			continue
		}
		row := table.Row{code, FormatLapTime(d.LapTime), formatGap(d.LapTime, r.PoleLapTime)}
		for i, s := range d.Sectors {
			row = append(row, formatSector(s, r.SessionBestSectors[i]))
		}
		row = append(row, formatTyre(d.TyreInfo))
		t.AppendRow(row)
	}
	for _, code := range r.UnavailableDrivers {
		t.AppendRow(table.Row{code, "no data", "", "", "", "", ""})
	}

	t.AppendFooter(table.Row{"Pole", FormatLapTime(r.PoleLapTime), "",
		formatSector(r.SessionBestSectors[0], 0),
		formatSector(r.SessionBestSectors[1], 0),
		formatSector(r.SessionBestSectors[2], 0), ""})
	t.Render()
}

// WriteSummary writes the weather line followed by the insights.
func WriteSummary(w io.Writer, r *analysis.Result) {
	wx := r.Weather
	rain := "dry"
	if wx.Rain {
		rain = "wet"
	}
	fmt.Fprintf(w, "Weather: air %.1f°C, track %.1f°C, humidity %.1f%%, %s\n", wx.AirTemp, wx.TrackTemp, wx.Humidity, rain)

	if len(r.Insights) == 0 {
		return
	}
	fmt.Fprintln(w, "\nInsights:")
	for _, insight := range r.Insights {
		fmt.Fprintf(w, "  - %s\n", insight)
	}
}

// FormatLapTime renders seconds as m:ss.sss. Zero renders as "-".
func FormatLapTime(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return "-"
	}
	millis := int64(math.Round(seconds * 1000))
	minutes := millis / 60000
	millis %= 60000
	return fmt.Sprintf("%d:%02d.%03d", minutes, millis/1000, millis%1000)
}

func formatGap(lapTime, pole float64) string {
	if lapTime <= 0 || pole <= 0 {
		return "-"
	}
	return fmt.Sprintf("+%.3f", math.Max(0, lapTime-pole))
}

func formatSector(v, best float64) string {
	if v <= 0 {
		return "-"
	}
	s := fmt.Sprintf("%.3f", v)
	if best > 0 && math.Abs(v-best) < 5e-4 {
		s += BestMarker
	}
	return s
}

func formatTyre(t analysis.TyreInfo) string {
	if t.Compound == "" {
		return "-"
	}
	return fmt.Sprintf("%s (%d)", strings.ToUpper(t.Compound), t.Age)
}
