package render_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/analysis"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/render"
)

func testResult() *analysis.Result {
	series := func(offset float64) analysis.AlignedSeries {
		var s analysis.AlignedSeries
		for i := 0; i < 100; i++ {
			d := float64(i) * 50
			s.Distance = append(s.Distance, d)
			s.Speed = append(s.Speed, 200+float64(i%10))
			s.DeltaToRef = append(s.DeltaToRef, offset*float64(i)/100)
		}
		return s
	}

	return &analysis.Result{
		Drivers: map[string]*analysis.DriverResult{
			"VER": {
				Telemetry: series(0),
				Sectors:   [3]float64{28.6, 38.1, 23.008},
				LapTime:   89.708,
				TyreInfo:  analysis.TyreInfo{Compound: "soft", Age: 2},
			},
			"LEC": {
				Telemetry: series(0.292),
				Sectors:   [3]float64{28.4, 38.4, 23.2},
				LapTime:   90.0,
				TyreInfo:  analysis.TyreInfo{Compound: "SOFT", Age: 0},
			},
		},
		SessionBestSectors: [3]float64{28.4, 38.1, 23.008},
		PoleLapTime:        89.708,
		Weather:            analysis.WeatherSummary{AirTemp: 25, TrackTemp: 31.4, Humidity: 40},
		UnavailableDrivers: []string{"HAM"},
		Order:              []string{"VER", "LEC"},
		Insights:           []string{"Braking at 250m: LEC gains 0.050s on entry phase."},
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer

	render.WriteTable(&buf, testResult())
	out := buf.String()

	assert.Contains(t, out, "VER")
	assert.Contains(t, out, "1:29.708")
	assert.Contains(t, out, "1:30.000")
	assert.Contains(t, out, "+0.292")
	assert.Contains(t, out, "SOFT (2)")

	// Session-best sectors are marked, others are not.
	assert.Contains(t, out, "28.400"+render.BestMarker)
	assert.Contains(t, out, "38.100"+render.BestMarker)
	assert.Contains(t, out, "23.008"+render.BestMarker)
	assert.NotContains(t, out, "28.600"+render.BestMarker)
	assert.NotContains(t, out, "38.400"+render.BestMarker)

	assert.Contains(t, out, "HAM")
	assert.Contains(t, out, "no data")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("VER")), bytes.Index(buf.Bytes(), []byte("LEC")))
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer

	render.WriteSummary(&buf, testResult())
	out := buf.String()

	assert.Contains(t, out, "air 25.0°C, track 31.4°C, humidity 40.0%, dry")
	assert.Contains(t, out, "  - Braking at 250m: LEC gains 0.050s on entry phase.")
}

func TestWriteSummary_NoInsights(t *testing.T) {
	r := testResult()
	r.Insights = nil
	r.Weather.Rain = true
	var buf bytes.Buffer

	render.WriteSummary(&buf, r)

	assert.Contains(t, buf.String(), "wet")
	assert.NotContains(t, buf.String(), "Insights")
}

func TestFormatLapTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{89.708, "1:29.708"},
		{59.9996, "1:00.000"},
		{125.05, "2:05.050"},
		{0, "-"},
		{-1, "-"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, render.FormatLapTime(tt.seconds))
		})
	}
}

func TestWriteTraces(t *testing.T) {
	var buf bytes.Buffer

	err := render.WriteTraces(&buf, testResult())

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

func TestWriteTraces_Empty(t *testing.T) {
	var buf bytes.Buffer

	err := render.WriteTraces(&buf, &analysis.Result{})

	assert.ErrorIs(t, err, render.ErrNothingToPlot)
	assert.Zero(t, buf.Len())
}

func TestSaveTraces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.png")

	require.NoError(t, render.SaveTraces(path, testResult()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
