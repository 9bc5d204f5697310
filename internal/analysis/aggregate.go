package analysis

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

// SummarizeWeather averages the session's weather readings. Missing readings
// are skipped. A signal with readings but no usable value falls back to 0 and
// is reported through ErrMalformedWeather; the returned summary is always
// usable. No readings at all is not an error.
func SummarizeWeather(samples []session.WeatherSample) (WeatherSummary, error) {
	var summary WeatherSummary
	if len(samples) == 0 {
		return summary, nil
	}

	var air, track, humidity []float64
	for _, s := range samples {
		air = appendReading(air, s.AirTemp)
		track = appendReading(track, s.TrackTemp)
		humidity = appendReading(humidity, s.Humidity)
		summary.Rain = summary.Rain || s.Rainfall
	}

	var malformed []string
	for _, sig := range []struct {
		name   string
		values []float64
		dst    *float64
	}{
		{"air_temp", air, &summary.AirTemp},
		{"track_temp", track, &summary.TrackTemp},
		{"humidity", humidity, &summary.Humidity},
	} {
		if len(sig.values) == 0 {
			malformed = append(malformed, sig.name)
			continue
		}
		*sig.dst = round1(stat.Mean(sig.values, nil))
	}

	if len(malformed) > 0 {
		return summary, fmt.Errorf("%w: no usable %s readings", ErrMalformedWeather, strings.Join(malformed, ", "))
	}
	return summary, nil
}

func appendReading(dst []float64, v *float64) []float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return dst
	}
	return append(dst, *v)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// driverResult combines a driver's aligned telemetry with the timing of the
// lap it came from.
func driverResult(aligned *AlignedSeries, lap *session.Lap) *DriverResult {
	age := lap.TyreLife
	if age < 0 {
		age = 0
	}
	return &DriverResult{
		Telemetry: *aligned,
		Sectors:   lap.Sectors,
		LapTime:   lap.LapTime,
		TyreInfo: TyreInfo{
			Compound: lap.Compound,
			Age:      age,
		},
	}
}
