package analysis_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/analysis"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

func ptr(v float64) *float64 {
	return &v
}

func TestSummarizeWeather(t *testing.T) {
	samples := []session.WeatherSample{
		{AirTemp: ptr(24.0), TrackTemp: ptr(38.0), Humidity: ptr(41)},
		{AirTemp: ptr(24.6), TrackTemp: ptr(37.2), Humidity: ptr(43), Rainfall: true},
		{AirTemp: ptr(math.NaN()), TrackTemp: nil, Humidity: ptr(42)},
	}

	got, err := analysis.SummarizeWeather(samples)

	require.NoError(t, err)
	assert.Equal(t, analysis.WeatherSummary{
		AirTemp:   24.3,
		TrackTemp: 37.6,
		Humidity:  42,
		Rain:      true,
	}, got)
}

func TestSummarizeWeather_NoSamples(t *testing.T) {
	got, err := analysis.SummarizeWeather(nil)

	require.NoError(t, err)
	assert.Equal(t, analysis.WeatherSummary{}, got)
}

func TestSummarizeWeather_MissingSignal(t *testing.T) {
	samples := []session.WeatherSample{
		{AirTemp: ptr(20), TrackTemp: ptr(30)},
		{AirTemp: ptr(22), TrackTemp: ptr(32), Humidity: ptr(math.Inf(1))},
	}

	got, err := analysis.SummarizeWeather(samples)

	require.ErrorIs(t, err, analysis.ErrMalformedWeather)
	assert.Contains(t, err.Error(), "humidity")
	assert.Equal(t, 21.0, got.AirTemp)
	assert.Equal(t, 31.0, got.TrackTemp)
	assert.Equal(t, 0.0, got.Humidity)
	assert.False(t, got.Rain)
}
