// Package analysis aligns lap telemetry of several drivers onto a shared
// distance grid, derives comparative signals and explains where one driver
// gained time on another.
package analysis

import (
	"errors"
	"fmt"
)

const (
	// GridPoints is the number of points on the shared distance grid.
	GridPoints = 4000

	// WindowSize is the width in metres of an insight window.
	WindowSize = 250

	// SignificantDelta is the net time change in seconds a window must exceed
	// to produce an insight.
	SignificantDelta = 0.04

	// MaxInsights caps the number of insights returned.
	MaxInsights = 8

	// Sentinel insights.
	InsightNoDifferences = "No significant differences found."
	InsightInsufficient  = "Insufficient data for AI comparison."
)

// Comparison errors.
var (
	// ErrDataUnavailable aborts a comparison: no requested driver produced
	// usable telemetry, or the session has no reference lap.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrNoReferenceLap is returned when the session's fastest lap cannot be
	// determined or loaded.
	ErrNoReferenceLap = fmt.Errorf("%w: no reference lap", ErrDataUnavailable)

	// ErrMalformedWeather is returned alongside a defaulted summary when one or
	// more weather signals could not be averaged.
	ErrMalformedWeather = errors.New("malformed weather data")
)

// DriverLoadError records why one driver was left out of a comparison.
type DriverLoadError struct {
	Driver string
	Err    error
}

func (e *DriverLoadError) Error() string {
	return fmt.Sprintf("driver %s: %v", e.Driver, e.Err)
}

func (e *DriverLoadError) Unwrap() error {
	return e.Err
}

// AlignedSeries is one driver's telemetry projected onto the shared grid.
// Every slice has the grid's length.
type AlignedSeries struct {
	Distance   []float64 `json:"distance"`
	Speed      []float64 `json:"speed"`
	Throttle   []float64 `json:"throttle"`
	Brake      []float64 `json:"brake"`
	RPM        []float64 `json:"rpm"`
	Gear       []float64 `json:"gear"`
	LongG      []float64 `json:"long_g"`
	DeltaToRef []float64 `json:"delta_to_pole"`
	Time       []float64 `json:"time"`
}

// Len returns the number of grid points.
func (a *AlignedSeries) Len() int {
	return len(a.Distance)
}

func (a *AlignedSeries) columns() []*[]float64 {
	return []*[]float64{
		&a.Distance, &a.Speed, &a.Throttle, &a.Brake, &a.RPM,
		&a.Gear, &a.LongG, &a.DeltaToRef, &a.Time,
	}
}

// TyreInfo describes the tyre used on a lap.
type TyreInfo struct {
	Compound string `json:"compound"`
	Age      int    `json:"age"`
}

// DriverResult is everything returned for one compared driver.
type DriverResult struct {
	Telemetry AlignedSeries `json:"telemetry"`
	Sectors   [3]float64    `json:"sectors"`
	LapTime   float64       `json:"lap_time"`
	TyreInfo  TyreInfo      `json:"tyre_info"`
}

// WeatherSummary holds session averages rounded to one decimal.
type WeatherSummary struct {
	AirTemp   float64 `json:"air_temp"`
	TrackTemp float64 `json:"track_temp"`
	Humidity  float64 `json:"humidity"`
	Rain      bool    `json:"rain"`
}

// Result is the outcome of one comparison.
type Result struct {
	Drivers            map[string]*DriverResult `json:"drivers"`
	SessionBestSectors [3]float64               `json:"session_best_sectors"`
	PoleLapTime        float64                  `json:"pole_lap_time"`
	Weather            WeatherSummary           `json:"weather"`
	UnavailableDrivers []string                 `json:"unavailable_drivers,omitempty"`

	// Order lists loaded drivers in request order.
	Order []string `json:"-"`

	// LoadErrors explains each entry of UnavailableDrivers.
	LoadErrors []*DriverLoadError `json:"-"`

	// Insights compares the first two requested drivers. Nil when fewer than
	// two drivers were requested.
	Insights []string `json:"-"`
}
