// Package session models raw timing and telemetry data for a single
// race-weekend session and provides cached access to it.
package session

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Session errors.
var (
	ErrProviderUnavailable = errors.New("session provider unavailable")
	ErrSessionNotFound     = errors.New("session not found")
	ErrDriverNotFound      = errors.New("driver not found in session")
	ErrNoLaps              = errors.New("no timed laps")
	ErrNoTelemetry         = errors.New("no telemetry for lap")
	ErrInvalidKey          = errors.New("invalid session key")
)

// SessionType identifies a session within a race weekend.
type SessionType string

const (
	SessionPractice1        SessionType = "FP1"
	SessionPractice2        SessionType = "FP2"
	SessionPractice3        SessionType = "FP3"
	SessionQualifying       SessionType = "Q"
	SessionSprintQualifying SessionType = "SQ"
	SessionSprint           SessionType = "S"
	SessionRace             SessionType = "R"
)

// DefaultSessionType is used when a request does not name a session.
const DefaultSessionType = SessionQualifying

var sessionTypeNames = map[SessionType]string{
	SessionPractice1:        "Practice 1",
	SessionPractice2:        "Practice 2",
	SessionPractice3:        "Practice 3",
	SessionQualifying:       "Qualifying",
	SessionSprintQualifying: "Sprint Qualifying",
	SessionSprint:           "Sprint",
	SessionRace:             "Race",
}

// Name returns the long session name, e.g. "Qualifying".
func (t SessionType) Name() string {
	return sessionTypeNames[t]
}

// ParseSessionType accepts either a short code ("Q") or a long name
// ("Qualifying"), case-insensitively. An empty string yields the default.
func ParseSessionType(s string) (SessionType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSessionType, nil
	}
	for code, name := range sessionTypeNames {
		if strings.EqualFold(s, string(code)) || strings.EqualFold(s, name) {
			return code, nil
		}
	}
	// "Sprint Shootout" was the 2023 name for sprint qualifying.
	if strings.EqualFold(s, "Sprint Shootout") {
		return SessionSprintQualifying, nil
	}
	return "", fmt.Errorf("%w: unknown session type %q", ErrInvalidKey, s)
}

// Seasons accepted by Key.Validate.
const (
	MinYear = 2018
	MaxYear = 2100
)

// Key identifies a session. Its String form is the cache key.
type Key struct {
	Year  int
	Event string
	Type  SessionType
}

// Validate checks the key fields.
func (k Key) Validate() error {
	if k.Year < MinYear || k.Year > MaxYear {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidKey, k.Year)
	}
	if strings.TrimSpace(k.Event) == "" {
		return fmt.Errorf("%w: event is required", ErrInvalidKey)
	}
	if k.Type.Name() == "" {
		return fmt.Errorf("%w: unknown session type %q", ErrInvalidKey, k.Type)
	}
	return nil
}

// String returns "<year>/<event-slug>/<type>".
func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s", k.Year, slug(k.Event), k.Type)
}

// Driver returns the cache key for one driver's data in this session.
func (k Key) Driver(code string) string {
	return k.String() + "/" + strings.ToUpper(code)
}

// Lap returns the cache key for one lap's telemetry.
func (k Key) Lap(code string, number int) string {
	return fmt.Sprintf("%s/%d", k.Driver(code), number)
}

func slug(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, "-")
}

// Lap is one timed lap. Durations are in seconds; zero means not recorded.
type Lap struct {
	Driver       string     `json:"driver"`
	DriverNumber int        `json:"driver_number"`
	Number       int        `json:"number"`
	LapTime      float64    `json:"lap_time"`
	Sectors      [3]float64 `json:"sectors"`
	Compound     string     `json:"compound"`
	TyreLife     int        `json:"tyre_life"`
	StartedAt    time.Time  `json:"started_at"`

	// SessionKey is the provider's identifier for the session the lap was
	// set in. Zero when the provider has none.
	SessionKey int `json:"session_key,omitempty"`
}

// Timed reports whether the lap has a usable lap time.
func (l *Lap) Timed() bool {
	return l.LapTime > 0 && !math.IsNaN(l.LapTime) && !math.IsInf(l.LapTime, 0)
}

// Sample is one telemetry point. Time is seconds since lap start,
// Distance is metres since lap start, Brake is a 0..1 fraction.
type Sample struct {
	Time     float64 `json:"t"`
	Distance float64 `json:"d"`
	Speed    float64 `json:"v"`
	Throttle float64 `json:"thr"`
	Brake    float64 `json:"brk"`
	RPM      float64 `json:"rpm"`
	Gear     int     `json:"g"`
}

// LapSeries is the telemetry of one lap.
type LapSeries struct {
	Driver      string   `json:"driver"`
	LapNumber   int      `json:"lap_number"`
	HasDistance bool     `json:"has_distance"`
	Samples     []Sample `json:"samples"`
}

// MaxDistance returns the largest distance in the series, or 0.
func (s *LapSeries) MaxDistance() float64 {
	maxDist := 0.0
	for _, sm := range s.Samples {
		if sm.Distance > maxDist {
			maxDist = sm.Distance
		}
	}
	return maxDist
}

// WeatherSample is one weather station reading during the session. A nil
// reading was not reported by the station.
type WeatherSample struct {
	Time      time.Time `json:"time"`
	AirTemp   *float64  `json:"air_temp,omitempty"`
	TrackTemp *float64  `json:"track_temp,omitempty"`
	Humidity  *float64  `json:"humidity,omitempty"`
	Rainfall  bool      `json:"rainfall"`
}

// Session is the raw data of one session: every timed lap plus weather.
type Session struct {
	Key     Key             `json:"key"`
	Name    string          `json:"name"`
	Laps    []Lap           `json:"laps"`
	Weather []WeatherSample `json:"weather"`
}

// FastestLap returns the session's overall fastest timed lap.
func (s *Session) FastestLap() (*Lap, error) {
	return fastest(s.Laps, func(*Lap) bool { return true })
}

// DriverFastestLap returns the fastest timed lap set by the given driver.
func (s *Session) DriverFastestLap(code string) (*Lap, error) {
	code = strings.ToUpper(code)
	found := false
	lap, err := fastest(s.Laps, func(l *Lap) bool {
		if l.Driver == code {
			found = true
			return true
		}
		return false
	})
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, code)
	}
	return lap, err
}

// BestSectors returns the minimum time per sector over every lap in the
// session. Sectors without any recorded time are 0.
func (s *Session) BestSectors() [3]float64 {
	var best [3]float64
	for i := range s.Laps {
		for n, t := range s.Laps[i].Sectors {
			if t <= 0 || math.IsNaN(t) || math.IsInf(t, 0) {
				continue
			}
			if best[n] == 0 || t < best[n] {
				best[n] = t
			}
		}
	}
	return best
}

func fastest(laps []Lap, keep func(*Lap) bool) (*Lap, error) {
	var best *Lap
	for i := range laps {
		l := &laps[i]
		if !keep(l) || !l.Timed() {
			continue
		}
		if best == nil || l.LapTime < best.LapTime {
			best = l
		}
	}
	if best == nil {
		return nil, ErrNoLaps
	}
	out := *best
	return &out, nil
}
