// Package openf1 adapts the OpenF1 REST API to session.Provider.
package openf1

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/provider/resilience"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

const (
	// ProviderName identifies this telemetry provider.
	ProviderName = "openf1"

	// DefaultBaseURL is the OpenF1 API base URL.
	DefaultBaseURL = "https://api.openf1.org/v1"
)

// ClientConfig holds configuration for the OpenF1 client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to OpenF1).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenF1 API client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenF1 client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchSession resolves the session and returns all laps and weather samples.
func (c *Client) FetchSession(ctx context.Context, key session.Key) (*session.Session, error) {
	meeting, err := c.findMeeting(ctx, key)
	if err != nil {
		return nil, err
	}

	sess, err := c.findSession(ctx, meeting.MeetingKey, key.Type)
	if err != nil {
		return nil, err
	}
	sessionKey := strconv.Itoa(sess.SessionKey)

	var drivers []driverResponse
	if err := c.get(ctx, "/drivers", "session_key="+sessionKey, &drivers); err != nil {
		return nil, fmt.Errorf("fetching drivers: %w", err)
	}

	var laps []lapResponse
	if err := c.get(ctx, "/laps", "session_key="+sessionKey, &laps); err != nil {
		return nil, fmt.Errorf("fetching laps: %w", err)
	}

	var stints []stintResponse
	if err := c.get(ctx, "/stints", "session_key="+sessionKey, &stints); err != nil {
		return nil, fmt.Errorf("fetching stints: %w", err)
	}

	var weather []weatherResponse
	if err := c.get(ctx, "/weather", "session_key="+sessionKey, &weather); err != nil {
		// Weather is optional for a comparison.
		c.logger.Warn().Err(err).Str("session", key.String()).Msg("weather unavailable")
		weather = nil
	}

	out := &session.Session{
		Key:     key,
		Name:    fmt.Sprintf("%d %s - %s", key.Year, meeting.MeetingName, sess.SessionName),
		Laps:    toLaps(sess.SessionKey, laps, drivers, stints),
		Weather: toWeather(weather),
	}

	c.logger.Debug().
		Str("session", key.String()).
		Int("session_key", sess.SessionKey).
		Int("laps", len(out.Laps)).
		Msg("session loaded")

	return out, nil
}

// FetchLapTelemetry returns the car data recorded between the start and end
// of the lap. Laps loaded by FetchSession carry their session key, so only
// /car_data is requested; other laps resolve the session first.
func (c *Client) FetchLapTelemetry(ctx context.Context, key session.Key, lap session.Lap) (*session.LapSeries, error) {
	if lap.StartedAt.IsZero() || !lap.Timed() {
		return nil, fmt.Errorf("%w: %s lap %d has no start time", session.ErrNoTelemetry, lap.Driver, lap.Number)
	}

	sessionKey := lap.SessionKey
	if sessionKey == 0 {
		meeting, err := c.findMeeting(ctx, key)
		if err != nil {
			return nil, err
		}
		sess, err := c.findSession(ctx, meeting.MeetingKey, key.Type)
		if err != nil {
			return nil, err
		}
		sessionKey = sess.SessionKey
	}

	end := lap.StartedAt.Add(time.Duration(lap.LapTime * float64(time.Second)))
	query := fmt.Sprintf("session_key=%d&driver_number=%d&date>=%s&date<=%s",
		sessionKey, lap.DriverNumber,
		url.QueryEscape(lap.StartedAt.UTC().Format(time.RFC3339Nano)),
		url.QueryEscape(end.UTC().Format(time.RFC3339Nano)))

	var data []carDataResponse
	if err := c.get(ctx, "/car_data", query, &data); err != nil {
		return nil, fmt.Errorf("fetching car data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s lap %d", session.ErrNoTelemetry, lap.Driver, lap.Number)
	}

	return &session.LapSeries{
		Driver:    lap.Driver,
		LapNumber: lap.Number,
		Samples:   toSamples(data, lap.StartedAt),
	}, nil
}

func (c *Client) findMeeting(ctx context.Context, key session.Key) (*meetingResponse, error) {
	var meetings []meetingResponse
	if err := c.get(ctx, "/meetings", "year="+strconv.Itoa(key.Year), &meetings); err != nil {
		return nil, fmt.Errorf("fetching meetings: %w", err)
	}

	event := strings.ToLower(strings.TrimSpace(key.Event))
	for i := range meetings {
		m := &meetings[i]
		for _, candidate := range []string{m.MeetingName, m.CountryName, m.Location, m.CircuitShortName, m.MeetingOfficial} {
			if candidate != "" && strings.Contains(strings.ToLower(candidate), event) {
				return m, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no %d event matching %q", session.ErrSessionNotFound, key.Year, key.Event)
}

func (c *Client) findSession(ctx context.Context, meetingKey int, typ session.SessionType) (*sessionResponse, error) {
	var sessions []sessionResponse
	if err := c.get(ctx, "/sessions", "meeting_key="+strconv.Itoa(meetingKey), &sessions); err != nil {
		return nil, fmt.Errorf("fetching sessions: %w", err)
	}

	for i := range sessions {
		name, err := session.ParseSessionType(sessions[i].SessionName)
		if err == nil && name == typ {
			return &sessions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: meeting %d has no %s session", session.ErrSessionNotFound, meetingKey, typ.Name())
}

// get issues a GET and decodes the JSON array into out. OpenF1 answers 404
// when a filter matches nothing, which is treated as an empty result.
func (c *Client) get(ctx context.Context, path, rawQuery string, out any) error {
	u := c.baseURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return json.Unmarshal([]byte("[]"), out)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// toLaps joins laps with driver acronyms and the stint each lap belongs to.
func toLaps(sessionKey int, laps []lapResponse, drivers []driverResponse, stints []stintResponse) []session.Lap {
	codes := make(map[int]string, len(drivers))
	for _, d := range drivers {
		codes[d.DriverNumber] = strings.ToUpper(d.NameAcronym)
	}

	out := make([]session.Lap, 0, len(laps))
	for _, l := range laps {
		code, ok := codes[l.DriverNumber]
		if !ok {
			code = strconv.Itoa(l.DriverNumber)
		}

		lap := session.Lap{
			Driver:       code,
			DriverNumber: l.DriverNumber,
			Number:       l.LapNumber,
			SessionKey:   sessionKey,
			LapTime:      deref(l.LapDuration),
			Sectors: [3]float64{
				deref(l.DurationSector1),
				deref(l.DurationSector2),
				deref(l.DurationSector3),
			},
		}
		if l.IsPitOutLap {
			lap.LapTime = 0
		}
		if l.DateStart != nil {
			lap.StartedAt = *l.DateStart
		}
		if st := stintFor(stints, l.DriverNumber, l.LapNumber); st != nil {
			lap.Compound = st.Compound
			lap.TyreLife = st.TyreAgeAtStart + (l.LapNumber - st.LapStart)
		}
		out = append(out, lap)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Driver != out[j].Driver {
			return out[i].Driver < out[j].Driver
		}
		return out[i].Number < out[j].Number
	})
	return out
}

func stintFor(stints []stintResponse, driver, lap int) *stintResponse {
	for i := range stints {
		st := &stints[i]
		if st.DriverNumber == driver && lap >= st.LapStart && (st.LapEnd == 0 || lap <= st.LapEnd) {
			return st
		}
	}
	return nil
}

func toWeather(rows []weatherResponse) []session.WeatherSample {
	out := make([]session.WeatherSample, 0, len(rows))
	for _, w := range rows {
		out = append(out, session.WeatherSample{
			Time:      w.Date,
			AirTemp:   w.AirTemperature,
			TrackTemp: w.TrackTemperature,
			Humidity:  w.Humidity,
			Rainfall:  w.Rainfall != nil && *w.Rainfall > 0,
		})
	}
	return out
}

// toSamples converts car data to samples timed from lap start. Brake is
// reported as 0 or 100 and normalised to 0..1.
func toSamples(data []carDataResponse, lapStart time.Time) []session.Sample {
	out := make([]session.Sample, 0, len(data))
	for _, d := range data {
		out = append(out, session.Sample{
			Time:     d.Date.Sub(lapStart).Seconds(),
			Speed:    d.Speed,
			Throttle: d.Throttle,
			Brake:    math.Min(math.Max(d.Brake/100, 0), 1),
			RPM:      d.RPM,
			Gear:     d.NGear,
		})
	}
	return out
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
