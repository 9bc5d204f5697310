package openf1

import "time"

// OpenF1 API response structures. Numeric fields that OpenF1 leaves null for
// incomplete laps are pointers.

type meetingResponse struct {
	MeetingKey       int    `json:"meeting_key"`
	MeetingName      string `json:"meeting_name"`
	MeetingOfficial  string `json:"meeting_official_name"`
	CountryName      string `json:"country_name"`
	Location         string `json:"location"`
	CircuitShortName string `json:"circuit_short_name"`
	Year             int    `json:"year"`
}

type sessionResponse struct {
	SessionKey  int       `json:"session_key"`
	SessionName string    `json:"session_name"`
	SessionType string    `json:"session_type"`
	MeetingKey  int       `json:"meeting_key"`
	DateStart   time.Time `json:"date_start"`
	DateEnd     time.Time `json:"date_end"`
}

type driverResponse struct {
	DriverNumber int    `json:"driver_number"`
	NameAcronym  string `json:"name_acronym"`
	FullName     string `json:"full_name"`
	TeamName     string `json:"team_name"`
}

type lapResponse struct {
	DriverNumber    int        `json:"driver_number"`
	LapNumber       int        `json:"lap_number"`
	LapDuration     *float64   `json:"lap_duration"`
	DurationSector1 *float64   `json:"duration_sector_1"`
	DurationSector2 *float64   `json:"duration_sector_2"`
	DurationSector3 *float64   `json:"duration_sector_3"`
	DateStart       *time.Time `json:"date_start"`
	IsPitOutLap     bool       `json:"is_pit_out_lap"`
}

type stintResponse struct {
	DriverNumber   int    `json:"driver_number"`
	StintNumber    int    `json:"stint_number"`
	LapStart       int    `json:"lap_start"`
	LapEnd         int    `json:"lap_end"`
	Compound       string `json:"compound"`
	TyreAgeAtStart int    `json:"tyre_age_at_start"`
}

type weatherResponse struct {
	Date             time.Time `json:"date"`
	AirTemperature   *float64  `json:"air_temperature"`
	TrackTemperature *float64  `json:"track_temperature"`
	Humidity         *float64  `json:"humidity"`
	Rainfall         *float64  `json:"rainfall"`
}

type carDataResponse struct {
	Date     time.Time `json:"date"`
	Speed    float64   `json:"speed"`
	Throttle float64   `json:"throttle"`
	Brake    float64   `json:"brake"`
	RPM      float64   `json:"rpm"`
	NGear    int       `json:"n_gear"`
	DRS      int       `json:"drs"`
}
