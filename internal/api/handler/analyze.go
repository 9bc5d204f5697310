package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/analysis"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/middleware"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/models"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/response"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

// MaxDrivers is the most drivers one comparison may name.
const MaxDrivers = 20

// Comparer runs lap comparisons.
type Comparer interface {
	Compare(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

// AnalyzeHandler serves lap comparisons.
type AnalyzeHandler struct {
	comparer Comparer
	logger   zerolog.Logger
}

// NewAnalyzeHandler creates a new AnalyzeHandler.
func NewAnalyzeHandler(comparer Comparer, logger zerolog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{comparer: comparer, logger: logger}
}

// Analyze handles GET /analyze and GET /v1/analyze.
//
// Query parameters: year, race, session (default Q) and drivers, a
// comma-separated list of driver codes.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, fieldErrors := parseAnalyzeQuery(r)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	result, err := h.comparer.Compare(r.Context(), req)
	if err != nil {
		h.writeCompareError(w, r, req, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewAnalyzeResponse(result))
}

func (h *AnalyzeHandler) writeCompareError(w http.ResponseWriter, r *http.Request, req analysis.Request, err error) {
	event := h.logger.Warn()
	status := http.StatusNotFound
	message := fmt.Sprintf("No telemetry available for %s %d %s.", req.Key.Event, req.Key.Year, req.Key.Type.Name())

	switch {
	case errors.Is(err, analysis.ErrDataUnavailable):
	case errors.Is(err, session.ErrProviderUnavailable):
		event = h.logger.Error()
		status = http.StatusServiceUnavailable
		message = "Telemetry provider is unavailable. Please try again later."
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads the response.
		h.logger.Debug().Err(err).Str("session", req.Key.String()).Msg("comparison cancelled")
		return
	default:
		event = h.logger.Error()
		status = http.StatusInternalServerError
		message = "Comparison failed."
	}

	event.Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("session", req.Key.String()).
		Strs("drivers", req.Drivers).
		Int("status", status).
		Msg("comparison failed")

	response.Failure(w, r, status, message)
}

func parseAnalyzeQuery(r *http.Request) (analysis.Request, []models.FieldError) {
	q := r.URL.Query()
	var (
		req  analysis.Request
		errs []models.FieldError
	)

	if raw := strings.TrimSpace(q.Get("year")); raw == "" {
		errs = append(errs, models.FieldError{Field: "year", Message: "year is required", Code: models.CodeRequired})
	} else if year, err := strconv.Atoi(raw); err != nil {
		errs = append(errs, models.FieldError{Field: "year", Message: "year must be an integer", Code: models.CodeInvalid})
	} else {
		req.Key.Year = year
	}

	req.Key.Event = strings.TrimSpace(q.Get("race"))
	if req.Key.Event == "" {
		errs = append(errs, models.FieldError{Field: "race", Message: "race is required", Code: models.CodeRequired})
	}

	sessionType, err := session.ParseSessionType(q.Get("session"))
	if err != nil {
		errs = append(errs, models.FieldError{Field: "session", Message: "unknown session type", Code: models.CodeInvalid})
	}
	req.Key.Type = sessionType

	if req.Key.Year != 0 && (req.Key.Year < session.MinYear || req.Key.Year > session.MaxYear) {
		errs = append(errs, models.FieldError{
			Field:   "year",
			Message: fmt.Sprintf("year must be between %d and %d", session.MinYear, session.MaxYear),
			Code:    models.CodeOutOfRange,
		})
	}

	req.Drivers = analysis.NormalizeDrivers(strings.Split(q.Get("drivers"), ","))
	switch {
	case len(req.Drivers) == 0:
		errs = append(errs, models.FieldError{Field: "drivers", Message: "at least one driver is required", Code: models.CodeRequired})
	case len(req.Drivers) > MaxDrivers:
		errs = append(errs, models.FieldError{
			Field:   "drivers",
			Message: fmt.Sprintf("at most %d drivers may be compared", MaxDrivers),
			Code:    models.CodeTooMany,
		})
	}

	return req, errs
}
