package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/middleware"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/models"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/response"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

const maxAdminBodyBytes = 4 << 10

// Invalidator drops cached session data.
type Invalidator interface {
	Invalidate(ctx context.Context, key session.Key) (int64, error)
}

// AdminHandler handles the cache administration endpoints.
type AdminHandler struct {
	cache  Invalidator
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(cache Invalidator, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{cache: cache, logger: logger}
}

// InvalidateCache handles POST /v1/admin/cache/invalidate.
func (h *AdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var input models.InvalidateCacheRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	key, fieldErrors := invalidateKey(input)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid session", fieldErrors)
		return
	}

	removed, err := h.cache.Invalidate(r.Context(), key)
	if err != nil {
		h.logger.Error().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("session", key.String()).
			Msg("cache invalidation failed")
		response.InternalError(w, r, "cache invalidation failed")
		return
	}

	h.logger.Info().
		Str("subject", middleware.GetSubject(r.Context())).
		Str("session", key.String()).
		Int64("removed", removed).
		Msg("cache invalidated")

	response.JSON(w, r, http.StatusOK, models.InvalidateCacheResponse{
		Session: key.String(),
		Removed: removed,
	})
}

func invalidateKey(input models.InvalidateCacheRequest) (session.Key, []models.FieldError) {
	var errs []models.FieldError
	key := session.Key{Year: input.Year, Event: strings.TrimSpace(input.Race)}

	if key.Year < session.MinYear || key.Year > session.MaxYear {
		errs = append(errs, models.FieldError{Field: "year", Message: "year out of range", Code: models.CodeOutOfRange})
	}
	if key.Event == "" {
		errs = append(errs, models.FieldError{Field: "race", Message: "race is required", Code: models.CodeRequired})
	}

	sessionType, err := session.ParseSessionType(input.Session)
	if err != nil {
		errs = append(errs, models.FieldError{Field: "session", Message: "unknown session type", Code: models.CodeInvalid})
	}
	key.Type = sessionType

	return key, errs
}
