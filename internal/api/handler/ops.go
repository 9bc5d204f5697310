// Package handler provides HTTP handlers for the lap comparison API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/models"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/response"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/provider/resilience"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

const readinessTimeout = 2 * time.Second

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheReporter describes the session cache.
type CacheReporter interface {
	CacheStats() session.CacheStats
	StoreStats(ctx context.Context) (session.StoreStats, bool, error)
}

// OpsConfig holds the dependencies of the ops endpoints. Nil fields are
// reported as absent rather than failing.
type OpsConfig struct {
	Version   string
	BuildTime string
	Store     Pinger
	Cache     CacheReporter
	Registry  *resilience.Registry
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   h.now().UTC(),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The instance is
// ready once its cache store answers a ping.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{Status: models.HealthStatusOK, Time: h.now().UTC()}

	if err := h.pingStore(r.Context()); err != nil {
		health.Status = models.HealthStatusFail
		health.Details = map[string]any{"store": "unreachable"}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       h.now().UTC(),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	store := models.SubsystemStatus{Name: "session-store", Status: models.HealthStatusOK}
	if err := h.pingStore(r.Context()); err != nil {
		store.Status = models.HealthStatusFail
		store.Detail = "unreachable"
	}
	status.Subsystems = append(status.Subsystems, store)

	if h.cfg.Cache != nil {
		stats := h.cfg.Cache.CacheStats()
		status.Cache.MemoryEntries = stats.Entries
		status.Cache.FreshEntries = stats.FreshEntries

		stored, ok, err := h.cfg.Cache.StoreStats(r.Context())
		if ok && err == nil {
			status.Cache.StoredEntries = &stored.Entries
			status.Cache.StoredBytes = &stored.Bytes
		}
	}

	if h.cfg.Registry != nil {
		for _, ph := range h.cfg.Registry.Health() {
			status.Providers = append(status.Providers, providerStatus(ph))
		}
	}

	status.Status = overallStatus(status)
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) pingStore(ctx context.Context) error {
	if h.cfg.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	return h.cfg.Store.Ping(ctx)
}

func providerStatus(ph resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            ph.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        ph.CircuitState.String(),
		ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
		LastSuccessAt:       ph.LastSuccessAt,
		LastFailureAt:       ph.LastFailureAt,
		LastError:           ph.LastError,
	}
	switch ph.Status() {
	case resilience.StatusDown:
		ps.Status = models.HealthStatusFail
	case resilience.StatusDegraded:
		ps.Status = models.HealthStatusDegraded
	}
	return ps
}

// overallStatus is FAIL when the store is down, DEGRADED when any provider
// is not healthy and OK otherwise. A failed provider only degrades the
// service because cached sessions can still be compared.
func overallStatus(s models.SystemStatus) models.HealthStatus {
	for _, sub := range s.Subsystems {
		if sub.Status == models.HealthStatusFail {
			return models.HealthStatusFail
		}
	}
	for _, p := range s.Providers {
		if p.Status != models.HealthStatusOK {
			return models.HealthStatusDegraded
		}
	}
	return models.HealthStatusOK
}
