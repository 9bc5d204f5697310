package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/handler"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/models"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/provider/resilience"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error {
	return m.err
}

type mockCache struct {
	stats      session.CacheStats
	storeStats session.StoreStats
	hasStore   bool
	storeErr   error
}

func (m *mockCache) CacheStats() session.CacheStats {
	return m.stats
}

func (m *mockCache) StoreStats(context.Context) (session.StoreStats, bool, error) {
	return m.storeStats, m.hasStore, m.storeErr
}

func serveOps(fn http.HandlerFunc, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return w
}

func TestOps_HealthCheck(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{Version: "1.2.3", BuildTime: "2024-03-02T10:00:00Z"})

	w := serveOps(h.HealthCheck, "/v1/ops/health")

	require.Equal(t, http.StatusOK, w.Code)
	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.False(t, health.Time.IsZero())
	assert.Equal(t, "1.2.3", health.Details["version"])
}

func TestOps_ReadinessCheck(t *testing.T) {
	tests := []struct {
		name   string
		store  handler.Pinger
		code   int
		status models.HealthStatus
	}{
		{"no store", nil, http.StatusOK, models.HealthStatusOK},
		{"store reachable", &mockPinger{}, http.StatusOK, models.HealthStatusOK},
		{"store down", &mockPinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, models.HealthStatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewOpsHandler(handler.OpsConfig{Store: tt.store})

			w := serveOps(h.ReadinessCheck, "/v1/ops/ready")

			assert.Equal(t, tt.code, w.Code)
			var health models.Health
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
			assert.Equal(t, tt.status, health.Status)
		})
	}
}

func TestOps_SystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Register("openf1", resilience.NewClient(resilience.DefaultClientConfig("openf1")))
	registry.RecordSuccess("openf1")

	cache := &mockCache{
		stats:      session.CacheStats{Entries: 12, FreshEntries: 9, Provider: "openf1"},
		storeStats: session.StoreStats{Backend: "sqlite", Entries: 40, Bytes: 1 << 20},
		hasStore:   true,
	}
	h := handler.NewOpsHandler(handler.OpsConfig{Store: &mockPinger{}, Cache: cache, Registry: registry})

	w := serveOps(h.SystemStatus, "/v1/ops/status")

	require.Equal(t, http.StatusOK, w.Code)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "session-store", status.Subsystems[0].Name)

	require.Len(t, status.Providers, 1)
	p := status.Providers[0]
	assert.Equal(t, "openf1", p.Provider)
	assert.Equal(t, models.HealthStatusOK, p.Status)
	assert.Equal(t, "closed", p.CircuitState)
	assert.NotNil(t, p.LastSuccessAt)

	assert.Equal(t, 12, status.Cache.MemoryEntries)
	assert.Equal(t, 9, status.Cache.FreshEntries)
	require.NotNil(t, status.Cache.StoredEntries)
	assert.Equal(t, int64(40), *status.Cache.StoredEntries)
	require.NotNil(t, status.Cache.StoredBytes)
	assert.Equal(t, int64(1<<20), *status.Cache.StoredBytes)
}

func TestOps_SystemStatus_StoreDown(t *testing.T) {
	cache := &mockCache{hasStore: true, storeErr: errors.New("database is locked")}
	h := handler.NewOpsHandler(handler.OpsConfig{Store: &mockPinger{err: errors.New("database is locked")}, Cache: cache})

	w := serveOps(h.SystemStatus, "/v1/ops/status")

	require.Equal(t, http.StatusOK, w.Code)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusFail, status.Status)
	assert.Equal(t, "unreachable", status.Subsystems[0].Detail)
	assert.Nil(t, status.Cache.StoredEntries)
	assert.Empty(t, status.Providers)
}

func TestOps_SystemStatus_ProviderCircuitOpen(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("openf1")
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = time.Millisecond
	client := resilience.NewClient(cfg)
	registry.Register("openf1", client)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	for i := 0; i < 10 && client.State().String() != "open"; i++ {
		req, err := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
		require.NoError(t, err)
		if resp, err := client.Do(req); err == nil {
			_ = resp.Body.Close()
		}
	}
	require.Equal(t, "open", client.State().String())

	h := handler.NewOpsHandler(handler.OpsConfig{Registry: registry})
	w := serveOps(h.SystemStatus, "/v1/ops/status")

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, models.HealthStatusFail, status.Providers[0].Status)
	assert.Equal(t, "open", status.Providers[0].CircuitState)
}
