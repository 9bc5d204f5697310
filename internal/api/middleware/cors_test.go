package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/middleware"
)

func corsRequest(h http.Handler, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/analyze", http.NoBody)
	req.Header.Set("Origin", origin)
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORS_AllowsAnyOrigin(t *testing.T) {
	for name, origins := range map[string][]string{
		"wildcard": {"*"},
		"empty":    nil,
	} {
		t.Run(name, func(t *testing.T) {
			handler := middleware.CORS(origins)(okHandler())

			rec := corsRequest(handler, http.MethodGet, "http://localhost:3000")

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	handler := middleware.CORS([]string{"https://apex.example"})(okHandler())

	rec := corsRequest(handler, http.MethodGet, "https://apex.example")
	assert.Equal(t, "https://apex.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = corsRequest(handler, http.MethodGet, "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	handler := middleware.CORS([]string{"*"})(okHandler())

	rec := corsRequest(handler, http.MethodOptions, "http://localhost:3000")

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
	assert.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))
}
