package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/middleware"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/auth"
)

const testSigningKey = "test-secret-key-for-testing-only"

func adminHandler(t *testing.T, tokens *auth.TokenService) http.Handler {
	t.Helper()
	return middleware.AdminAuth(tokens, auth.ScopeCacheAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(middleware.GetSubject(r.Context())))
	}))
}

func serveWithAuthorization(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/cache/invalidate", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminAuth_ValidToken(t *testing.T) {
	tokens := auth.NewTokenService(auth.TokenConfig{SigningKey: testSigningKey})
	token, _, err := tokens.Issue("ops@apex", time.Minute, auth.ScopeCacheAdmin)
	require.NoError(t, err)

	rec := serveWithAuthorization(adminHandler(t, tokens), "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops@apex", rec.Body.String())
}

func TestAdminAuth_BearerPrefixIsCaseInsensitive(t *testing.T) {
	tokens := auth.NewTokenService(auth.TokenConfig{SigningKey: testSigningKey})
	token, _, err := tokens.Issue("ops@apex", time.Minute, auth.ScopeCacheAdmin)
	require.NoError(t, err)

	rec := serveWithAuthorization(adminHandler(t, tokens), "bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuth_MissingOrMalformedHeader(t *testing.T) {
	handler := adminHandler(t, auth.NewTokenService(auth.TokenConfig{SigningKey: testSigningKey}))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", "token123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer   "},
		{"just bearer", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithAuthorization(handler, tt.header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), "missing or malformed bearer token")
		})
	}
}

func TestAdminAuth_InvalidToken(t *testing.T) {
	other := auth.NewTokenService(auth.TokenConfig{SigningKey: "some-other-key"})
	token, _, err := other.Issue("ops@apex", time.Minute, auth.ScopeCacheAdmin)
	require.NoError(t, err)

	handler := adminHandler(t, auth.NewTokenService(auth.TokenConfig{SigningKey: testSigningKey}))

	for _, header := range []string{"Bearer not.a.jwt", "Bearer " + token} {
		rec := serveWithAuthorization(handler, header)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid token")
	}
}

func TestAdminAuth_ExpiredToken(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "beyond-the-apex",
			Subject:   "ops@apex",
			Audience:  jwt.ClaimStrings{"beyond-the-apex-admin"},
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
		},
		Scopes: []string{auth.ScopeCacheAdmin},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	rec := serveWithAuthorization(adminHandler(t, auth.NewTokenService(auth.TokenConfig{SigningKey: testSigningKey})), "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token has expired")
}

func TestAdminAuth_MissingScope(t *testing.T) {
	tokens := auth.NewTokenService(auth.TokenConfig{SigningKey: testSigningKey})
	token, _, err := tokens.Issue("viewer@apex", time.Minute, "read")
	require.NoError(t, err)

	rec := serveWithAuthorization(adminHandler(t, tokens), "Bearer "+token)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), auth.ScopeCacheAdmin)
}

func TestAdminAuth_Disabled(t *testing.T) {
	for name, tokens := range map[string]*auth.TokenService{
		"no signing key": auth.NewTokenService(auth.TokenConfig{}),
		"nil service":    nil,
	} {
		t.Run(name, func(t *testing.T) {
			rec := serveWithAuthorization(adminHandler(t, tokens), "Bearer anything")

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Contains(t, rec.Body.String(), "admin endpoints are disabled")
		})
	}
}

func TestGetSubject_EmptyWithoutAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)

	assert.Empty(t, middleware.GetSubject(req.Context()))
}
