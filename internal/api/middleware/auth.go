package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/models"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/auth"
)

type subjectKey struct{}

// AdminAuth rejects requests without a valid bearer token granting scope.
// When tokens has no signing key every request is rejected.
func AdminAuth(tokens *auth.TokenService, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil || !tokens.Enabled() {
				writeProblem(w, r, models.NewForbidden(GetRequestID(r.Context()), "admin endpoints are disabled"))
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), "missing or malformed bearer token"))
				return
			}

			claims, err := tokens.Validate(token, scope)
			if err != nil {
				traceID := GetRequestID(r.Context())
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					writeProblem(w, r, models.NewUnauthorized(traceID, "token has expired"))
				case errors.Is(err, auth.ErrMissingScope):
					writeProblem(w, r, models.NewForbidden(traceID, "token does not grant "+scope))
				default:
					writeProblem(w, r, models.NewUnauthorized(traceID, "invalid token"))
				}
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject returns the authenticated token subject, or "".
func GetSubject(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey{}).(string); ok {
		return s
	}
	return ""
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// writeProblem lives here rather than in the response package, which imports
// this one.
func writeProblem(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.Instance = r.URL.Path
	p.Write(w)
}
