package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"hrdesign/internal/session"
)

// Paths under the base path reachable without credentials.
var (
	publicExact = []string{
		"/health",
		"/openapi.json",
		"/auth/register",
		"/auth/login",
		"/auth/password/otp",
		"/auth/password/reset",
	}
	publicPrefixes = []string{
		"/invitations/",
		"/kpi-review/",
		"/routes/",
		"/catalog/",
	}
)

func isPublicPath(basePath, p string) bool {
	rel := strings.TrimPrefix(p, strings.TrimSuffix(basePath, "/"))
	if rel == p && basePath != "" && basePath != "/" {
		return false
	}
	for _, x := range publicExact {
		if rel == x {
			return true
		}
	}
	for _, x := range publicPrefixes {
		if strings.HasPrefix(rel, x) {
			return true
		}
	}
	return false
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, sessions session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if req.Method == http.MethodOptions || isPublicPath(basePath, req.URL.Path) {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKeyHeader := strings.TrimSpace(req.Header.Get("X-Api-Key"))

			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				s, err := sessions.Resolve(req.Context(), token)
				if err != nil {
					respondStatusError(w, sessionError(err))
					return
				}
				next.ServeHTTP(w, req.WithContext(session.With(req.Context(), s)))
				return
			}

			if apiKeyHeader != "" {
				s, err := sessions.FromAPIKey(req.Context(), apiKeyHeader)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(session.With(req.Context(), s)))
				return
			}

			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		})
	}
}

func sessionError(err error) huma.StatusError {
	switch {
	case errors.Is(err, session.ErrExpired):
		return newAPIError(http.StatusUnauthorized, "session_expired", err.Error(), nil)
	case errors.Is(err, session.ErrRevoked):
		return newAPIError(http.StatusUnauthorized, "session_revoked", err.Error(), nil)
	default:
		return newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
