package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"sentra.org/internal/auth"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
	apiKeyHeader = "X-API-Key"
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
}

// withAuth resolves presented credentials and attaches the identity to the
// context. Requests with no credentials proceed unauthenticated; per-route
// guards decide whether that is acceptable. Requests with bad credentials
// are rejected here with a reason code.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		bearer, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeReason(w, r, http.StatusUnauthorized, "token_malformed", err.Error())
			return
		}
		apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader))

		if bearer == "" && apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := a.auth.Resolve(r.Context(), bearer, apiKey)
		if err != nil {
			status, reason := rejectionStatus(err)
			if status == http.StatusInternalServerError {
				writeError(w, r, status, "authentication error")
				return
			}
			writeReason(w, r, status, reason, "authentication failed")
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		if bearer != "" {
			ctx = auth.ContextWithToken(ctx, bearer)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireIdentity fetches the resolved identity or writes a 401.
func (a *API) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", `Bearer realm="sentra"`)
		writeReason(w, r, http.StatusUnauthorized, "no_credentials", "authentication required")
		return auth.Identity{}, false
	}
	return identity, true
}

// requireScope is requireIdentity plus a scope guard; failures write 403.
func (a *API) requireScope(w http.ResponseWriter, r *http.Request, scope string) (auth.Identity, bool) {
	identity, ok := a.requireIdentity(w, r)
	if !ok {
		return auth.Identity{}, false
	}
	if err := auth.RequireScope(identity, scope); err != nil {
		writeReason(w, r, http.StatusForbidden, "insufficient_scope", err.Error())
		return auth.Identity{}, false
	}
	return identity, true
}

// rejectionStatus maps auth rejection reasons to HTTP status and reason code.
func rejectionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrNoCredentials):
		return http.StatusUnauthorized, "no_credentials"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		return http.StatusUnauthorized, "token_revoked"
	case errors.Is(err, auth.ErrTokenMalformed):
		return http.StatusUnauthorized, "token_malformed"
	case errors.Is(err, auth.ErrUnknownAPIKey):
		return http.StatusUnauthorized, "unknown_api_key"
	case errors.Is(err, auth.ErrInactiveAPIKey):
		return http.StatusUnauthorized, "inactive_api_key"
	case errors.Is(err, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, auth.ErrInsufficientRole):
		return http.StatusForbidden, "insufficient_role"
	case errors.Is(err, auth.ErrInsufficientScope):
		return http.StatusForbidden, "insufficient_scope"
	default:
		return http.StatusInternalServerError, ""
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", nil
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
