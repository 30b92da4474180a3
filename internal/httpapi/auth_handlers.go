package httpapi

import (
	"net/http"
	"strings"
	"time"

	"sentra.org/internal/audit"
	"sentra.org/internal/auth"
	"sentra.org/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	Scopes           []string  `json:"scopes,omitempty"`
}

type identityResponse struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name,omitempty"`
	Roles    []string `json:"roles"`
	Scopes   []string `json:"scopes"`
	Active   bool     `json:"active"`
}

func pairResponse(pair auth.TokenPair, identity auth.Identity) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "bearer",
		ExpiresAt:        pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Scopes:           identity.Scopes,
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	pair, identity, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.ObserveAuthAttempt("login", "rejected")
		status, reason := rejectionStatus(err)
		if status == http.StatusInternalServerError {
			writeError(w, r, status, "login failed")
			return
		}
		writeReason(w, r, status, reason, "invalid email or password")
		return
	}

	obs.ObserveAuthAttempt("login", "ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": identity.ID,
		"email":   identity.Email,
	})
	writeJSON(w, http.StatusOK, pairResponse(pair, identity))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, identity, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		obs.ObserveAuthAttempt("refresh", "rejected")
		status, reason := rejectionStatus(err)
		if status == http.StatusInternalServerError {
			writeError(w, r, status, "refresh failed")
			return
		}
		writeReason(w, r, status, reason, "invalid refresh token")
		return
	}

	obs.ObserveAuthAttempt("refresh", "ok")
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id": identity.ID,
	})
	writeJSON(w, http.StatusOK, pairResponse(pair, identity))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := a.requireIdentity(w, r)
	if !ok {
		return
	}

	// API-key requests carry no token to revoke; logout is a no-op there.
	if raw, ok := auth.TokenFromContext(r.Context()); ok {
		if err := a.auth.Logout(r.Context(), raw); err != nil {
			status, reason := rejectionStatus(err)
			writeReason(w, r, status, reason, "logout failed")
			return
		}
	}

	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"user_id": identity.ID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := a.requireIdentity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{
		ID:       identity.ID,
		Email:    identity.Email,
		FullName: identity.FullName,
		Roles:    identity.Roles,
		Scopes:   identity.Scopes,
		Active:   identity.Active,
	})
}
