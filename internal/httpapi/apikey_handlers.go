package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"sentra.org/internal/audit"
	"sentra.org/internal/credstore"
)

type createAPIKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
	TTL    string   `json:"ttl,omitempty"`
}

type apiKeyResponse struct {
	Key       string     `json:"key"`
	Name      string     `json:"name"`
	OwnerID   string     `json:"owner_id"`
	Scopes    []string   `json:"scopes"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (a *API) handleAPIKeysCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createAPIKey(w, r)
	case http.MethodGet:
		a.listAPIKeys(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAPIKeyResource(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/v1/apikeys/")
	if key == "" || strings.Contains(key, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodDelete:
		a.revokeAPIKey(w, r, key)
	default:
		methodNotAllowed(w, r, http.MethodDelete)
	}
}

func (a *API) createAPIKey(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.requireScope(w, r, "admin")
	if !ok {
		return
	}

	var req createAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Scopes) == 0 {
		writeError(w, r, http.StatusBadRequest, "at least one scope is required")
		return
	}

	key := &credstore.APIKey{
		OwnerID: identity.ID,
		Name:    strings.TrimSpace(req.Name),
		Scopes:  req.Scopes,
		Active:  true,
	}
	if strings.TrimSpace(req.TTL) != "" {
		ttl, err := time.ParseDuration(req.TTL)
		if err != nil || ttl <= 0 {
			writeError(w, r, http.StatusBadRequest, "ttl must be a positive duration")
			return
		}
		exp := time.Now().UTC().Add(ttl)
		key.ExpiresAt = &exp
	}

	if err := a.store.CreateAPIKey(r.Context(), key); err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not create api key")
		return
	}

	_ = audit.LogEvent(r.Context(), "apikey.create", map[string]any{
		"key_name": key.Name,
		"owner_id": key.OwnerID,
	})
	w.Header().Set("Location", "/v1/apikeys/"+key.Key)
	// The only response that carries the full key value.
	writeJSON(w, http.StatusCreated, apiKeyView(key, false))
}

func (a *API) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireScope(w, r, "admin"); !ok {
		return
	}
	keys, err := a.store.ListAPIKeys(r.Context(), "")
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not list api keys")
		return
	}
	out := make([]apiKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, apiKeyView(k, true))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (a *API) revokeAPIKey(w http.ResponseWriter, r *http.Request, key string) {
	if _, ok := a.requireScope(w, r, "admin"); !ok {
		return
	}
	if err := a.store.RevokeAPIKey(r.Context(), key); err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "api key not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "could not revoke api key")
		return
	}
	_ = audit.LogEvent(r.Context(), "apikey.revoke", map[string]any{
		"key": maskKey(key),
	})
	w.WriteHeader(http.StatusNoContent)
}

func apiKeyView(k *credstore.APIKey, masked bool) apiKeyResponse {
	view := apiKeyResponse{
		Key:       k.Key,
		Name:      k.Name,
		OwnerID:   k.OwnerID,
		Scopes:    k.Scopes,
		Active:    k.Active,
		CreatedAt: k.CreatedAt,
		ExpiresAt: k.ExpiresAt,
	}
	if masked {
		view.Key = maskKey(k.Key)
	}
	return view
}

// maskKey keeps enough of the key for an operator to recognize it in a
// listing without exposing the credential.
func maskKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + strings.Repeat("*", 4)
}
