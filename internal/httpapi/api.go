package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"sentra.org/internal/auth"
	"sentra.org/internal/credstore"
	"sentra.org/internal/obs"
	"sentra.org/internal/ratelimit"
	"sentra.org/internal/task"
)

// ReadyProbe reports whether dependencies are reachable (e.g. a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Params collects the API's collaborators. All fields except ReadyProbe are
// required.
type Params struct {
	Auth       *auth.Service
	Store      credstore.Store
	Tasks      *task.Registry
	Limiter    *ratelimit.Limiter
	ReadyProbe ReadyProbe
	Version    string
}

// API is the HTTP boundary: routing, the middleware pipeline and the
// handlers backed by the auth/task core.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	store      credstore.Store
	tasks      *task.Registry
	limiter    *ratelimit.Limiter
	readyProbe ReadyProbe
	version    string
}

func New(p Params) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       p.Auth,
		store:      p.Store,
		tasks:      p.Tasks,
		limiter:    p.Limiter,
		readyProbe: p.ReadyProbe,
		version:    p.Version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)

	a.mux.HandleFunc("/v1/apikeys", a.handleAPIKeysCollection)
	a.mux.HandleFunc("/v1/apikeys/", a.handleAPIKeyResource)

	a.mux.HandleFunc("/v1/tasks", a.handleTasksCollection)
	a.mux.HandleFunc("/v1/tasks/", a.handleTaskResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler assembles the middleware pipeline around the mux. Order is fixed
// here and significant: each layer sees the response as amended by the
// layers nested inside it.
func (a *API) Handler() http.Handler {
	return Chain(
		Recover,
		SecurityHeaders,
		RequestID,
		Timing,
		obs.Instrument,
		RateLimit(a.limiter),
		a.withAuth,
	)(a.mux)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "sentra-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "sentra-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
