package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"sentra.org/internal/auth"
	"sentra.org/internal/config"
	"sentra.org/internal/credstore"
	"sentra.org/internal/httpapi"
	"sentra.org/internal/obs"
	"sentra.org/internal/ratelimit"
	"sentra.org/internal/task"
	"sentra.org/internal/token"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Credential backend: Postgres when a DSN is configured, otherwise the
	// in-memory store seeded with the demo accounts.
	var (
		store credstore.Store
		db    *sql.DB
	)
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = credstore.NewPGStore(db)
	} else {
		mem := credstore.NewMemory()
		if err := credstore.Seed(context.Background(), mem); err != nil {
			log.Fatalf("seed store: %v", err)
		}
		store = mem
	}

	codec, err := token.NewCodec(cfg.AuthSecret)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	authSvc, err := auth.NewService(store, codec,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
		auth.WithLoginThrottle(cfg.LoginRate, cfg.LoginBurst),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	limiter := ratelimit.New(cfg.RateWindow, cfg.RateMax)
	defer limiter.Close()

	registry := task.New(cfg.TaskWorkers, task.WithRetention(cfg.TaskRetention))

	api := httpapi.New(httpapi.Params{
		Auth:       authSvc,
		Store:      store,
		Tasks:      registry,
		Limiter:    limiter,
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Version:    version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting sentra-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if err := registry.Close(); err != nil {
		log.Printf("task registry: %v", err)
	}
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
