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

	"backoffice.games/internal/auth"
	"backoffice.games/internal/config"
	"backoffice.games/internal/housekeeping"
	"backoffice.games/internal/httpapi"
	"backoffice.games/internal/obs"
	"backoffice.games/internal/store/pg"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Postgres when a DSN is configured; in-memory store for local runs.
	var (
		store auth.Store
		db    *sql.DB
	)
	if cfg.PostgresDSN != "" {
		pgStore, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		db = pgStore.DB()
		defer pgStore.Close()
	} else {
		log.Println("BACKOFFICE_PG_DSN not set, using in-memory store")
		store = auth.NewMemStore()
	}

	svc, err := auth.NewService(store,
		auth.WithSigningKey(cfg.JWT.SigningKey),
		auth.WithIssuer(cfg.JWT.Issuer),
		auth.WithAudience(cfg.JWT.Audience),
		auth.WithAccessTTL(cfg.JWT.AccessTTL),
		auth.WithRefreshTTL(cfg.JWT.RefreshTTL),
		auth.WithPurgeGrace(cfg.Sweep.PurgeGrace),
	)
	if err != nil {
		log.Fatalf("build auth service: %v", err)
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = svc.Bootstrap(bootCtx, auth.BootstrapConfig{
		SuperAdminEmail:    cfg.Bootstrap.SuperAdminEmail,
		SuperAdminPassword: cfg.Bootstrap.SuperAdminPassword,
		SuperAdminName:     cfg.Bootstrap.SuperAdminName,
	})
	bootCancel()
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	sweeper := housekeeping.NewSweeper(svc, cfg.Sweep.Schedule)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("start housekeeping: %v", err)
	}
	defer sweeper.Stop()

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting backoffice-api %s on %s", version, srv.Addr)

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
	log.Println("Stopped")
}
