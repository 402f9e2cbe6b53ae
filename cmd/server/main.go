package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/swiftel/request-handler/internal/app"
	"github.com/swiftel/request-handler/internal/app/httpapi"
	"github.com/swiftel/request-handler/internal/app/metrics"
	"github.com/swiftel/request-handler/internal/app/storage/postgres"
	"github.com/swiftel/request-handler/internal/auth"
	"github.com/swiftel/request-handler/internal/config"
	"github.com/swiftel/request-handler/internal/middleware"
	"github.com/swiftel/request-handler/internal/platform/migrations"
	"github.com/swiftel/request-handler/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	log := logger.New(cfg.Logging)

	var stores app.Stores
	if cfg.Database.DSN != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		if err := migrations.Apply(db.DB); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}

		pg := postgres.New(db)
		stores = app.Stores{
			Requests:      pg,
			Decisions:     pg,
			Notifications: pg,
			Users:         pg,
			Tx:            pg,
		}
		log.Info("using postgres storage")
	} else {
		log.Info("no DATABASE_URL set, using in-memory storage")
	}

	issuer := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.TTL, cfg.Auth.RememberTTL)

	application, err := app.New(stores, issuer, log, app.Options{
		RelayInterval: cfg.Relay.Interval,
	})
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	done := make(chan struct{})
	defer close(done)

	authMW := middleware.NewAuthMiddleware(issuer, log, []string{
		"/auth/register",
		"/auth/login",
		"/healthz",
		"/metrics",
		"/ws",
	})
	corsMW := middleware.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	limiter.StartCleanup(time.Minute, done)

	var handler http.Handler = httpapi.NewHandler(application)
	handler = limiter.Handler(handler)
	handler = authMW.Handler(handler)
	handler = metrics.InstrumentHandler(handler)
	handler = corsMW.Handler(handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("application shutdown")
	}
	return nil
}
