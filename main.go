package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/people-registry/internal/config"
	"github.com/msomdec/people-registry/internal/domain"
	"github.com/msomdec/people-registry/internal/handler"
	"github.com/msomdec/people-registry/internal/logging"
	"github.com/msomdec/people-registry/internal/repository/localfs"
	"github.com/msomdec/people-registry/internal/repository/sqlite"
	"github.com/msomdec/people-registry/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup(slog.LevelInfo)
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(logging.ParseLevel(cfg.LogLevel))

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migrate(context.Background(), db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	store, err := localfs.New(cfg.ImagesDir)
	if err != nil {
		slog.Error("failed to open images directory", "dir", cfg.ImagesDir, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	policyExpr := cfg.EditPolicy
	if policyExpr == "" {
		policyExpr = service.DefaultEditPolicy
	}
	policy, err := service.NewCELPolicy(policyExpr)
	if err != nil {
		slog.Error("invalid EDIT_POLICY", "error", err)
		os.Exit(1)
	}

	authService := service.NewAuthService(db.Users(), cfg.JWTSecret, cfg.BcryptCost)
	if err := authService.BootstrapAdministrators(context.Background(), cfg.AdminEmails); err != nil {
		slog.Error("failed to bootstrap administrators", "error", err)
		os.Exit(1)
	}
	imageService := service.NewImageService(store)
	personService := service.NewPersonService(db.People(), imageService, service.NewGuard(policy))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 10 sign-in attempts per key, refilling one every 6 seconds.
	limiter := service.NewAttemptLimiter(1.0/6, 10)
	go limiter.Run(ctx)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handler.NewHandler(handler.Deps{
			Auth:         authService,
			People:       personService,
			Images:       imageService,
			Limiter:      limiter,
			Metrics:      handler.NewMetrics(reg),
			CookieSecure: cfg.CookieSecure,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "edit_policy", policy.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func migrate(ctx context.Context, db domain.Database) error {
	return db.Migrate(ctx)
}
