package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sheet2neon/internal/config"
	"github.com/JonMunkholm/sheet2neon/internal/core"
	_ "github.com/JonMunkholm/sheet2neon/internal/core/entities" // Register all entities
	"github.com/JonMunkholm/sheet2neon/internal/logging"
	"github.com/JonMunkholm/sheet2neon/internal/rules"
	"github.com/JonMunkholm/sheet2neon/internal/service"
	"github.com/JonMunkholm/sheet2neon/internal/store"
	"github.com/JonMunkholm/sheet2neon/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_backend", cfg.Database.Backend,
		"lookup_source", cfg.Pipeline.LookupSource,
		"run_max_concurrent", cfg.Run.MaxConcurrent,
		"rate_limit_per_minute", cfg.Security.RequestsPerMinute,
		"api_keys", len(cfg.Security.APIKeys),
	)

	rs, err := rules.Load(cfg.Pipeline.RulesFile)
	if err != nil {
		slog.Error("failed to load rule set", "path", cfg.Pipeline.RulesFile, "error", err)
		os.Exit(1)
	}
	if unknown := rs.UnknownEntities(core.Keys()); len(unknown) > 0 {
		slog.Warn("rule set names unknown entities", "entities", unknown)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		slog.Error("failed to create schema", "error", err)
		os.Exit(1)
	}
	slog.Info("store ready", "backend", cfg.Database.Backend, "entities", core.EntityCount())

	svc := service.New(st, service.OptionsFromConfig(cfg, rs))
	server := web.NewServer(svc, cfg)

	// Requests keep running after a signal until they drain or the shutdown
	// timeout passes; only then is their context cancelled.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	jobCtx, stopJobs := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopJobs()

	if len(cfg.Schedule.Sources) > 0 {
		sources, err := service.ParseSchedule(cfg.Schedule.Sources)
		if err != nil {
			slog.Error("invalid schedule", "error", err)
			os.Exit(1)
		}
		go svc.StartScheduler(jobCtx, service.ScheduleConfig{
			Sources:   sources,
			Interval:  cfg.Schedule.Interval,
			Retention: time.Duration(cfg.Schedule.HistoryRetentionDays) * 24 * time.Hour,
			MaxBytes:  cfg.Run.MaxFileSize,
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-jobCtx.Done()

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := svc.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for runs to complete", "active", status.Active)
			if err := svc.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			} else {
				slog.Info("all runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		cancelRequests()
	}()

	if err := server.Start(baseCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		stopJobs()
	}
	<-done
	slog.Info("server stopped")
}
