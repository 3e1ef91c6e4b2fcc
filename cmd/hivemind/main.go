// Command hivemind runs the multi-agent security operations coordinator.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	hmhttp "github.com/hivemind-sec/hivemind/internal/adapter/http"
	hmnats "github.com/hivemind-sec/hivemind/internal/adapter/nats"
	"github.com/hivemind-sec/hivemind/internal/adapter/postgres"
	"github.com/hivemind-sec/hivemind/internal/adapter/ristretto"
	"github.com/hivemind-sec/hivemind/internal/adapter/ws"
	"github.com/hivemind-sec/hivemind/internal/config"
	"github.com/hivemind-sec/hivemind/internal/logger"
	"github.com/hivemind-sec/hivemind/internal/middleware"
	"github.com/hivemind-sec/hivemind/internal/port/eventstore"
	"github.com/hivemind-sec/hivemind/internal/port/messagequeue"
	"github.com/hivemind-sec/hivemind/internal/resilience"
	"github.com/hivemind-sec/hivemind/internal/service"
	"github.com/hivemind-sec/hivemind/internal/telemetry"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"journal_enabled", cfg.Postgres.Enabled,
		"nats_enabled", cfg.NATS.Enabled,
	)

	ctx := context.Background()

	// --- Telemetry ---
	providers, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	// --- Infrastructure ---

	// PostgreSQL journal (optional)
	var journal eventstore.Store
	if cfg.Postgres.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected, migrations applied")

		journal = postgres.NewEventStore(pool)
	}

	// NATS (optional)
	var queue messagequeue.Queue
	if cfg.NATS.Enabled {
		q, err := hmnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := q.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()
		queue = q
	}

	// Summary cache
	cache, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	// --- Services ---
	hub := ws.NewHub()
	coord := service.NewCoordinator(&cfg.Coordinator, hub, queue, journal)
	coord.SetCache(cache, cfg.Cache.SummaryTTL)
	coord.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	coord.SetMetrics(metrics)

	coord.Start(ctx)
	defer coord.Stop()

	// --- HTTP ---
	handlers := hmhttp.NewHandlers(coord, journal, hub)

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(time.Minute, 10*time.Minute)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(hmhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(hmhttp.SecurityHeaders)
	r.Use(hmhttp.Logger)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(limiter.Handler)
	if cfg.Telemetry.Enabled {
		r.Use(telemetry.HTTPMiddleware(cfg.Logging.Service))
	}

	r.Get("/healthz", handlers.Health)
	r.Get("/ws", hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.Auth.TokenHash))
		hmhttp.MountRoutes(r, handlers)
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
