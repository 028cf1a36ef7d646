// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/slot-booking/internal/config"
	"github.com/Shivanand-hulikatti/slot-booking/internal/database"
	"github.com/Shivanand-hulikatti/slot-booking/internal/handler"
	"github.com/Shivanand-hulikatti/slot-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/slot-booking/internal/ratelimit"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository"
	"github.com/Shivanand-hulikatti/slot-booking/internal/repository/memory"
	"github.com/Shivanand-hulikatti/slot-booking/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "slot-booking: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Storage ────────────────────────────────────────────────────────
	var (
		store repository.Storage
		ping  handler.Pinger
	)
	switch cfg.Storage {
	case config.DriverMemory:
		store = memory.New()
		logger.Warn().Msg("using in-memory storage, data is lost on restart")
	default:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		logger.Info().Msg("connected to postgres")

		if cfg.Database.Migrate {
			applied, err := database.Migrate(ctx, pool)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Strs("applied", applied).Msg("migrations up to date")
		}
		store = repository.NewPostgres(pool)
		ping = pool.Ping
	}

	// ── 2. Metrics ────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ── 3. Rate limiting ──────────────────────────────────────────────────
	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		settings := ratelimit.SettingsFrom(cfg.RateLimit)
		rdb, err := ratelimit.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, rate limiting per process")
			limiter = ratelimit.NewLocal(settings)
		} else {
			defer rdb.Close()
			limiter = ratelimit.NewRedis(rdb, settings)
		}
	}

	// ── 4. Wire up layers ────────────────────────────────────────────────
	opts := []service.Option{service.WithLogger(logger), service.WithMetrics(m)}
	router := handler.NewRouter(handler.Deps{
		Events:       service.NewEventService(store, opts...),
		Reservations: service.NewReservationService(store, opts...),
		Logger:       logger,
		Metrics:      m,
		Gatherer:     reg,
		Limiter:      limiter,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		Ping:         ping,
	})

	// ── 5. Serve until signalled ─────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout.Duration,
		WriteTimeout: cfg.HTTP.WriteTimeout.Duration,
		IdleTimeout:  cfg.HTTP.IdleTimeout.Duration,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var logger zerolog.Logger
	if cfg.IsProduction() {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Str("service", "slot-booking").Logger()
}
