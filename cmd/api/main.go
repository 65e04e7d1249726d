// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Yomira identity HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Build security primitives, stores and the notifier.
//  7. Wire services, handlers and the cleanup sweeper.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
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

	"github.com/taibuivan/yomira-identity/internal/api"
	"github.com/taibuivan/yomira-identity/internal/platform/clock"
	"github.com/taibuivan/yomira-identity/internal/platform/config"
	"github.com/taibuivan/yomira-identity/internal/platform/constants"
	"github.com/taibuivan/yomira-identity/internal/platform/kafka"
	"github.com/taibuivan/yomira-identity/internal/platform/migration"
	pgstore "github.com/taibuivan/yomira-identity/internal/platform/postgres"
	redisstore "github.com/taibuivan/yomira-identity/internal/platform/redis"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/platform/throttle"
	"github.com/taibuivan/yomira-identity/internal/users/account"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
	"github.com/taibuivan/yomira-identity/internal/users/notify"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("notifier", cfg.Notifier),
		slog.Bool("refresh_rotation", cfg.RefreshTokenRotation),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Lives until shutdown; owns background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg, log), "run migrations")

	// ── 6. Security & Storage ─────────────────────────────────────────────
	systemClock := clock.System{}

	hasher, err := sec.NewPasswordHasher(cfg.BcryptCost)
	must(log, err, "initialize password hasher")

	tokenCodec, err := sec.NewTokenCodec(cfg.JWTSecret, cfg.JWTIssuer, systemClock)
	must(log, err, "initialize token codec")

	transactor := pgstore.NewTransactor(pool)
	userRepository := auth.NewUserRepository(pool)
	refreshRepository := auth.NewRefreshTokenRepository(pool)

	refreshTokens := auth.NewRefreshTokenStore(refreshRepository, userRepository, systemClock, cfg.RefreshTokenTTL)
	ephemeralTokens := auth.NewEphemeralTokenIssuer(userRepository, systemClock, cfg.ResetTokenTTL, cfg.VerificationTokenTTL)

	// ── 7. Notifications ──────────────────────────────────────────────────
	var notifier auth.Notifier = notify.NewLogNotifier(log, cfg.FrontendURL)
	var checkBroker api.Check

	if cfg.Notifier == config.NotifierKafka {
		producer := kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
		defer func() {
			log.Info("closing_kafka_producer")
			if cerr := producer.Close(); cerr != nil {
				log.Error("kafka_close_failed", slog.Any("error", cerr))
			}
		}()

		notifier = notify.NewKafkaNotifier(producer, cfg.KafkaTopicPrefix, cfg.FrontendURL, systemClock)
		checkBroker = producer.Ping
	}

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	authService := auth.NewService(auth.Dependencies{
		Users:         userRepository,
		RefreshTokens: refreshTokens,
		Ephemeral:     ephemeralTokens,
		Hasher:        hasher,
		Tokens:        tokenCodec,
		Notifier:      notifier,
		Transactor:    transactor,
		Clock:         systemClock,
	}, auth.Options{
		AccessTokenTTL:      cfg.AccessTokenTTL,
		RotateRefreshTokens: cfg.RefreshTokenRotation,
	})

	accountService := account.NewService(account.Dependencies{
		Users:      userRepository,
		Sessions:   refreshTokens,
		Hasher:     hasher,
		Transactor: transactor,
		Clock:      systemClock,
	})

	limiter := throttle.NewLimiter(rdb, cfg.ThrottleLimit, cfg.ThrottleWindow)

	// Expired refresh, reset and verification tokens are swept in the background.
	sweeper := auth.NewSweeper(authService, cfg.CleanupInterval, log)
	go sweeper.Run(appCtx)

	// ── 9. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
		CheckCache: func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		},
		CheckBroker: checkBroker,
	}, log)

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, limiter),
		Users:     account.NewHandler(accountService),
	}

	server := api.NewServer(appCtx, cfg, log, tokenCodec, handlers)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	// Stop the sweeper and the rate limiter janitor before draining requests.
	appCancel()

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting_down_server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// newLogger builds the process-wide JSON logger tagged with the app name.
func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned
// and handled explicitly.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
