package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/roster/pkg/api"
	"github.com/platinummonkey/roster/pkg/apikeys"
	"github.com/platinummonkey/roster/pkg/async"
	"github.com/platinummonkey/roster/pkg/auth"
	"github.com/platinummonkey/roster/pkg/config"
	"github.com/platinummonkey/roster/pkg/jobs"
	"github.com/platinummonkey/roster/pkg/members"
	"github.com/platinummonkey/roster/pkg/middleware"
	"github.com/platinummonkey/roster/pkg/observability"
	"github.com/platinummonkey/roster/pkg/sessions"
	"github.com/platinummonkey/roster/pkg/sso"
	"github.com/platinummonkey/roster/pkg/storage"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	runCleanupOnce = flag.Bool("run-cleanup", false, "Delete expired sessions once and exit")
	migrateOnly    = flag.Bool("migrate-only", false, "Apply database migrations and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		var cfgErr *auth.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", cfgErr)
		} else {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		}
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("roster exited with error")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) (err error) {
	ctx := context.Background()

	logger.WithFields(logrus.Fields{
		"env":     cfg.Env,
		"version": version,
	}).Info("Starting roster")

	owned := newResources(logger)
	defer func() {
		if releaseErr := owned.release(cfg.Server.ShutdownTimeout); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		Environment:    cfg.Env,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	owned.add("opentelemetry", providers.Shutdown)

	db, err := storage.OpenPostgres(ctx, storage.ConnectionConfig{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	})
	if err != nil {
		return err
	}
	owned.add("database", closeDB(db))
	logger.Info("Connected to database")

	if err := storage.RunMigrations(ctx, db, logger); err != nil {
		return err
	}
	if *migrateOnly {
		logger.Info("Migrations applied")
		return nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "roster"),
	)
	metrics := observability.NewMetrics(registry)

	directoryRepo := members.NewPostgresRepository(db)
	sessionStore := sessions.NewStore(sessions.NewPostgresRepository(db), logger)
	runner := async.NewRunner(logger)
	keyStore := apikeys.NewStore(apikeys.NewPostgresRepository(db), logger, apikeys.WithRunner(runner))

	scheduler, err := jobs.NewScheduler(cfg.Jobs.CleanupSchedule, sessionStore, metrics, logger)
	if err != nil {
		return err
	}

	if *runCleanupOnce {
		removed, err := scheduler.RunCleanup(ctx)
		if err != nil {
			return err
		}
		logger.WithField("removed", removed).Info("Cleanup completed")
		return nil
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = storage.OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		owned.add("redis", func(context.Context) error {
			return redisClient.Close()
		})
		logger.Info("Connected to Redis")
	}

	githubClient := &http.Client{
		Timeout:   cfg.GitHub.HTTPTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	provider, err := sso.NewGitHubProvider(cfg.GitHub, githubClient, logger)
	if err != nil {
		return err
	}

	limiterCtx, stopLimiters := context.WithCancel(ctx)
	defer stopLimiters()
	shared := buildSharedState(limiterCtx, redisClient, logger)

	server := api.NewServer(
		api.Config{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			ServiceName:    cfg.Observability.OTelServiceName,
			TrustProxy:     cfg.Server.TrustProxy,
		},
		api.Dependencies{
			Sessions: sessionStore,
			APIKeys:  keyStore,
			Members:  members.NewDirectory(directoryRepo, logger),
			Provider: provider,
			States:   shared.states,
			Cookies: sso.CookieConfig{
				Domain:      cfg.Server.Hostname,
				Secure:      !cfg.IsDevelopment(),
				FrontendURL: cfg.Server.FrontendURL,
			},
			RateLimit:   shared.rateLimit,
			KeyAttempts: shared.keyAttempts,
			Health:      observability.NewHealthChecker(db, redisClient, version),
			Metrics:     metrics,
			Gatherer:    registry,
			Logger:      logger,
		},
	)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("cleanup scheduler", scheduler.Stop)
	shutdown.RegisterShutdownFunc("api key updates", keyStore.Wait)
	owned.handOff(shutdown)

	scheduler.Start()
	logger.WithField("schedule", cfg.Jobs.CleanupSchedule).Info("Session cleanup scheduled")

	serverErr := make(chan error, 1)
	go func() {
		defer observability.RecoverPanic(logger, "http server")
		logger.WithField("addr", httpServer.Addr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	shutdownDone := make(chan error, 1)
	go func() {
		shutdownDone <- shutdown.WaitForShutdown()
	}()

	select {
	case err := <-serverErr:
		stopLimiters()
		if shutdownErr := shutdown.Shutdown(); shutdownErr != nil {
			logger.WithError(shutdownErr).Error("shutdown after server failure")
		}
		return fmt.Errorf("HTTP server failed: %w", err)
	case err := <-shutdownDone:
		stopLimiters()
		if err != nil {
			return err
		}
	}

	logger.Info("roster stopped")
	return nil
}

// sharedState is the state that must be shared by replicas when Redis is
// available
type sharedState struct {
	states      sso.StateStore
	rateLimit   *middleware.RateLimitMiddleware
	keyAttempts middleware.AttemptLimiter
}

// buildSharedState picks the login state store and rate limiters. Redis is
// shared across replicas; without it everything falls back to process memory.
func buildSharedState(ctx context.Context, client *redis.Client, logger logrus.FieldLogger) sharedState {
	if client != nil {
		return sharedState{
			states: sso.NewRedisStateStore(client, ""),
			rateLimit: middleware.NewRateLimitMiddleware(
				middleware.NewDistributedRateLimiter(client, middleware.MemberRateLimitConfig(), "roster:ratelimit:member"),
				middleware.NewDistributedRateLimiter(client, middleware.BotRateLimitConfig(), "roster:ratelimit:bot"),
				middleware.NewDistributedRateLimiter(client, middleware.AnonymousRateLimitConfig(), "roster:ratelimit:anonymous"),
				logger,
			),
			keyAttempts: middleware.NewDistributedRateLimiter(client, middleware.KeyScanRateLimitConfig(), "roster:ratelimit:keyscan"),
		}
	}

	logger.Warn("ROOT_REDIS_URL not set, login state and rate limits are per process")

	member := middleware.NewRateLimiter(middleware.MemberRateLimitConfig())
	bot := middleware.NewRateLimiter(middleware.BotRateLimitConfig())
	anonymous := middleware.NewRateLimiter(middleware.AnonymousRateLimitConfig())
	keyAttempts := middleware.NewRateLimiter(middleware.KeyScanRateLimitConfig())
	for _, limiter := range []*middleware.RateLimiter{member, bot, anonymous, keyAttempts} {
		limiter.StartCleanup(ctx)
	}

	return sharedState{
		states:      sso.NewMemoryStateStore(10000, sso.StateTTL),
		rateLimit:   middleware.NewRateLimitMiddleware(member, bot, anonymous, logger),
		keyAttempts: keyAttempts,
	}
}

func closeDB(db *sql.DB) observability.ShutdownFunc {
	return func(context.Context) error {
		return db.Close()
	}
}
