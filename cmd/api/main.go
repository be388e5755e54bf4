// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trailnetzero/community-api/internal/access"
	"github.com/trailnetzero/community-api/internal/admin"
	"github.com/trailnetzero/community-api/internal/assistant"
	"github.com/trailnetzero/community-api/internal/auth"
	"github.com/trailnetzero/community-api/internal/billing"
	"github.com/trailnetzero/community-api/internal/config"
	"github.com/trailnetzero/community-api/internal/core"
	"github.com/trailnetzero/community-api/internal/forum"
	"github.com/trailnetzero/community-api/internal/health"
	"github.com/trailnetzero/community-api/internal/middleware"
	"github.com/trailnetzero/community-api/internal/realtime"
	"github.com/trailnetzero/community-api/internal/resource"
	"github.com/trailnetzero/community-api/internal/server"
	"github.com/trailnetzero/community-api/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo, cfg.Membership.TrialLength)
	userHandler := user.NewHandler(userSvc)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(authRepo, jwtManager, userSvc, redis.Client)
	authHandler := auth.NewHandler(authSvc)

	billingRepo := billing.NewRepository(db.DB)
	billingSvc := billing.NewService(
		billingRepo,
		billing.NewStripeClient(cfg.Stripe),
		logger,
	)
	billingHandler := billing.NewHandler(
		billingSvc,
		cfg.Stripe,
		cfg.Membership.JoinPath,
		logger,
	)

	checker := access.NewChecker(userSvc, billingSvc)
	memberGate := access.RequireMember(checker, access.GateConfig{
		SignInPath: cfg.Membership.SignInPath,
		JoinPath:   cfg.Membership.JoinPath,
	})

	hub := realtime.NewHub(cfg.Forum.SubscriberQueue)
	bridge := realtime.NewBridge(redis.Client, hub, logger)

	forumRepo := forum.NewRepository(db.DB)
	forumSvc := forum.NewService(forumRepo, bridge, cfg.Forum, logger)
	forumHandler := forum.NewHandler(forumSvc, hub)

	resourceRepo := resource.NewRepository(db.DB)
	resourceSvc := resource.NewService(resourceRepo)
	resourceHandler := resource.NewHandler(resourceSvc)

	assistantSvc := assistant.NewService(
		assistant.NewOpenAIClient(cfg.Assistant),
		cfg.Assistant,
		logger,
	)
	assistantHandler := assistant.NewHandler(assistantSvc)

	healthHandler := health.NewHandler(db, redis)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Flags:      forumSvc,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(jwtManager)
	optionalAuth := middleware.OptionalAuth(jwtManager)
	adminOnly := middleware.RequireAdmin

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		billingHandler.RegisterRoutes(r, authenticator)

		forumHandler.RegisterRoutes(r, optionalAuth, authenticator, memberGate)
		forumHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		resourceHandler.RegisterRoutes(r, authenticator, memberGate)
		resourceHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		assistantHandler.RegisterRoutes(r, authenticator, adminOnly)

		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	bridgeCtx, stopBridge := context.WithCancel(ctx)
	defer stopBridge()
	go func() {
		if err := bridge.Run(bridgeCtx); err != nil &&
			bridgeCtx.Err() == nil {
			logger.Error("realtime bridge stopped", "error", err)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	stopBridge()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
