package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/shiftaiot/iot-platform/internal/api/http"
	"github.com/shiftaiot/iot-platform/internal/api/http/handlers"
	"github.com/shiftaiot/iot-platform/internal/auth"
	"github.com/shiftaiot/iot-platform/internal/config"
	"github.com/shiftaiot/iot-platform/internal/events"
	"github.com/shiftaiot/iot-platform/internal/observability"
	"github.com/shiftaiot/iot-platform/internal/persistence"
	"github.com/shiftaiot/iot-platform/internal/repository"
	"github.com/shiftaiot/iot-platform/internal/service"
	"github.com/shiftaiot/iot-platform/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	keys, err := auth.KeyMaterialFromConfig(cfg.Auth)
	if err != nil {
		logger.Fatal("invalid auth configuration", zap.Error(err))
	}
	if keys.Weak() {
		logger.Warn("JWT_SECRET is shorter than recommended", zap.Int("min_bytes", auth.MinSecretBytes))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(func(event events.Event, err error) {
		logger.Warn("event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	})
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	codec := auth.NewCodec(nil)
	var verifierOpts []auth.VerifierOption
	if cfg.Auth.RevocationEnabled {
		verifierOpts = append(verifierOpts, auth.WithDenylist(auth.NewRedisDenylist(redis.Client)))
		logger.Info("token revocation enabled")
	}
	issuer := auth.NewTokenIssuer(keys, codec, logger.Named("issuer"), metrics)
	verifier := auth.NewTokenVerifier(keys, codec, logger.Named("verifier"), verifierOpts...)

	userRepo := repository.NewUserRepository(pg.PoolHandle())
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   userRepo,
		Issuer:     issuer,
		Verifier:   verifier,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	gate := auth.NewRequestGate(verifier, userRepo, logger.Named("gate"),
		auth.WithPublicPaths(cfg.Auth.ExtraPublicPaths...),
		auth.WithGateMetrics(metrics),
	)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:    handlers.NewAuthHandler(authService),
		Users:   handlers.NewUsersHandler(authService),
		Gate:    gate,
		Metrics: metrics,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
