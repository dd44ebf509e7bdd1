package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/policy-service/internal/api/http"
	"github.com/spec-kit/policy-service/internal/api/http/handlers"
	"github.com/spec-kit/policy-service/internal/auth"
	"github.com/spec-kit/policy-service/internal/config"
	"github.com/spec-kit/policy-service/internal/events"
	"github.com/spec-kit/policy-service/internal/observability"
	"github.com/spec-kit/policy-service/internal/persistence"
	"github.com/spec-kit/policy-service/internal/pricing"
	"github.com/spec-kit/policy-service/internal/repository"
	"github.com/spec-kit/policy-service/internal/repository/memory"
	"github.com/spec-kit/policy-service/internal/service"
	"github.com/spec-kit/policy-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var store repository.Store
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pool)
	} else {
		logger.Warn("running with in-memory store; data will not survive restarts")
		store = memory.NewStore()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	engine := pricing.NewEngine(cfg.Pricing.Cover)
	policyService := service.NewPolicyService(service.PolicyDependencies{
		Store:      store,
		Engine:     engine,
		BaseAmount: cfg.Pricing.BaseAmount,
		Dispatcher: dispatcher,
	})
	customerService := service.NewCustomerService(store)
	authService := service.NewAuthService(cfg.Auth, store.Agents())
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.Agents())

	notificationService := service.NewNotificationService(dispatcher, logger, redis, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Agents:         handlers.NewAgentsHandler(authService),
		Customers:      handlers.NewCustomersHandler(customerService),
		Policies:       handlers.NewPoliciesHandler(policyService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
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
