package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/pgrabow/notify-hub/internal/config"
	"github.com/pgrabow/notify-hub/internal/fanout"
	"github.com/pgrabow/notify-hub/internal/handler"
	"github.com/pgrabow/notify-hub/internal/infra/postgresql"
	"github.com/pgrabow/notify-hub/internal/infra/postgresql/migrations"
	"github.com/pgrabow/notify-hub/internal/observability"
	"github.com/pgrabow/notify-hub/internal/queue"
	"github.com/pgrabow/notify-hub/internal/repository"
	"github.com/pgrabow/notify-hub/internal/service"
	"github.com/pgrabow/notify-hub/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close()

	metrics := observability.NewMetrics()

	publisher := queue.NewRabbitMQPublisher(rabbit)
	dispatcher := fanout.NewDispatcher(publisher, cfg.PublishTimeout(), logger, metrics)

	repo := repository.NewGormNotificationRepo(db)
	notificationService, err := service.NewNotificationService(repo, dispatcher, cfg.StorageTimeout(), logger, metrics)
	if err != nil {
		logger.Fatal("notification service init failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, nil)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterNotificationRoutes(app, notificationService, cfg.JWTSecret); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Info("shutting down api")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("api started", zap.Int("port", cfg.APIPort))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
