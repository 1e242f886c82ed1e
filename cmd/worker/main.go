package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pgrabow/notify-hub/internal/config"
	"github.com/pgrabow/notify-hub/internal/fanout"
	"github.com/pgrabow/notify-hub/internal/handler"
	"github.com/pgrabow/notify-hub/internal/infra/postgresql"
	"github.com/pgrabow/notify-hub/internal/infra/postgresql/migrations"
	infraredis "github.com/pgrabow/notify-hub/internal/infra/redis"
	"github.com/pgrabow/notify-hub/internal/observability"
	"github.com/pgrabow/notify-hub/internal/provider"
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

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

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

	eventConsumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)
	consumerService, err := service.NewConsumerService(notificationService, eventConsumer, cfg.WorkerConcurrency, logger, metrics)
	if err != nil {
		logger.Fatal("consumer service init failed", zap.Error(err))
	}

	forwarder, err := provider.NewWebhookForwarder(cfg.RelayWebhookURL)
	if err != nil {
		logger.Fatal("webhook forwarder init failed", zap.Error(err))
	}

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter init failed", zap.Error(err))
	}

	relayConsumer := queue.NewRabbitMQConsumer(rabbit, 1, logger)
	relayService, err := service.NewRelayService(relayConsumer, forwarder, rateLimiter, logger, metrics)
	if err != nil {
		logger.Fatal("relay service init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumerService.Start(groupCtx)
	})
	g.Go(func() error {
		return relayService.Start(groupCtx)
	})
	g.Go(func() error {
		logger.Info("worker admin endpoint started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down worker")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	logger.Info("worker started", zap.Int("concurrency", cfg.WorkerConcurrency))
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}

	logger.Info("worker stopped")
}
