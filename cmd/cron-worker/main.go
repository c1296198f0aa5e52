package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/learnsphere/learnsphere-backend/internal/cron"
	"github.com/learnsphere/learnsphere-backend/internal/notifications"
	"github.com/learnsphere/learnsphere-backend/internal/queue"
	"github.com/learnsphere/learnsphere-backend/pkg/config"
	"github.com/learnsphere/learnsphere-backend/pkg/db"
	"github.com/learnsphere/learnsphere-backend/pkg/logger"
	"github.com/learnsphere/learnsphere-backend/pkg/metrics"
	"github.com/learnsphere/learnsphere-backend/pkg/migrate"
	"github.com/learnsphere/learnsphere-backend/pkg/redis"
)

const lockKeyFormat = "ls:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	// The job queue shares the redis connection and owns its shutdown.
	jobQueue := queue.NewRedis(redisClient.Raw(), cfg.Queue)
	defer func() {
		if err := jobQueue.Close(); err != nil {
			logg.Error(context.Background(), "error closing job queue", err)
		}
	}()

	producer, err := notifications.NewProducer(jobQueue, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create producer", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Retention.NotificationDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	queueCleanup, err := cron.NewQueueCleanupJob(cron.QueueCleanupJobParams{
		Logger:   logg,
		Producer: producer,
		MaxAge:   cfg.Retention.QueueMaxAge,
		Limit:    cfg.Retention.QueueCleanLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create queue cleanup job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(notificationCleanup, queueCleanup)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
