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

	"github.com/learnsphere/learnsphere-backend/internal/notifications"
	"github.com/learnsphere/learnsphere-backend/internal/queue"
	"github.com/learnsphere/learnsphere-backend/internal/users"
	"github.com/learnsphere/learnsphere-backend/pkg/config"
	"github.com/learnsphere/learnsphere-backend/pkg/db"
	"github.com/learnsphere/learnsphere-backend/pkg/enums"
	"github.com/learnsphere/learnsphere-backend/pkg/logger"
	"github.com/learnsphere/learnsphere-backend/pkg/mailer"
	"github.com/learnsphere/learnsphere-backend/pkg/metrics"
	"github.com/learnsphere/learnsphere-backend/pkg/migrate"
	"github.com/learnsphere/learnsphere-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	// The job queue shares the redis connection and owns its shutdown.
	jobQueue := queue.NewRedis(redisClient.Raw(), cfg.Queue)
	defer func() {
		if err := jobQueue.Close(); err != nil {
			logg.Error(ctx, "error closing job queue", err)
		}
	}()

	producer, err := notifications.NewProducer(jobQueue, logg)
	requireResource(ctx, logg, "producer", err)

	workerMetrics := metrics.NewWorkerMetrics(prometheus.DefaultRegisterer)

	worker, err := notifications.NewWorker(notifications.WorkerParams{
		Queue:        jobQueue,
		Repo:         notifications.NewRepository(dbClient.DB()),
		Users:        users.NewRepository(dbClient.DB()),
		Channels:     buildChannels(cfg, logg),
		Fallback:     mustLogChannel("generic", logg),
		Metrics:      workerMetrics,
		Logger:       logg,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
	})
	requireResource(ctx, logg, "notification worker", err)

	service, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		Producer: producer,
		Worker:   worker,
		Metrics:  workerMetrics,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"concurrency": cfg.Worker.Concurrency,
	})
	logg.Info(runCtx, "starting notification worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "worker shutting down gracefully")
}

// buildChannels wires a delivery channel per notification type. Email falls
// back to a log channel when SMTP is not configured so local environments can
// run the full pipeline.
func buildChannels(cfg *config.Config, logg *logger.Logger) map[enums.NotificationType]notifications.Channel {
	channels := map[enums.NotificationType]notifications.Channel{}

	if cfg.Email.Host != "" {
		sender, err := mailer.New(cfg.Email)
		if err != nil {
			logg.Error(context.Background(), "failed to build mailer, email delivery downgraded to logging", err)
		} else {
			email, err := notifications.NewEmailChannel(sender, logg)
			if err == nil {
				channels[enums.NotificationTypeEmail] = email
			}
		}
	}
	if _, ok := channels[enums.NotificationTypeEmail]; !ok {
		channels[enums.NotificationTypeEmail] = mustLogChannel("email", logg)
	}

	channels[enums.NotificationTypeSMS] = mustLogChannel("sms", logg)
	channels[enums.NotificationTypePush] = mustLogChannel("push", logg)
	return channels
}

func mustLogChannel(medium string, logg *logger.Logger) notifications.Channel {
	channel, err := notifications.NewLogChannel(medium, logg)
	if err != nil {
		panic(fmt.Sprintf("log channel %q: %v", medium, err))
	}
	return channel
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
