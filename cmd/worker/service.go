package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnsphere/learnsphere-backend/internal/notifications"
	"github.com/learnsphere/learnsphere-backend/internal/queue"
	"github.com/learnsphere/learnsphere-backend/pkg/config"
	"github.com/learnsphere/learnsphere-backend/pkg/db"
	"github.com/learnsphere/learnsphere-backend/pkg/logger"
	"github.com/learnsphere/learnsphere-backend/pkg/metrics"
	"github.com/learnsphere/learnsphere-backend/pkg/redis"
)

const statsInterval = 30 * time.Second

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Producer *notifications.Producer
	Worker   *notifications.Worker
	Metrics  *metrics.WorkerMetrics
}

type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	db       *db.Client
	redis    *redis.Client
	producer *notifications.Producer
	worker   *notifications.Worker
	metrics  *metrics.WorkerMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.Producer == nil {
		return nil, errors.New("producer is required")
	}
	if params.Worker == nil {
		return nil, errors.New("worker is required")
	}

	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		db:       params.DB,
		redis:    params.Redis,
		producer: params.Producer,
		worker:   params.Worker,
		metrics:  params.Metrics,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.worker.Run(ctx)
	}()

	return s.supervise(ctx, errCh)
}

// supervise blocks until the consumer goroutine exits. On shutdown it waits
// for the consumer to drain its in-flight slots before returning, so callers
// can safely release shared resources afterwards.
func (s *Service) supervise(ctx context.Context, errCh <-chan error) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled, draining in-flight jobs")
			if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "consumer stopped unexpectedly", err)
				return err
			}
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "consumer stopped unexpectedly", err)
				return err
			}
			return err
		case <-ticker.C:
			s.reportQueueDepth(ctx)
		}
	}
}

// reportQueueDepth refreshes the per-state gauge. A failed poll is logged and
// skipped; the next tick retries.
func (s *Service) reportQueueDepth(ctx context.Context) {
	stats, err := s.producer.GetQueueStats(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "queue stats poll failed")
		return
	}
	s.metrics.SetQueueDepth(string(queue.StateWaiting), stats.Waiting)
	s.metrics.SetQueueDepth(string(queue.StateDelayed), stats.Delayed)
	s.metrics.SetQueueDepth(string(queue.StateActive), stats.Active)
	s.metrics.SetQueueDepth(string(queue.StateCompleted), stats.Completed)
	s.metrics.SetQueueDepth(string(queue.StateFailed), stats.Failed)
}
