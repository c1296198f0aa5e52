package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/learnsphere/learnsphere-backend/internal/notifications"
	"github.com/learnsphere/learnsphere-backend/pkg/logger"
)

type queueCleaner interface {
	CleanOldJobs(ctx context.Context, maxAge time.Duration, limit int) ([]string, error)
}

// QueueCleanupJobParams configure the queue retention job.
type QueueCleanupJobParams struct {
	Logger   *logger.Logger
	Producer queueCleaner
	MaxAge   time.Duration
	Limit    int
}

// NewQueueCleanupJob trims terminal jobs from the notification queue so the
// completed/failed sets do not grow without bound.
func NewQueueCleanupJob(params QueueCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Producer == nil {
		return nil, fmt.Errorf("queue producer required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = notifications.DefaultCleanMaxAge
	}
	limit := params.Limit
	if limit <= 0 {
		limit = notifications.DefaultCleanLimit
	}
	return &queueCleanupJob{
		logg:     params.Logger,
		producer: params.Producer,
		maxAge:   maxAge,
		limit:    limit,
	}, nil
}

type queueCleanupJob struct {
	logg     *logger.Logger
	producer queueCleaner
	maxAge   time.Duration
	limit    int
}

func (j *queueCleanupJob) Name() string { return "queue-cleanup" }

func (j *queueCleanupJob) Run(ctx context.Context) error {
	removed, err := j.producer.CleanOldJobs(ctx, j.maxAge, j.limit)
	if err != nil {
		return fmt.Errorf("queue cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"max_age":      j.maxAge.String(),
		"limit":        j.limit,
		"jobs_removed": len(removed),
	})
	j.logg.Info(logCtx, "queue cleanup complete")
	return nil
}
