package notifications

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/learnsphere/learnsphere-backend/internal/queue"
	pkgerrors "github.com/learnsphere/learnsphere-backend/pkg/errors"
	"github.com/learnsphere/learnsphere-backend/pkg/logger"
)

// jobName tags every notification job on the queue.
const jobName = "notification"

// Defaults for queue retention cleanup.
const (
	DefaultCleanMaxAge = 24 * time.Hour
	DefaultCleanLimit  = 100
)

// QueueStats is a point-in-time snapshot of job counts per state.
type QueueStats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

// QueueHealth is the composite health report surfaced to callers. Queue
// errors are folded into IsHealthy/Error instead of propagating.
type QueueHealth struct {
	IsHealthy bool        `json:"isHealthy"`
	Stats     *QueueStats `json:"stats,omitempty"`
	IsPaused  *bool       `json:"isPaused,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Producer is the facade request handlers and internal events use to submit
// notification intents. It is stateless; the queue holds all job state.
type Producer struct {
	queue queue.Queue
	logg  *logger.Logger
}

// NewProducer wires the producer facade.
func NewProducer(q queue.Queue, logg *logger.Logger) (*Producer, error) {
	if q == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "job queue required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Producer{queue: q, logg: logg}, nil
}

// AddNotification enqueues a single intent. Intent fields are not validated
// here; the worker substitutes defaults for whatever is missing.
func (p *Producer) AddNotification(ctx context.Context, intent Intent, opts *queue.JobOptions) (*queue.Job, error) {
	job, err := p.queue.Enqueue(ctx, jobName, intent.Normalized(), opts)
	if err != nil {
		return nil, err
	}
	logCtx := p.logg.WithFields(ctx, map[string]any{
		"job_id": job.ID,
		"type":   string(intent.Normalized().Type),
	})
	p.logg.Info(logCtx, "notification enqueued")
	return job, nil
}

// AddBulkNotifications enqueues a batch of intents through one pipeline.
func (p *Producer) AddBulkNotifications(ctx context.Context, intents []Intent) ([]*queue.Job, error) {
	items := make([]queue.BulkItem, 0, len(intents))
	for _, intent := range intents {
		items = append(items, queue.BulkItem{Name: jobName, Payload: intent.Normalized()})
	}
	jobs, err := p.queue.EnqueueBulk(ctx, items)
	if err != nil {
		return nil, err
	}
	logCtx := p.logg.WithField(ctx, "count", len(jobs))
	p.logg.Info(logCtx, "bulk notifications enqueued")
	return jobs, nil
}

// GetQueueStats reports current job counts per state.
func (p *Producer) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	counts, err := p.queue.Counts(ctx,
		queue.StateWaiting, queue.StateActive, queue.StateCompleted, queue.StateFailed, queue.StateDelayed,
	)
	if err != nil {
		return nil, err
	}
	return &QueueStats{
		Waiting:   counts[queue.StateWaiting],
		Active:    counts[queue.StateActive],
		Completed: counts[queue.StateCompleted],
		Failed:    counts[queue.StateFailed],
		Delayed:   counts[queue.StateDelayed],
	}, nil
}

// PauseQueue stops waiting jobs from being claimed.
func (p *Producer) PauseQueue(ctx context.Context) error {
	if err := p.queue.Pause(ctx); err != nil {
		return err
	}
	p.logg.Info(ctx, "notification queue paused")
	return nil
}

// ResumeQueue re-enables claiming.
func (p *Producer) ResumeQueue(ctx context.Context) error {
	if err := p.queue.Resume(ctx); err != nil {
		return err
	}
	p.logg.Info(ctx, "notification queue resumed")
	return nil
}

// IsQueuePaused reports the paused flag.
func (p *Producer) IsQueuePaused(ctx context.Context) (bool, error) {
	return p.queue.IsPaused(ctx)
}

// GetQueueHealth combines stats and the paused flag into a single report.
// Unlike every other producer operation, queue failures do not propagate;
// they are returned as an unhealthy result.
func (p *Producer) GetQueueHealth(ctx context.Context) QueueHealth {
	health := QueueHealth{Timestamp: time.Now().UTC()}

	stats, err := p.GetQueueStats(ctx)
	if err != nil {
		health.Error = err.Error()
		return health
	}
	paused, err := p.queue.IsPaused(ctx)
	if err != nil {
		health.Error = err.Error()
		return health
	}

	health.IsHealthy = true
	health.Stats = stats
	health.IsPaused = &paused
	return health
}

// CleanOldJobs removes terminal jobs past maxAge, completed first, then
// failed, up to limit in total. Returns the removed job ids. A zero maxAge
// is honored (everything finished so far is old enough); a negative one
// selects the default retention window.
func (p *Producer) CleanOldJobs(ctx context.Context, maxAge time.Duration, limit int) ([]string, error) {
	if maxAge < 0 {
		maxAge = DefaultCleanMaxAge
	}
	if limit <= 0 {
		limit = DefaultCleanLimit
	}

	var errs []error
	removed, err := p.queue.Clean(ctx, maxAge, limit, queue.StateCompleted)
	if err != nil {
		errs = append(errs, err)
	}
	if remaining := limit - len(removed); remaining > 0 {
		failed, err := p.queue.Clean(ctx, maxAge, remaining, queue.StateFailed)
		if err != nil {
			errs = append(errs, err)
		}
		removed = append(removed, failed...)
	}
	if combined := multierr.Combine(errs...); combined != nil {
		return removed, combined
	}

	logCtx := p.logg.WithField(ctx, "count", len(removed))
	p.logg.Info(logCtx, "old queue jobs cleaned")
	return removed, nil
}

// Close releases the queue connection. Safe during graceful shutdown.
func (p *Producer) Close() error {
	return p.queue.Close()
}
