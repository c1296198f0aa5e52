package notifications

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/learnsphere/learnsphere-backend/internal/queue"
	"github.com/learnsphere/learnsphere-backend/pkg/db/models"
	"github.com/learnsphere/learnsphere-backend/pkg/enums"
	pkgerrors "github.com/learnsphere/learnsphere-backend/pkg/errors"
	"github.com/learnsphere/learnsphere-backend/pkg/logger"
	"github.com/learnsphere/learnsphere-backend/pkg/metrics"
)

type recordCreator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type recipientLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// WorkerParams wires the consumer's collaborators.
type WorkerParams struct {
	Queue        queue.Queue
	Repo         recordCreator
	Users        recipientLookup
	Channels     map[enums.NotificationType]Channel
	Fallback     Channel
	Metrics      *metrics.WorkerMetrics
	Logger       *logger.Logger
	Concurrency  int
	PollInterval time.Duration
}

// Worker pulls notification jobs from the queue, persists a record, then
// dispatches through the channel matching the intent's type. Concurrency is
// N independent slots claiming from the same queue.
type Worker struct {
	queue        queue.Queue
	repo         recordCreator
	users        recipientLookup
	channels     map[enums.NotificationType]Channel
	fallback     Channel
	metrics      *metrics.WorkerMetrics
	logg         *logger.Logger
	concurrency  int
	pollInterval time.Duration
}

// NewWorker validates and wires the consumer.
func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Queue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "job queue required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if params.Fallback == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fallback channel required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.Concurrency <= 0 {
		params.Concurrency = 1
	}
	if params.PollInterval <= 0 {
		params.PollInterval = time.Second
	}
	return &Worker{
		queue:        params.Queue,
		repo:         params.Repo,
		users:        params.Users,
		channels:     params.Channels,
		fallback:     params.Fallback,
		metrics:      params.Metrics,
		logg:         params.Logger,
		concurrency:  params.Concurrency,
		pollInterval: params.PollInterval,
	}, nil
}

// Run starts the configured number of slots and blocks until the context is
// canceled. In-flight jobs finish before slots exit.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		slot := i
		g.Go(func() error {
			return w.runSlot(ctx, slot)
		})
	}
	return g.Wait()
}

func (w *Worker) runSlot(ctx context.Context, slot int) error {
	slotCtx := w.logg.WithField(ctx, "slot", slot)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, err := w.queue.Claim(ctx)
		if err != nil {
			w.logg.Error(slotCtx, "claiming job failed", err)
			if !w.sleep(ctx) {
				return nil
			}
			continue
		}
		if job == nil {
			if !w.sleep(ctx) {
				return nil
			}
			continue
		}

		w.handle(slotCtx, job)
	}
}

func (w *Worker) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(w.pollInterval):
		return true
	}
}

// handle runs one job through the processing state machine and reports the
// outcome back to the queue. A claimed job is never abandoned mid-flight: the
// run context only gates claiming, so shutdown lets the job finish and its
// outcome reach the queue instead of squatting in active until the lease
// expires.
func (w *Worker) handle(ctx context.Context, job *queue.Job) {
	ctx = context.WithoutCancel(ctx)
	logCtx := w.logg.WithFields(ctx, map[string]any{
		"job_id":  job.ID,
		"attempt": job.AttemptsMade,
	})

	started := time.Now()
	jobType, err := w.process(ctx, job)
	duration := time.Since(started)

	if err != nil {
		retried, failErr := w.queue.Fail(ctx, job, err.Error())
		if failErr != nil {
			w.logg.Error(logCtx, "recording job failure failed", failErr)
		}
		w.observe(jobType, "failure", duration)
		logCtx = w.logg.WithField(logCtx, "retried", retried)
		w.logg.Error(logCtx, "notification job failed", err)
		return
	}

	if err := w.queue.Complete(ctx, job.ID); err != nil {
		w.logg.Error(logCtx, "acknowledging job failed", err)
	}
	w.observe(jobType, "success", duration)
	w.logg.Info(logCtx, "notification job completed")
}

func (w *Worker) observe(jobType string, result string, duration time.Duration) {
	if w.metrics == nil {
		return
	}
	w.metrics.IncProcessed(jobType, result)
	w.metrics.ObserveDuration(jobType, duration)
}

// process decodes the intent, persists the record while the recipient is
// looked up, then dispatches. Errors propagate unmodified so the queue's
// retry policy applies; an unresolvable recipient is not an error.
func (w *Worker) process(ctx context.Context, job *queue.Job) (string, error) {
	var intent Intent
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &intent); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding job payload")
		}
	}
	intent = intent.Normalized()
	jobType := string(intent.Type)

	record := &models.Notification{
		UserID:  intent.UserID,
		Message: intent.Message,
		Type:    intent.Type,
		Data:    intent.RecordData(),
	}

	var recipient *models.User
	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.repo.Create(groupCtx, record)
	})
	g.Go(func() error {
		found, err := w.users.FindByID(groupCtx, intent.UserID)
		if err != nil {
			return err
		}
		recipient = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return jobType, err
	}

	return jobType, w.channelFor(intent.Type).Deliver(ctx, recipient, intent)
}

func (w *Worker) channelFor(jobType enums.NotificationType) Channel {
	if channel, ok := w.channels[jobType]; ok {
		return channel
	}
	return w.fallback
}
