package notifications

import (
	"context"
	"io"
	"time"

	"github.com/learnsphere/learnsphere-backend/internal/queue"
	"github.com/learnsphere/learnsphere-backend/pkg/db/models"
	"github.com/learnsphere/learnsphere-backend/pkg/logger"
	"github.com/learnsphere/learnsphere-backend/pkg/mailer"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type fakeQueue struct {
	enqueueFn     func(ctx context.Context, name string, payload any, opts *queue.JobOptions) (*queue.Job, error)
	enqueueBulkFn func(ctx context.Context, items []queue.BulkItem) ([]*queue.Job, error)
	claimFn       func(ctx context.Context) (*queue.Job, error)
	completeFn    func(ctx context.Context, jobID string) error
	failFn        func(ctx context.Context, job *queue.Job, reason string) (bool, error)
	countsFn      func(ctx context.Context, states ...queue.State) (map[queue.State]int64, error)
	pauseFn       func(ctx context.Context) error
	resumeFn      func(ctx context.Context) error
	isPausedFn    func(ctx context.Context) (bool, error)
	cleanFn       func(ctx context.Context, maxAge time.Duration, limit int, state queue.State) ([]string, error)
	closeFn       func() error
}

func (f *fakeQueue) Enqueue(ctx context.Context, name string, payload any, opts *queue.JobOptions) (*queue.Job, error) {
	if f.enqueueFn != nil {
		return f.enqueueFn(ctx, name, payload, opts)
	}
	return &queue.Job{ID: "1", Name: name, State: queue.StateWaiting}, nil
}

func (f *fakeQueue) EnqueueBulk(ctx context.Context, items []queue.BulkItem) ([]*queue.Job, error) {
	if f.enqueueBulkFn != nil {
		return f.enqueueBulkFn(ctx, items)
	}
	jobs := make([]*queue.Job, 0, len(items))
	for i, item := range items {
		jobs = append(jobs, &queue.Job{ID: string(rune('1' + i)), Name: item.Name, State: queue.StateWaiting})
	}
	return jobs, nil
}

func (f *fakeQueue) Claim(ctx context.Context) (*queue.Job, error) {
	if f.claimFn != nil {
		return f.claimFn(ctx)
	}
	return nil, nil
}

func (f *fakeQueue) Complete(ctx context.Context, jobID string) error {
	if f.completeFn != nil {
		return f.completeFn(ctx, jobID)
	}
	return nil
}

func (f *fakeQueue) Fail(ctx context.Context, job *queue.Job, reason string) (bool, error) {
	if f.failFn != nil {
		return f.failFn(ctx, job, reason)
	}
	return false, nil
}

func (f *fakeQueue) Counts(ctx context.Context, states ...queue.State) (map[queue.State]int64, error) {
	if f.countsFn != nil {
		return f.countsFn(ctx, states...)
	}
	return map[queue.State]int64{}, nil
}

func (f *fakeQueue) Pause(ctx context.Context) error {
	if f.pauseFn != nil {
		return f.pauseFn(ctx)
	}
	return nil
}

func (f *fakeQueue) Resume(ctx context.Context) error {
	if f.resumeFn != nil {
		return f.resumeFn(ctx)
	}
	return nil
}

func (f *fakeQueue) IsPaused(ctx context.Context) (bool, error) {
	if f.isPausedFn != nil {
		return f.isPausedFn(ctx)
	}
	return false, nil
}

func (f *fakeQueue) Clean(ctx context.Context, maxAge time.Duration, limit int, state queue.State) ([]string, error) {
	if f.cleanFn != nil {
		return f.cleanFn(ctx, maxAge, limit, state)
	}
	return nil, nil
}

func (f *fakeQueue) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeRecordStore struct {
	createFn func(ctx context.Context, notification *models.Notification) error
	created  []*models.Notification
}

func (f *fakeRecordStore) Create(ctx context.Context, notification *models.Notification) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, notification); err != nil {
			return err
		}
	}
	f.created = append(f.created, notification)
	return nil
}

type fakeUserLookup struct {
	findFn func(ctx context.Context, id string) (*models.User, error)
}

func (f *fakeUserLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.findFn != nil {
		return f.findFn(ctx, id)
	}
	return nil, nil
}

type fakeSender struct {
	sendFn func(ctx context.Context, msg mailer.Message) error
	sent   []mailer.Message
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) error {
	if f.sendFn != nil {
		if err := f.sendFn(ctx, msg); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}
