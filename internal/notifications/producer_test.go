package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/learnsphere/learnsphere-backend/internal/queue"
	pkgerrors "github.com/learnsphere/learnsphere-backend/pkg/errors"
)

func newProducerWithQueue(t *testing.T, q queue.Queue) *Producer {
	t.Helper()
	producer, err := NewProducer(q, testLogger())
	if err != nil {
		t.Fatalf("unexpected producer error: %v", err)
	}
	return producer
}

func TestProducer_AddNotification(t *testing.T) {
	var gotName string
	var gotPayload any
	q := &fakeQueue{
		enqueueFn: func(ctx context.Context, name string, payload any, opts *queue.JobOptions) (*queue.Job, error) {
			gotName = name
			gotPayload = payload
			return &queue.Job{ID: "7", Name: name, State: queue.StateWaiting}, nil
		},
	}

	producer := newProducerWithQueue(t, q)
	job, err := producer.AddNotification(context.Background(), Intent{UserID: "u1", Message: "Hi"}, nil)
	if err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}
	if job.ID != "7" {
		t.Fatalf("expected job handle returned, got %+v", job)
	}
	if gotName != jobName {
		t.Fatalf("expected job name %q, got %q", jobName, gotName)
	}

	intent, ok := gotPayload.(Intent)
	if !ok {
		t.Fatalf("expected intent payload, got %T", gotPayload)
	}
	if intent.Type != "email" {
		t.Fatalf("expected type defaulted before enqueue, got %q", intent.Type)
	}
}

func TestProducer_AddNotificationPropagatesQueueErrors(t *testing.T) {
	q := &fakeQueue{
		enqueueFn: func(ctx context.Context, name string, payload any, opts *queue.JobOptions) (*queue.Job, error) {
			return nil, pkgerrors.New(pkgerrors.CodeQueueUnavailable, "redis down")
		},
	}
	producer := newProducerWithQueue(t, q)
	_, err := producer.AddNotification(context.Background(), Intent{UserID: "u1"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeQueueUnavailable {
		t.Fatalf("expected queue unavailable, got %v", err)
	}
}

func TestProducer_AddBulkNotifications(t *testing.T) {
	var gotItems []queue.BulkItem
	q := &fakeQueue{
		enqueueBulkFn: func(ctx context.Context, items []queue.BulkItem) ([]*queue.Job, error) {
			gotItems = items
			jobs := make([]*queue.Job, len(items))
			for i := range items {
				jobs[i] = &queue.Job{ID: "b", State: queue.StateWaiting}
			}
			return jobs, nil
		},
	}

	producer := newProducerWithQueue(t, q)
	jobs, err := producer.AddBulkNotifications(context.Background(), []Intent{
		{UserID: "u1", Message: "one"},
		{UserID: "u2", Message: "two", Type: "push"},
	})
	if err != nil {
		t.Fatalf("unexpected bulk error: %v", err)
	}
	if len(jobs) != 2 || len(gotItems) != 2 {
		t.Fatalf("expected 2 jobs, got %d submitted %d", len(jobs), len(gotItems))
	}
	for _, item := range gotItems {
		if item.Name != jobName {
			t.Fatalf("expected job name %q, got %q", jobName, item.Name)
		}
	}
	second := gotItems[1].Payload.(Intent)
	if second.Type != "push" {
		t.Fatalf("expected push type preserved, got %q", second.Type)
	}
}

func TestProducer_GetQueueStats(t *testing.T) {
	q := &fakeQueue{
		countsFn: func(ctx context.Context, states ...queue.State) (map[queue.State]int64, error) {
			return map[queue.State]int64{
				queue.StateWaiting:   3,
				queue.StateActive:    1,
				queue.StateCompleted: 10,
				queue.StateFailed:    2,
				queue.StateDelayed:   4,
			}, nil
		},
	}
	producer := newProducerWithQueue(t, q)
	stats, err := producer.GetQueueStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected stats error: %v", err)
	}
	want := QueueStats{Waiting: 3, Active: 1, Completed: 10, Failed: 2, Delayed: 4}
	if *stats != want {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestProducer_GetQueueHealth(t *testing.T) {
	q := &fakeQueue{
		countsFn: func(ctx context.Context, states ...queue.State) (map[queue.State]int64, error) {
			return map[queue.State]int64{queue.StateWaiting: 1}, nil
		},
		isPausedFn: func(ctx context.Context) (bool, error) {
			return true, nil
		},
	}
	producer := newProducerWithQueue(t, q)
	health := producer.GetQueueHealth(context.Background())
	if !health.IsHealthy {
		t.Fatalf("expected healthy, got %+v", health)
	}
	if health.Stats == nil || health.Stats.Waiting != 1 {
		t.Fatalf("expected stats included, got %+v", health.Stats)
	}
	if health.IsPaused == nil || !*health.IsPaused {
		t.Fatalf("expected paused flag, got %+v", health.IsPaused)
	}
	if health.Timestamp.IsZero() {
		t.Fatal("expected timestamp set")
	}
}

func TestProducer_GetQueueHealthConvertsErrors(t *testing.T) {
	q := &fakeQueue{
		countsFn: func(ctx context.Context, states ...queue.State) (map[queue.State]int64, error) {
			return nil, pkgerrors.New(pkgerrors.CodeQueueUnavailable, "redis down")
		},
	}
	producer := newProducerWithQueue(t, q)
	health := producer.GetQueueHealth(context.Background())
	if health.IsHealthy {
		t.Fatal("expected unhealthy result")
	}
	if health.Error == "" {
		t.Fatal("expected error message in health report")
	}
	if health.Stats != nil || health.IsPaused != nil {
		t.Fatalf("expected no partial data, got %+v", health)
	}
}

func TestProducer_PauseResume(t *testing.T) {
	paused := false
	q := &fakeQueue{
		pauseFn:  func(ctx context.Context) error { paused = true; return nil },
		resumeFn: func(ctx context.Context) error { paused = false; return nil },
		isPausedFn: func(ctx context.Context) (bool, error) {
			return paused, nil
		},
	}
	producer := newProducerWithQueue(t, q)
	ctx := context.Background()

	if err := producer.PauseQueue(ctx); err != nil {
		t.Fatalf("unexpected pause error: %v", err)
	}
	if got, _ := producer.IsQueuePaused(ctx); !got {
		t.Fatal("expected paused")
	}
	if err := producer.ResumeQueue(ctx); err != nil {
		t.Fatalf("unexpected resume error: %v", err)
	}
	if got, _ := producer.IsQueuePaused(ctx); got {
		t.Fatal("expected resumed")
	}
}

func TestProducer_CleanOldJobs(t *testing.T) {
	var calls []queue.State
	q := &fakeQueue{
		cleanFn: func(ctx context.Context, maxAge time.Duration, limit int, state queue.State) ([]string, error) {
			calls = append(calls, state)
			if state == queue.StateCompleted {
				if maxAge != DefaultCleanMaxAge {
					t.Fatalf("expected default max age, got %s", maxAge)
				}
				return []string{"1", "2"}, nil
			}
			if limit != DefaultCleanLimit-2 {
				t.Fatalf("expected remaining limit, got %d", limit)
			}
			return []string{"3"}, nil
		},
	}
	producer := newProducerWithQueue(t, q)
	removed, err := producer.CleanOldJobs(context.Background(), -1, 0)
	if err != nil {
		t.Fatalf("unexpected clean error: %v", err)
	}
	if len(removed) != 3 {
		t.Fatalf("expected 3 removed ids, got %v", removed)
	}
	if len(calls) != 2 || calls[0] != queue.StateCompleted || calls[1] != queue.StateFailed {
		t.Fatalf("expected completed then failed, got %v", calls)
	}
}

func TestProducer_CleanOldJobsZeroAgeHonored(t *testing.T) {
	q := &fakeQueue{
		cleanFn: func(ctx context.Context, maxAge time.Duration, limit int, state queue.State) ([]string, error) {
			if maxAge != 0 {
				t.Fatalf("expected zero max age passed through, got %s", maxAge)
			}
			if state == queue.StateCompleted {
				return []string{"a", "b"}, nil
			}
			return nil, nil
		},
	}
	producer := newProducerWithQueue(t, q)
	removed, err := producer.CleanOldJobs(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("unexpected clean error: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed ids, got %v", removed)
	}
}

func TestProducer_Close(t *testing.T) {
	closed := 0
	q := &fakeQueue{closeFn: func() error { closed++; return nil }}
	producer := newProducerWithQueue(t, q)
	if err := producer.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected close delegated, got %d", closed)
	}
}
