package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/learnsphere/learnsphere-backend/internal/notifications"
	"github.com/learnsphere/learnsphere-backend/internal/queue"
	"github.com/learnsphere/learnsphere-backend/pkg/config"
	"github.com/learnsphere/learnsphere-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, userID string, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

type stubQueue struct{}

func (stubQueue) Enqueue(ctx context.Context, name string, payload any, opts *queue.JobOptions) (*queue.Job, error) {
	return &queue.Job{ID: "1", Name: name, State: queue.StateWaiting}, nil
}

func (stubQueue) EnqueueBulk(ctx context.Context, items []queue.BulkItem) ([]*queue.Job, error) {
	jobs := make([]*queue.Job, len(items))
	for i := range items {
		jobs[i] = &queue.Job{ID: "1", Name: items[i].Name, State: queue.StateWaiting}
	}
	return jobs, nil
}

func (stubQueue) Claim(ctx context.Context) (*queue.Job, error) {
	return nil, nil
}

func (stubQueue) Complete(ctx context.Context, jobID string) error {
	return nil
}

func (stubQueue) Fail(ctx context.Context, job *queue.Job, reason string) (bool, error) {
	return false, nil
}

func (stubQueue) Counts(ctx context.Context, states ...queue.State) (map[queue.State]int64, error) {
	counts := make(map[queue.State]int64, len(states))
	for _, state := range states {
		counts[state] = 0
	}
	return counts, nil
}

func (stubQueue) Pause(ctx context.Context) error {
	return nil
}

func (stubQueue) Resume(ctx context.Context) error {
	return nil
}

func (stubQueue) IsPaused(ctx context.Context) (bool, error) {
	return false, nil
}

func (stubQueue) Clean(ctx context.Context, maxAge time.Duration, limit int, state queue.State) ([]string, error) {
	return nil, nil
}

func (stubQueue) Close() error {
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	return cfg
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	producer, err := notifications.NewProducer(stubQueue{}, logg)
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	return NewRouter(testConfig(), logg, stubPinger{}, stubPinger{}, producer, stubNotificationsService{})
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("X-LearnSphere-Env"); got != "test" {
		t.Fatalf("expected env header test, got %q", got)
	}
}

func TestHealthReady(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestListNotificationsRoute(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/notifications/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMarkNotificationReadRejectsBadID(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/user-1/notifications/not-a-uuid/read", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestEnqueueNotificationRoute(t *testing.T) {
	router := newTestRouter(t)

	body := `{"userId":"user-1","message":"hello","type":"email"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestEnqueueNotificationRejectsMissingFields(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/", strings.NewReader(`{"message":"hi"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestEnqueueNotificationRejectsUnknownType(t *testing.T) {
	router := newTestRouter(t)

	body := `{"userId":"user-1","message":"hi","type":"carrier-pigeon"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestQueueStatsRoute(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/stats", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, key := range []string{"waiting", "active", "completed", "failed", "delayed"} {
		if _, ok := envelope.Data[key]; !ok {
			t.Fatalf("expected %s in stats payload: %s", key, resp.Body.String())
		}
	}
}

func TestQueueHealthRoute(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCleanQueueRejectsNegativeAge(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue/clean?maxAgeMs=-5", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
