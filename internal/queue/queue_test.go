package queue

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/learnsphere/learnsphere-backend/pkg/config"
)

func queueConfig() config.QueueConfig {
	return config.QueueConfig{
		Name:            "notifications",
		LeaseDuration:   30 * time.Second,
		DefaultAttempts: 3,
		BackoffType:     BackoffExponential,
		BackoffDelay:    5 * time.Second,
	}
}

func formatMs(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	return context.Background()
}

func TestWaitScoreOrdersByPriorityThenSequence(t *testing.T) {
	highP := waitScore(10, 5)
	lowP := waitScore(1, 1)
	if highP >= lowP {
		t.Fatalf("expected higher priority to score lower: high=%f low=%f", highP, lowP)
	}

	first := waitScore(3, 100)
	second := waitScore(3, 101)
	if first >= second {
		t.Fatalf("expected FIFO within a priority class: first=%f second=%f", first, second)
	}
}

func TestWaitScoreClampsPriority(t *testing.T) {
	if waitScore(-5, 1) != waitScore(0, 1) {
		t.Fatalf("expected negative priority clamped to zero")
	}
	if waitScore(priorityCeiling+100, 1) != waitScore(priorityCeiling, 1) {
		t.Fatalf("expected oversized priority clamped to ceiling")
	}
}

func TestNextBackoff(t *testing.T) {
	fixed := JobOptions{Backoff: BackoffOptions{Type: BackoffFixed, Delay: 5 * time.Second}}
	for attempts := 1; attempts <= 4; attempts++ {
		if got := NextBackoff(fixed, attempts); got != 5*time.Second {
			t.Fatalf("fixed backoff attempt %d: got %s", attempts, got)
		}
	}

	exp := JobOptions{Backoff: BackoffOptions{Type: BackoffExponential, Delay: 2 * time.Second}}
	cases := map[int]time.Duration{
		1: 2 * time.Second,
		2: 4 * time.Second,
		3: 8 * time.Second,
	}
	for attempts, want := range cases {
		if got := NextBackoff(exp, attempts); got != want {
			t.Fatalf("exponential backoff attempt %d: got %s want %s", attempts, got, want)
		}
	}

	if got := NextBackoff(JobOptions{}, 1); got != 0 {
		t.Fatalf("expected zero backoff without a configured delay, got %s", got)
	}
}

func TestShouldRetry(t *testing.T) {
	opts := JobOptions{Attempts: 3}
	if !ShouldRetry(opts, 1) || !ShouldRetry(opts, 2) {
		t.Fatalf("expected retries while attempts remain")
	}
	if ShouldRetry(opts, 3) {
		t.Fatalf("expected no retry once attempts are exhausted")
	}

	// zero attempts behaves as a single try
	if ShouldRetry(JobOptions{}, 1) {
		t.Fatalf("expected unset attempts to mean one try")
	}
}

func TestParseState(t *testing.T) {
	if s, ok := ParseState("completed"); !ok || s != StateCompleted {
		t.Fatalf("expected completed to parse, got %q ok=%v", s, ok)
	}
	if _, ok := ParseState("stalled"); ok {
		t.Fatalf("expected unknown state to be rejected")
	}
}

func TestJobFromFields(t *testing.T) {
	processed := time.Now().Add(-time.Minute).UnixMilli()
	fields := map[string]string{
		"id":            "42",
		"name":          "notification",
		"payload":       `{"userId":"u1"}`,
		"options":       `{"attempts":3,"priority":2,"delay":0,"backoff":{"type":"exponential","delay":5000000000}}`,
		"state":         "active",
		"attempts_made": "2",
		"created_at":    "1700000000000",
		"processed_at":  formatMs(processed),
	}

	job, err := jobFromFields(fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.ID != "42" || job.Name != "notification" {
		t.Fatalf("unexpected identity: %+v", job)
	}
	if job.State != StateActive || job.AttemptsMade != 2 {
		t.Fatalf("unexpected bookkeeping: %+v", job)
	}
	if job.Options.Attempts != 3 || job.Options.Backoff.Type != BackoffExponential {
		t.Fatalf("unexpected options: %+v", job.Options)
	}
	if job.Options.Backoff.Delay != 5*time.Second {
		t.Fatalf("unexpected backoff delay: %s", job.Options.Backoff.Delay)
	}
	if job.ProcessedAt == nil || job.ProcessedAt.UnixMilli() != processed {
		t.Fatalf("unexpected processed timestamp: %+v", job.ProcessedAt)
	}
	if job.FinishedAt != nil {
		t.Fatalf("expected no finish timestamp on an active job")
	}
}

func TestJobFromFieldsRejectsBadOptions(t *testing.T) {
	if _, err := jobFromFields(map[string]string{"id": "1", "options": "not-json"}); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNormalizeOptionsAppliesDefaults(t *testing.T) {
	q := NewRedis(nil, queueConfig())

	opts := q.normalizeOptions(nil)
	if opts.Attempts != 3 {
		t.Fatalf("expected default attempts, got %d", opts.Attempts)
	}
	if opts.Backoff.Type != BackoffExponential || opts.Backoff.Delay != 5*time.Second {
		t.Fatalf("expected default backoff, got %+v", opts.Backoff)
	}

	custom := q.normalizeOptions(&JobOptions{Attempts: 1, Priority: 7, Backoff: BackoffOptions{Type: BackoffFixed, Delay: time.Second}})
	if custom.Attempts != 1 || custom.Priority != 7 {
		t.Fatalf("expected caller options preserved, got %+v", custom)
	}
	if custom.Backoff.Type != BackoffFixed || custom.Backoff.Delay != time.Second {
		t.Fatalf("expected caller backoff preserved, got %+v", custom.Backoff)
	}
}

func TestCleanRejectsNonTerminalStates(t *testing.T) {
	q := NewRedis(nil, queueConfig())
	for _, state := range []State{StateWaiting, StateDelayed, StateActive} {
		if _, err := q.Clean(testContext(t), time.Hour, 10, state); err == nil {
			t.Fatalf("expected clean to reject state %q", state)
		}
	}
}

func TestStateKeys(t *testing.T) {
	q := NewRedis(nil, queueConfig())
	if got := q.stateKey(StateWaiting); got != "ls:queue:notifications:wait" {
		t.Fatalf("unexpected wait key: %q", got)
	}
	if got := q.stateKey(StateFailed); got != "ls:queue:notifications:failed" {
		t.Fatalf("unexpected failed key: %q", got)
	}
	if got := q.jobKeyPrefix(); got != "ls:queue:notifications:job:" {
		t.Fatalf("unexpected job prefix: %q", got)
	}
}
