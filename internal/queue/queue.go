package queue

import (
	"context"
	"encoding/json"
	"time"
)

// State is the lifecycle state of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// AllStates lists every lifecycle state, in the order stats are reported.
var AllStates = []State{StateWaiting, StateDelayed, StateActive, StateCompleted, StateFailed}

func (s State) IsValid() bool {
	switch s {
	case StateWaiting, StateDelayed, StateActive, StateCompleted, StateFailed:
		return true
	}
	return false
}

// ParseState normalizes a caller-supplied state string.
func ParseState(value string) (State, bool) {
	s := State(value)
	return s, s.IsValid()
}

// Backoff strategies applied between retries of a failed job.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// BackoffOptions describe the inter-retry wait. Exponential doubles the base
// delay per completed attempt.
type BackoffOptions struct {
	Type  string        `json:"type"`
	Delay time.Duration `json:"delay"`
}

// JobOptions carry the scheduling and retry policy stored on the job and
// interpreted by the queue.
type JobOptions struct {
	Attempts int            `json:"attempts"`
	Priority int            `json:"priority"`
	Delay    time.Duration  `json:"delay"`
	Backoff  BackoffOptions `json:"backoff"`
}

// Job is a queued unit of work plus its bookkeeping.
type Job struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Payload      json.RawMessage `json:"payload"`
	Options      JobOptions      `json:"options"`
	State        State           `json:"state"`
	AttemptsMade int             `json:"attemptsMade"`
	FailedReason string          `json:"failedReason,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	ProcessedAt  *time.Time      `json:"processedAt,omitempty"`
	FinishedAt   *time.Time      `json:"finishedAt,omitempty"`
}

// BulkItem is one entry of a bulk enqueue.
type BulkItem struct {
	Name    string
	Payload any
	Options *JobOptions
}

// Queue is a durable, ordered, at-least-once delivery channel. Claimed jobs
// are leased to exactly one worker slot at a time; a slot that misses its
// lease deadline loses the job back to the waiting set.
type Queue interface {
	Enqueue(ctx context.Context, name string, payload any, opts *JobOptions) (*Job, error)
	EnqueueBulk(ctx context.Context, items []BulkItem) ([]*Job, error)
	Claim(ctx context.Context) (*Job, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, job *Job, reason string) (retried bool, err error)
	Counts(ctx context.Context, states ...State) (map[State]int64, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	IsPaused(ctx context.Context) (bool, error)
	Clean(ctx context.Context, maxAge time.Duration, limit int, state State) ([]string, error)
	Close() error
}

// NextBackoff returns the wait before the next retry, given the job's options
// and the number of attempts already made.
func NextBackoff(opts JobOptions, attemptsMade int) time.Duration {
	base := opts.Backoff.Delay
	if base <= 0 {
		return 0
	}
	if opts.Backoff.Type != BackoffExponential {
		return base
	}
	delay := base
	for i := 1; i < attemptsMade; i++ {
		delay *= 2
	}
	return delay
}

// ShouldRetry reports whether a failed job has attempts left.
func ShouldRetry(opts JobOptions, attemptsMade int) bool {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	return attemptsMade < attempts
}
