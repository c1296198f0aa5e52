package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/learnsphere/learnsphere-backend/pkg/config"
	pkgerrors "github.com/learnsphere/learnsphere-backend/pkg/errors"
)

const (
	keyPrefix = "ls:queue"

	// Wait-set scores pack (priorityCeiling - priority) above a 40-bit
	// enqueue sequence so ZPOPMIN yields highest priority first, FIFO within
	// a priority class. Both fit a float64 mantissa exactly.
	priorityCeiling = 1<<13 - 1
	seqBits         = 40
)

// claimScript promotes due delayed jobs, reclaims expired leases, honors the
// paused flag, then pops one waiting job into the active set under a lease.
// KEYS: wait, delayed, active, paused. ARGV: now(ms), lease(ms), job key prefix.
var claimScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local lease = tonumber(ARGV[2])
local prefix = ARGV[3]

local due = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", now, "LIMIT", 0, 100)
for _, id in ipairs(due) do
  local score = redis.call("HGET", prefix .. id, "score")
  redis.call("ZREM", KEYS[2], id)
  redis.call("ZADD", KEYS[1], tonumber(score), id)
  redis.call("HSET", prefix .. id, "state", "waiting")
end

local stalled = redis.call("ZRANGEBYSCORE", KEYS[3], "-inf", now, "LIMIT", 0, 100)
for _, id in ipairs(stalled) do
  local score = redis.call("HGET", prefix .. id, "score")
  redis.call("ZREM", KEYS[3], id)
  redis.call("ZADD", KEYS[1], tonumber(score), id)
  redis.call("HSET", prefix .. id, "state", "waiting")
end

if redis.call("EXISTS", KEYS[4]) == 1 then
  return nil
end

local popped = redis.call("ZPOPMIN", KEYS[1], 1)
if #popped == 0 then
  return nil
end
local id = popped[1]
redis.call("ZADD", KEYS[3], now + lease, id)
redis.call("HSET", prefix .. id, "state", "active", "processed_at", now)
redis.call("HINCRBY", prefix .. id, "attempts_made", 1)
local job = redis.call("HGETALL", prefix .. id)
table.insert(job, "id")
table.insert(job, id)
return job
`)

// completeScript moves an active job to completed. Returns 0 when the job no
// longer holds its lease (reclaimed by another slot).
// KEYS: active, completed. ARGV: now(ms), job id, job key prefix.
var completeScript = redis.NewScript(`
local id = ARGV[2]
local prefix = ARGV[3]
if redis.call("ZREM", KEYS[1], id) == 0 then
  return 0
end
redis.call("ZADD", KEYS[2], tonumber(ARGV[1]), id)
redis.call("HSET", prefix .. id, "state", "completed", "finished_at", ARGV[1])
return 1
`)

// failScript reschedules a failed job for retry or parks it in the failed set.
// KEYS: active, delayed, failed. ARGV: now(ms), job id, job key prefix,
// retry flag, retry-at(ms), reason.
var failScript = redis.NewScript(`
local id = ARGV[2]
local prefix = ARGV[3]
if redis.call("ZREM", KEYS[1], id) == 0 then
  return 0
end
if ARGV[4] == "1" then
  redis.call("ZADD", KEYS[2], tonumber(ARGV[5]), id)
  redis.call("HSET", prefix .. id, "state", "delayed", "failed_reason", ARGV[6])
else
  redis.call("ZADD", KEYS[3], tonumber(ARGV[1]), id)
  redis.call("HSET", prefix .. id, "state", "failed", "failed_reason", ARGV[6], "finished_at", ARGV[1])
end
return 1
`)

// cleanScript removes up to limit jobs whose finish scores are at or below
// the cutoff, oldest first, deleting their hashes.
// KEYS: state zset. ARGV: max score(ms), limit, job key prefix.
var cleanScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  redis.call("ZREM", KEYS[1], id)
  redis.call("DEL", ARGV[3] .. id)
end
return ids
`)

// RedisQueue implements Queue on a family of sorted sets keyed under
// ls:queue:{name}. All multi-key transitions run as Lua scripts so two slots
// racing for the same job cannot both win.
type RedisQueue struct {
	rdb  *redis.Client
	name string
	cfg  config.QueueConfig

	closeOnce sync.Once
	closeErr  error
}

// NewRedis builds a queue on an established Redis connection. The queue takes
// ownership of the connection on Close.
func NewRedis(rdb *redis.Client, cfg config.QueueConfig) *RedisQueue {
	if cfg.Name == "" {
		cfg.Name = "notifications"
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 30 * time.Second
	}
	return &RedisQueue{rdb: rdb, name: cfg.Name, cfg: cfg}
}

func (q *RedisQueue) key(suffix string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, q.name, suffix)
}

func (q *RedisQueue) jobKeyPrefix() string {
	return q.key("job:")
}

func (q *RedisQueue) stateKey(state State) string {
	switch state {
	case StateWaiting:
		return q.key("wait")
	default:
		return q.key(string(state))
	}
}

// waitScore orders the wait set by priority (higher first), then enqueue
// sequence (FIFO).
func waitScore(priority int, seq int64) float64 {
	if priority < 0 {
		priority = 0
	}
	if priority > priorityCeiling {
		priority = priorityCeiling
	}
	band := int64(priorityCeiling-priority) << seqBits
	return float64(band | (seq & (1<<seqBits - 1)))
}

func (q *RedisQueue) normalizeOptions(opts *JobOptions) JobOptions {
	out := JobOptions{}
	if opts != nil {
		out = *opts
	}
	if out.Attempts <= 0 {
		out.Attempts = q.cfg.DefaultAttempts
	}
	if out.Attempts <= 0 {
		out.Attempts = 1
	}
	if out.Backoff.Type == "" {
		out.Backoff.Type = q.cfg.BackoffType
	}
	if out.Backoff.Delay <= 0 {
		out.Backoff.Delay = q.cfg.BackoffDelay
	}
	return out
}

func unavailable(err error, op string) error {
	return pkgerrors.Wrap(pkgerrors.CodeQueueUnavailable, err, op)
}

// Enqueue persists a job hash and schedules it as waiting or delayed.
func (q *RedisQueue) Enqueue(ctx context.Context, name string, payload any, opts *JobOptions) (*Job, error) {
	jobs, err := q.enqueueMany(ctx, []BulkItem{{Name: name, Payload: payload, Options: opts}})
	if err != nil {
		return nil, err
	}
	return jobs[0], nil
}

// EnqueueBulk submits every item through one pipeline. The pipeline is a
// single failure unit: a transport error fails the whole batch.
func (q *RedisQueue) EnqueueBulk(ctx context.Context, items []BulkItem) ([]*Job, error) {
	if len(items) == 0 {
		return []*Job{}, nil
	}
	return q.enqueueMany(ctx, items)
}

func (q *RedisQueue) enqueueMany(ctx context.Context, items []BulkItem) ([]*Job, error) {
	last, err := q.rdb.IncrBy(ctx, q.key("id"), int64(len(items))).Result()
	if err != nil {
		return nil, unavailable(err, "reserving job ids")
	}
	firstSeq := last - int64(len(items)) + 1

	now := time.Now()
	nowMs := now.UnixMilli()

	jobs := make([]*Job, 0, len(items))
	pipe := q.rdb.TxPipeline()
	for i, item := range items {
		seq := firstSeq + int64(i)
		opts := q.normalizeOptions(item.Options)

		payload, err := json.Marshal(item.Payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encoding job payload")
		}
		encodedOpts, err := json.Marshal(opts)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encoding job options")
		}

		job := &Job{
			ID:        strconv.FormatInt(seq, 10),
			Name:      item.Name,
			Payload:   payload,
			Options:   opts,
			State:     StateWaiting,
			CreatedAt: now,
		}
		score := waitScore(opts.Priority, seq)

		fields := map[string]any{
			"name":          job.Name,
			"payload":       string(payload),
			"options":       string(encodedOpts),
			"state":         string(StateWaiting),
			"attempts_made": 0,
			"created_at":    nowMs,
			"score":         strconv.FormatFloat(score, 'f', -1, 64),
		}
		if opts.Delay > 0 {
			job.State = StateDelayed
			fields["state"] = string(StateDelayed)
		}
		pipe.HSet(ctx, q.jobKeyPrefix()+job.ID, fields)

		if opts.Delay > 0 {
			readyAt := float64(now.Add(opts.Delay).UnixMilli())
			pipe.ZAdd(ctx, q.key("delayed"), redis.Z{Score: readyAt, Member: job.ID})
		} else {
			pipe.ZAdd(ctx, q.key("wait"), redis.Z{Score: score, Member: job.ID})
		}
		jobs = append(jobs, job)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, unavailable(err, "enqueueing jobs")
	}
	return jobs, nil
}

// Claim leases the next eligible job to the caller. Returns (nil, nil) when
// the queue is empty or paused.
func (q *RedisQueue) Claim(ctx context.Context) (*Job, error) {
	now := time.Now().UnixMilli()
	keys := []string{q.key("wait"), q.key("delayed"), q.key("active"), q.key("paused")}
	res, err := claimScript.Run(ctx, q.rdb, keys,
		now, q.cfg.LeaseDuration.Milliseconds(), q.jobKeyPrefix(),
	).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err, "claiming job")
	}

	flat, ok := res.([]any)
	if !ok || len(flat) == 0 {
		return nil, nil
	}
	fields := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		fields[k] = v
	}
	return jobFromFields(fields)
}

func jobFromFields(fields map[string]string) (*Job, error) {
	job := &Job{
		ID:           fields["id"],
		Name:         fields["name"],
		Payload:      json.RawMessage(fields["payload"]),
		State:        State(fields["state"]),
		FailedReason: fields["failed_reason"],
	}
	if raw := fields["options"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Options); err != nil {
			return nil, fmt.Errorf("decoding job %s options: %w", job.ID, err)
		}
	}
	if raw := fields["attempts_made"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding job %s attempts: %w", job.ID, err)
		}
		job.AttemptsMade = n
	}
	if ms, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		job.CreatedAt = time.UnixMilli(ms)
	}
	if raw := fields["processed_at"]; raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t := time.UnixMilli(ms)
			job.ProcessedAt = &t
		}
	}
	if raw := fields["finished_at"]; raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t := time.UnixMilli(ms)
			job.FinishedAt = &t
		}
	}
	return job, nil
}

// Complete acknowledges a successfully processed job.
func (q *RedisQueue) Complete(ctx context.Context, jobID string) error {
	keys := []string{q.key("active"), q.key("completed")}
	if err := completeScript.Run(ctx, q.rdb, keys,
		time.Now().UnixMilli(), jobID, q.jobKeyPrefix(),
	).Err(); err != nil {
		return unavailable(err, "completing job")
	}
	return nil
}

// Fail records a processing failure. The job is delayed for another attempt
// while attempts remain, otherwise it lands in the terminal failed set.
func (q *RedisQueue) Fail(ctx context.Context, job *Job, reason string) (bool, error) {
	retry := ShouldRetry(job.Options, job.AttemptsMade)
	now := time.Now()
	retryAt := now.Add(NextBackoff(job.Options, job.AttemptsMade)).UnixMilli()

	retryFlag := "0"
	if retry {
		retryFlag = "1"
	}
	keys := []string{q.key("active"), q.key("delayed"), q.key("failed")}
	if err := failScript.Run(ctx, q.rdb, keys,
		now.UnixMilli(), job.ID, q.jobKeyPrefix(), retryFlag, retryAt, reason,
	).Err(); err != nil {
		return false, unavailable(err, "failing job")
	}
	return retry, nil
}

// Counts returns a point-in-time cardinality per requested state. With no
// states given it reports all of them.
func (q *RedisQueue) Counts(ctx context.Context, states ...State) (map[State]int64, error) {
	if len(states) == 0 {
		states = AllStates
	}

	pipe := q.rdb.Pipeline()
	cmds := make(map[State]*redis.IntCmd, len(states))
	for _, state := range states {
		if !state.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown queue state %q", state))
		}
		cmds[state] = pipe.ZCard(ctx, q.stateKey(state))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, unavailable(err, "counting jobs")
	}

	counts := make(map[State]int64, len(states))
	for state, cmd := range cmds {
		counts[state] = cmd.Val()
	}
	return counts, nil
}

// Pause stops waiting jobs from being claimed. In-flight jobs finish.
func (q *RedisQueue) Pause(ctx context.Context) error {
	if err := q.rdb.Set(ctx, q.key("paused"), "1", 0).Err(); err != nil {
		return unavailable(err, "pausing queue")
	}
	return nil
}

// Resume clears the paused flag.
func (q *RedisQueue) Resume(ctx context.Context) error {
	if err := q.rdb.Del(ctx, q.key("paused")).Err(); err != nil {
		return unavailable(err, "resuming queue")
	}
	return nil
}

// IsPaused reports whether new claims are suspended.
func (q *RedisQueue) IsPaused(ctx context.Context) (bool, error) {
	n, err := q.rdb.Exists(ctx, q.key("paused")).Result()
	if err != nil {
		return false, unavailable(err, "checking paused flag")
	}
	return n > 0, nil
}

// Clean removes up to limit jobs in a terminal state finished at least maxAge
// ago and returns their ids.
func (q *RedisQueue) Clean(ctx context.Context, maxAge time.Duration, limit int, state State) ([]string, error) {
	if state != StateCompleted && state != StateFailed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cannot clean jobs in state %q", state))
	}
	if limit <= 0 {
		limit = 100
	}

	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := cleanScript.Run(ctx, q.rdb, []string{q.stateKey(state)},
		cutoff, limit, q.jobKeyPrefix(),
	).Result()
	if err != nil {
		return nil, unavailable(err, "cleaning jobs")
	}

	flat, _ := res.([]any)
	ids := make([]string, 0, len(flat))
	for _, v := range flat {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close releases the underlying connection. Safe to call more than once.
func (q *RedisQueue) Close() error {
	q.closeOnce.Do(func() {
		q.closeErr = q.rdb.Close()
	})
	return q.closeErr
}
