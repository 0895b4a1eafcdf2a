package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyJobs     = "sfinx:jobs"
	keyPayloads = "sfinx:jobs:payload"
	keyDead     = "sfinx:jobs:dead"
)

// popDueScript atomically claims the earliest due job: removes it from the
// schedule and returns its payload. Running it as a script keeps two workers
// from claiming the same job.
var popDueScript = redis.NewScript(`
    local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 1)
    if #due == 0 then
        return false
    end
    redis.call("ZREM", KEYS[1], due[1])
    local payload = redis.call("HGET", KEYS[2], due[1])
    redis.call("HDEL", KEYS[2], due[1])
    return payload
`)

// Redis is the durable queue backend: the schedule is a sorted set scored by
// fire time, payloads live in a hash keyed by job id. Because ZADD on an
// existing member just moves its score, enqueueing under the same id is
// naturally cancel-then-recreate.
type Redis struct {
	rdb  *redis.Client
	opts Options
}

func NewRedis(rdb *redis.Client, opts Options) *Redis {
	return &Redis{rdb: rdb, opts: opts.withDefaults()}
}

func (q *Redis) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, keyPayloads, job.ID, payload)
	pipe.ZAdd(ctx, keyJobs, redis.Z{
		Score:  float64(job.RunAt.UnixMilli()),
		Member: job.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (q *Redis) Cancel(ctx context.Context, jobID string) error {
	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, keyJobs, jobID)
	pipe.HDel(ctx, keyPayloads, jobID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *Redis) Start(ctx context.Context, h Handler) {
	for i := 0; i < q.opts.Workers; i++ {
		go q.worker(ctx, h)
	}
}

func (q *Redis) worker(ctx context.Context, h Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok, err := q.popDue(ctx, time.Now())
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			zap.S().Errorf("failed to poll job queue: %v", err)
			time.Sleep(q.opts.PollInterval)
			continue
		}
		if !ok {
			time.Sleep(q.opts.PollInterval)
			continue
		}

		if err := h(ctx, job); err != nil {
			q.handleFailure(ctx, job, err)
		}
	}
}

func (q *Redis) popDue(ctx context.Context, now time.Time) (Job, bool, error) {
	raw, err := popDueScript.Run(ctx, q.rdb,
		[]string{keyJobs, keyPayloads},
		strconv.FormatInt(now.UnixMilli(), 10)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Job{}, false, nil
		}
		return Job{}, false, err
	}

	payload, ok := raw.(string)
	if !ok {
		return Job{}, false, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		zap.S().Errorf("dropping malformed job payload: %v", err)
		return Job{}, false, nil
	}
	return job, true, nil
}

func (q *Redis) handleFailure(ctx context.Context, job Job, err error) {
	if errors.Is(err, ErrSkip) {
		zap.S().Infof("job %s skipped: %v", job.ID, err)
		return
	}

	job.Attempts++
	if job.Attempts >= q.opts.MaxAttempts {
		zap.S().Errorf("job %s failed after %d attempts, parking it: %v", job.ID, job.Attempts, err)
		payload, jerr := json.Marshal(job)
		if jerr != nil {
			return
		}
		if derr := q.rdb.RPush(ctx, keyDead, payload).Err(); derr != nil {
			zap.S().Errorf("failed to park job %s: %v", job.ID, derr)
		}
		return
	}

	zap.S().Warnf("job %s failed (attempt %d), retrying in %s: %v", job.ID, job.Attempts, q.opts.Backoff, err)
	job.RunAt = time.Now().Add(q.opts.Backoff)
	if rerr := q.Enqueue(ctx, job); rerr != nil {
		zap.S().Errorf("failed to reschedule job %s: %v", job.ID, rerr)
	}
}

func (q *Redis) Close() error {
	return q.rdb.Close()
}
