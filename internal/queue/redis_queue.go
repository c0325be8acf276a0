// Package queue is a small Redis-backed job queue with delayed retries and a
// dead list, plus the worker pool that drains it.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakob/backend/internal/logger"
)

// RedisQueue stores jobs in Redis
type RedisQueue struct {
	client  *redis.Client
	log     *zap.Logger
	backoff func(retry int) time.Duration
	now     func() time.Time
}

// NewRedisQueue creates a new Redis queue
func NewRedisQueue(client *redis.Client, log *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client:  client,
		log:     logger.OrNop(log).Named("queue"),
		backoff: calculateBackoff,
		now:     time.Now,
	}
}

// Enqueue adds a job to the queue
func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, payload interface{}, opts ...EnqueueOption) (string, error) {
	return q.EnqueueIn(ctx, queueName, payload, 0, opts...)
}

// EnqueueIn adds a job that becomes visible to workers after delay
func (q *RedisQueue) EnqueueIn(ctx context.Context, queueName string, payload interface{}, delay time.Duration, opts ...EnqueueOption) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := q.now().UTC()
	job := &Job{
		ID:         uuid.New().String(),
		Queue:      queueName,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: DefaultRetryCount,
		CreatedAt:  now,
		UpdatedAt:  now,
		RunAt:      now.Add(delay),
	}
	for _, opt := range opts {
		opt(job)
	}

	if err := q.save(ctx, job); err != nil {
		return "", err
	}

	if delay <= 0 {
		if err := q.client.LPush(ctx, listKey(queueName), job.ID).Err(); err != nil {
			return "", fmt.Errorf("failed to push job to queue: %w", err)
		}
	} else if err := q.schedule(ctx, job); err != nil {
		return "", err
	}

	q.log.Debug("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("queue", queueName),
		zap.Duration("delay", delay))
	return job.ID, nil
}

// Dequeue waits up to timeout for the next job. It returns nil, nil when the
// queue stayed empty.
func (q *RedisQueue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	// First, check for delayed jobs that are ready to run
	q.moveReadyDelayedJobs(ctx, queueName)

	result, err := q.client.BRPop(ctx, timeout, listKey(queueName)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop job from queue: %w", err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected result format from BRPOP")
	}

	job, err := q.GetJob(ctx, result[1])
	if errors.Is(err, ErrJobNotFound) {
		q.log.Warn("dropping job with expired record", zap.String("job_id", result[1]), zap.String("queue", queueName))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.Status = JobStatusProcessing
	if err := q.save(ctx, job); err != nil {
		q.log.Warn("failed to update job status", zap.String("job_id", job.ID), zap.Error(err))
	}
	return job, nil
}

// GetJob loads a job record
func (q *RedisQueue) GetJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.HGet(ctx, jobKey(id), "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job details: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Complete marks a job as completed
func (q *RedisQueue) Complete(ctx context.Context, job *Job) error {
	job.Status = JobStatusCompleted
	job.LastError = ""
	return q.save(ctx, job)
}

// Fail records jobErr on the job. The job is rescheduled with backoff while
// retries remain and jobErr is not permanent; otherwise it is moved to the
// dead list.
func (q *RedisQueue) Fail(ctx context.Context, job *Job, jobErr error) error {
	if jobErr != nil {
		job.LastError = jobErr.Error()
	}

	if job.RetryCount < job.MaxRetries && !IsPermanent(jobErr) {
		delay := q.backoff(job.RetryCount)
		job.RetryCount++
		job.Status = JobStatusFailed
		job.RunAt = q.now().UTC().Add(delay)
		if err := q.save(ctx, job); err != nil {
			return err
		}
		q.log.Info("job scheduled for retry",
			zap.String("job_id", job.ID),
			zap.String("queue", job.Queue),
			zap.Int("retry", job.RetryCount),
			zap.Duration("delay", delay))
		return q.schedule(ctx, job)
	}

	job.Status = JobStatusDead
	if err := q.save(ctx, job); err != nil {
		return err
	}
	if err := q.client.LPush(ctx, deadKey(job.Queue), job.ID).Err(); err != nil {
		return fmt.Errorf("failed to push job to dead list: %w", err)
	}
	q.log.Error("job moved to dead list",
		zap.String("job_id", job.ID),
		zap.String("queue", job.Queue),
		zap.Int("retries", job.RetryCount),
		zap.String("error", job.LastError))
	return nil
}

// Retry takes a job off the dead list and schedules it again after delay
// with a fresh retry budget.
func (q *RedisQueue) Retry(ctx context.Context, jobID string, delay time.Duration) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if err := q.client.LRem(ctx, deadKey(job.Queue), 0, job.ID).Err(); err != nil {
		return fmt.Errorf("failed to remove job from dead list: %w", err)
	}

	job.RetryCount = 0
	job.Status = JobStatusPending
	job.RunAt = q.now().UTC().Add(delay)
	if err := q.save(ctx, job); err != nil {
		return err
	}
	if delay <= 0 {
		return q.client.LPush(ctx, listKey(job.Queue), job.ID).Err()
	}
	return q.schedule(ctx, job)
}

// Stats reports queue depths
func (q *RedisQueue) Stats(ctx context.Context, queueName string) (*QueueStats, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, listKey(queueName))
	delayed := pipe.ZCard(ctx, delayedKey(queueName))
	dead := pipe.LLen(ctx, deadKey(queueName))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return &QueueStats{
		Queue:   queueName,
		Waiting: waiting.Val(),
		Delayed: delayed.Val(),
		Dead:    dead.Val(),
	}, nil
}

func (q *RedisQueue) save(ctx context.Context, job *Job) error {
	job.UpdatedAt = q.now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(job.ID), "data", data)
	pipe.Expire(ctx, jobKey(job.ID), DefaultTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store job details: %w", err)
	}
	return nil
}

func (q *RedisQueue) schedule(ctx context.Context, job *Job) error {
	err := q.client.ZAdd(ctx, delayedKey(job.Queue), &redis.Z{
		Score:  float64(job.RunAt.Unix()),
		Member: job.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add job to delayed queue: %w", err)
	}
	return nil
}

// moveReadyDelayedJobs moves delayed jobs that are ready to run to the main
// queue. ZRem decides which worker owns the move.
func (q *RedisQueue) moveReadyDelayedJobs(ctx context.Context, queueName string) {
	ids, err := q.client.ZRangeByScore(ctx, delayedKey(queueName), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().Unix(), 10),
	}).Result()
	if err != nil {
		q.log.Warn("failed to read delayed jobs", zap.String("queue", queueName), zap.Error(err))
		return
	}

	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, delayedKey(queueName), id).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, listKey(queueName), id).Err(); err != nil {
			q.log.Error("failed to move delayed job", zap.String("job_id", id), zap.Error(err))
		}
	}
}
