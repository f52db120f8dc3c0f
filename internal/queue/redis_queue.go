package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/pkg/logger"
	"github.com/hookline/hookline/pkg/metrics"
)

const (
	keyPrefix = "hookline:queue:"

	// blockTimeout bounds each BLMOVE so the consumer loop can promote
	// scheduled jobs and observe context cancellation.
	blockTimeout = 2 * time.Second

	// promoteBatch caps how many due jobs one promotion pass moves.
	promoteBatch = 128
)

// RedisQueue implements domain.JobQueue on Redis.
//
// Each logical queue uses three keys:
//
//	hookline:queue:<name>            ready list, LPUSH in / BLMOVE out
//	hookline:queue:<name>:scheduled  sorted set of delayed jobs, score = due unix millis
//	hookline:queue:<name>:processing list of jobs dequeued but not yet acked
//
// Dequeue moves the job into the processing list atomically, so a consumer
// crash leaves it there for RequeueOrphans instead of losing it.
type RedisQueue struct {
	client  redis.UniversalClient
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewRedisQueue creates a Redis-backed job queue.
func NewRedisQueue(client redis.UniversalClient, log logger.Logger, m *metrics.Metrics) *RedisQueue {
	return &RedisQueue{
		client:  client,
		logger:  log,
		metrics: m,
	}
}

func readyKey(queue string) string {
	return keyPrefix + queue
}

func scheduledKey(queue string) string {
	return keyPrefix + queue + ":scheduled"
}

func processingKey(queue string) string {
	return keyPrefix + queue + ":processing"
}

// Enqueue makes the job immediately available to consumers.
func (q *RedisQueue) Enqueue(ctx context.Context, queue string, job *domain.DeliveryJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.LPush(ctx, readyKey(queue), raw).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	return nil
}

// EnqueueIn makes the job available once delay has elapsed. Jobs land in the
// scheduled set and are promoted to the ready list by consumers.
func (q *RedisQueue) EnqueueIn(ctx context.Context, delay time.Duration, queue string, job *domain.DeliveryJob) error {
	if delay <= 0 {
		return q.Enqueue(ctx, queue, job)
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	due := time.Now().Add(delay).UnixMilli()
	err = q.client.ZAdd(ctx, scheduledKey(queue), redis.Z{
		Score:  float64(due),
		Member: raw,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	return nil
}

// Dequeue blocks until a job is ready or ctx is done. The returned job sits
// in the processing list until Ack.
func (q *RedisQueue) Dequeue(ctx context.Context, queue string) (*domain.QueuedJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := q.promoteDue(ctx, queue); err != nil {
			q.logger.WithField("queue", queue).Error(fmt.Sprintf("Failed to promote scheduled jobs: %v", err))
		}

		raw, err := q.client.BLMove(ctx, readyKey(queue), processingKey(queue), "RIGHT", "LEFT", blockTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to dequeue job: %w", err)
		}

		var job domain.DeliveryJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			// Unparseable entries can never be processed. Drop from the
			// processing list so they don't recirculate forever.
			q.logger.WithField("queue", queue).Error(fmt.Sprintf("Discarding malformed job: %v", err))
			_ = q.client.LRem(ctx, processingKey(queue), 1, raw).Err()
			continue
		}

		return &domain.QueuedJob{Job: &job, Raw: raw}, nil
	}
}

// Ack removes a completed job from the processing list.
func (q *RedisQueue) Ack(ctx context.Context, queue string, job *domain.QueuedJob) error {
	if err := q.client.LRem(ctx, processingKey(queue), 1, job.Raw).Err(); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// RequeueOrphans drains the processing list back onto the ready list. Call it
// on worker startup, before consumers run, to recover jobs abandoned by a
// crashed worker. Recovered jobs may already have been delivered once; the
// queue is at-least-once by design.
//
// The processing list is shared, so a restart alongside other live worker
// processes also requeues their in-flight jobs and they get delivered twice.
// TODO: move to per-worker processing keys with a liveness check so a
// restart only recovers its own orphans.
func (q *RedisQueue) RequeueOrphans(ctx context.Context, queue string) (int, error) {
	recovered := 0
	for {
		err := q.client.LMove(ctx, processingKey(queue), readyKey(queue), "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			return recovered, nil
		}
		if err != nil {
			return recovered, fmt.Errorf("failed to requeue orphaned job: %w", err)
		}
		recovered++
	}
}

// promoteDue moves scheduled jobs whose due time has passed onto the ready
// list. Promotion is idempotent under concurrent consumers: ZREM reports
// whether this consumer won the job, and only the winner pushes it.
func (q *RedisQueue) promoteDue(ctx context.Context, queue string) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	due, err := q.client.ZRangeByScore(ctx, scheduledKey(queue), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read scheduled jobs: %w", err)
	}

	promoted := 0
	for _, raw := range due {
		removed, err := q.client.ZRem(ctx, scheduledKey(queue), raw).Result()
		if err != nil {
			return fmt.Errorf("failed to claim scheduled job: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, readyKey(queue), raw).Err(); err != nil {
			// Push the job back into the scheduled set so the claim isn't lost.
			_ = q.client.ZAdd(ctx, scheduledKey(queue), redis.Z{Score: 0, Member: raw}).Err()
			return fmt.Errorf("failed to promote scheduled job: %w", err)
		}
		promoted++
	}

	if promoted > 0 && q.metrics != nil {
		q.metrics.QueueDepthPromote.Add(float64(promoted))
	}

	return nil
}
