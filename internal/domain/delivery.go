package domain

//go:generate mockgen -destination mocks/mock_delivery_log_repository.go -package mocks github.com/hookline/hookline/internal/domain DeliveryLogRepository
//go:generate mockgen -destination mocks/mock_job_queue.go -package mocks github.com/hookline/hookline/internal/domain JobQueue

import (
	"context"
	"encoding/json"
	"time"
)

// QueueDeliveries is the logical queue name the delivery pipeline uses.
const QueueDeliveries = "deliveries"

// Outcome classifies one delivery attempt. FailedAttempt is non-terminal;
// Success and Failure are terminal for a webhook.
type Outcome string

const (
	OutcomeSuccess       Outcome = "Success"
	OutcomeFailedAttempt Outcome = "Failed Attempt"
	OutcomeFailure       Outcome = "Failure"
)

// Terminal reports whether the outcome ends the webhook's attempt sequence.
func (o Outcome) Terminal() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

// DeliveryJob is the unit of work carried across the job queue. It is
// serialized as JSON; the payload is kept raw so it round-trips losslessly.
type DeliveryJob struct {
	SubscriptionID string          `json:"subscription_id"`
	Payload        json.RawMessage `json:"payload"`
	EventType      *string         `json:"event_type,omitempty"`
	Signature      *string         `json:"signature,omitempty"`
	WebhookID      string          `json:"webhook_id"`
	Attempt        int             `json:"attempt"`
}

// DeliveryLog is one row per executed attempt.
type DeliveryLog struct {
	ID             string    `json:"id"`
	WebhookID      string    `json:"webhook_id"`
	SubscriptionID string    `json:"subscription_id"`
	TargetURL      string    `json:"target_url"`
	Timestamp      time.Time `json:"timestamp"`
	AttemptNumber  int       `json:"attempt_number"`
	Outcome        Outcome   `json:"outcome"`
	StatusCode     *int      `json:"status_code,omitempty"`
	Error          *string   `json:"error,omitempty"`
}

// DeliveryLogRepository defines the interface for delivery log data access
type DeliveryLogRepository interface {
	Create(ctx context.Context, log *DeliveryLog) error
	ListByWebhookID(ctx context.Context, webhookID string) ([]*DeliveryLog, error)
	ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*DeliveryLog, error)

	// DeleteOlderThan removes rows with timestamp before cutoff in a single
	// transaction and returns the number of rows deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// QueuedJob is a dequeued job together with the raw queue entry needed to
// acknowledge it.
type QueuedJob struct {
	Job *DeliveryJob
	Raw string
}

// JobQueue is the durable at-least-once job store. A dequeued job is owned
// by its consumer until acknowledged; unacknowledged jobs are redelivered
// after crash recovery.
type JobQueue interface {
	// Enqueue makes the job immediately available to consumers.
	Enqueue(ctx context.Context, queue string, job *DeliveryJob) error

	// EnqueueIn makes the job available after delay elapses. The delay is a
	// lower bound: promotion may lag by scheduler granularity, never run early.
	EnqueueIn(ctx context.Context, delay time.Duration, queue string, job *DeliveryJob) error

	// Dequeue blocks until a job is ready or ctx is done.
	Dequeue(ctx context.Context, queue string) (*QueuedJob, error)

	// Ack releases a completed job.
	Ack(ctx context.Context, queue string, job *QueuedJob) error

	// RequeueOrphans returns jobs abandoned by crashed consumers to the
	// ready queue and reports how many were recovered.
	RequeueOrphans(ctx context.Context, queue string) (int, error)
}
