package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hookline/hookline/config"
	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/pkg/logger"
	"github.com/hookline/hookline/pkg/metrics"
)

// DeliveryWorker consumes delivery jobs and executes attempts against
// subscriber endpoints. Every 2xx response is a success; every other result,
// including transport errors and timeouts, is transient and retried on the
// backoff schedule until the attempt budget is spent.
type DeliveryWorker struct {
	queue         domain.JobQueue
	subscriptions domain.SubscriptionCache
	logs          domain.DeliveryLogRepository
	client        *http.Client
	cfg           config.DeliveryConfig
	logger        logger.Logger
	metrics       *metrics.Metrics
}

// NewDeliveryWorker creates a delivery worker. The HTTP client timeout caps
// each attempt end to end, including the response body read.
func NewDeliveryWorker(
	queue domain.JobQueue,
	subscriptions domain.SubscriptionCache,
	logs domain.DeliveryLogRepository,
	cfg config.DeliveryConfig,
	log logger.Logger,
	m *metrics.Metrics,
) *DeliveryWorker {
	return &DeliveryWorker{
		queue:         queue,
		subscriptions: subscriptions,
		logs:          logs,
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		cfg:     cfg,
		logger:  log,
		metrics: m,
	}
}

// Run recovers orphaned jobs, then consumes the delivery queue with the
// configured number of concurrent consumers until ctx is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	recovered, err := w.queue.RequeueOrphans(ctx, domain.QueueDeliveries)
	if err != nil {
		return fmt.Errorf("failed to recover orphaned jobs: %w", err)
	}
	if recovered > 0 {
		w.logger.WithField("count", recovered).Warn("Requeued jobs abandoned by a previous worker")
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			return w.consume(ctx)
		})
	}
	return g.Wait()
}

func (w *DeliveryWorker) consume(ctx context.Context) error {
	for {
		queued, err := w.queue.Dequeue(ctx, domain.QueueDeliveries)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if err := w.Process(ctx, queued.Job); err != nil {
			// Leave the job in the processing list unacked; RequeueOrphans
			// redelivers it. Re-running the attempt may duplicate a row,
			// which at-least-once accepts.
			w.logger.WithField("webhook_id", queued.Job.WebhookID).Error(fmt.Sprintf("Attempt not completed, leaving job for redelivery: %v", err))
			continue
		}

		if err := w.queue.Ack(ctx, domain.QueueDeliveries, queued); err != nil {
			// The job was handled; a failed ack means it may be redelivered.
			w.logger.WithField("webhook_id", queued.Job.WebhookID).Error(fmt.Sprintf("Failed to ack job: %v", err))
		}
	}
}

// Process executes a single delivery attempt for job. It re-resolves the
// subscription, performs the HTTP POST, records the attempt and schedules
// the retry when one is due.
//
// A non-nil error means the attempt did not complete durably: the row was
// not written or the retry was not scheduled. The caller must not ack, so
// the job stays recoverable.
func (w *DeliveryWorker) Process(ctx context.Context, job *domain.DeliveryJob) error {
	attemptLog := w.logger.WithFields(map[string]interface{}{
		"webhook_id":      job.WebhookID,
		"subscription_id": job.SubscriptionID,
		"attempt_number":  job.Attempt,
	})

	// The subscription is re-read every attempt so deletions and target URL
	// changes between retries take effect.
	sub, err := w.subscriptions.Get(ctx, job.SubscriptionID)
	if domain.IsNotFound(err) {
		attemptLog.Warn("Dropping webhook: subscription no longer exists")
		w.metrics.DeliveryAttempts.WithLabelValues(metrics.OutcomeDropped).Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve subscription: %w", err)
	}

	statusCode, attemptErr := w.post(ctx, sub, job)

	outcome := w.classify(statusCode, attemptErr, job.Attempt)

	// The attempt row must be committed before the next attempt can exist,
	// so attempt numbers stay contiguous per webhook.
	if err := w.record(ctx, job, sub, outcome, statusCode, attemptErr); err != nil {
		return err
	}

	if outcome == domain.OutcomeFailedAttempt {
		retry := *job
		retry.Attempt = job.Attempt + 1
		if err := w.queue.EnqueueIn(ctx, w.backoffAfter(job.Attempt), domain.QueueDeliveries, &retry); err != nil {
			return fmt.Errorf("failed to schedule retry: %w", err)
		}
	}

	return nil
}

// post performs the HTTP POST for one attempt. It returns the status code
// when a response was received, and a non-nil error when the attempt failed
// before or instead of producing a 2xx.
func (w *DeliveryWorker) post(ctx context.Context, sub *domain.Subscription, job *domain.DeliveryJob) (*int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.TargetURL, bytes.NewReader(job.Payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Id", job.WebhookID)
	if job.EventType != nil {
		req.Header.Set("X-Event-Type", *job.EventType)
	}
	if job.Signature != nil {
		req.Header.Set("X-Signature", *job.Signature)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return &code, nil
	}
	return &code, fmt.Errorf("HTTP %d", code)
}

func (w *DeliveryWorker) classify(statusCode *int, attemptErr error, attempt int) domain.Outcome {
	if attemptErr == nil {
		return domain.OutcomeSuccess
	}
	if attempt >= w.cfg.MaxAttempts {
		return domain.OutcomeFailure
	}
	return domain.OutcomeFailedAttempt
}

// record writes the attempt row and emits the attempt log line and metric.
// A failed write is returned so the attempt is not acked on top of a
// missing row.
func (w *DeliveryWorker) record(ctx context.Context, job *domain.DeliveryJob, sub *domain.Subscription, outcome domain.Outcome, statusCode *int, attemptErr error) error {
	row := &domain.DeliveryLog{
		ID:             uuid.New().String(),
		WebhookID:      job.WebhookID,
		SubscriptionID: job.SubscriptionID,
		TargetURL:      sub.TargetURL,
		Timestamp:      time.Now().UTC(),
		AttemptNumber:  job.Attempt,
		Outcome:        outcome,
	}
	if statusCode != nil {
		row.StatusCode = statusCode
	}
	if attemptErr != nil {
		msg := attemptErr.Error()
		row.Error = &msg
	}

	if err := w.logs.Create(ctx, row); err != nil {
		return fmt.Errorf("failed to record delivery attempt: %w", err)
	}

	fields := map[string]interface{}{
		"webhook_id":      job.WebhookID,
		"subscription_id": job.SubscriptionID,
		"target_url":      sub.TargetURL,
		"attempt_number":  job.Attempt,
		"outcome":         string(outcome),
	}
	if statusCode != nil {
		fields["status_code"] = *statusCode
	}
	if attemptErr != nil {
		fields["error"] = attemptErr.Error()
	}

	switch outcome {
	case domain.OutcomeSuccess:
		w.logger.WithFields(fields).Info("Webhook delivered")
		w.metrics.DeliveryAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
	case domain.OutcomeFailedAttempt:
		w.logger.WithFields(fields).Warn("Delivery attempt failed, retry scheduled")
		w.metrics.DeliveryAttempts.WithLabelValues(metrics.OutcomeFailedAttempt).Inc()
	case domain.OutcomeFailure:
		w.logger.WithFields(fields).Error("Webhook failed permanently")
		w.metrics.DeliveryAttempts.WithLabelValues(metrics.OutcomeFailure).Inc()
	}

	return nil
}

// backoffAfter returns the wait between attempt n and the next one. A
// schedule shorter than the attempt budget repeats its last entry.
func (w *DeliveryWorker) backoffAfter(attempt int) time.Duration {
	schedule := w.cfg.BackoffSchedule
	if len(schedule) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}
