package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/pkg/logger"
	"github.com/hookline/hookline/pkg/metrics"
)

// ErrJobStoreUnavailable marks enqueue failures so the transport layer can
// report them distinctly from subscription store failures.
var ErrJobStoreUnavailable = errors.New("job store unavailable")

// IngestService accepts incoming webhooks and hands them to the delivery
// queue. Acceptance is decoupled from delivery: a 202 means the webhook is
// durably queued, not that it has been delivered.
type IngestService struct {
	subscriptions domain.SubscriptionCache
	queue         domain.JobQueue
	logger        logger.Logger
	metrics       *metrics.Metrics
}

// NewIngestService creates a new ingest service.
func NewIngestService(subscriptions domain.SubscriptionCache, queue domain.JobQueue, log logger.Logger, m *metrics.Metrics) *IngestService {
	return &IngestService{
		subscriptions: subscriptions,
		queue:         queue,
		logger:        log,
		metrics:       m,
	}
}

// Ingest validates the webhook, assigns it an id and enqueues the first
// delivery attempt. It returns the webhook id.
//
// Errors are typed for the HTTP layer: *domain.ErrNotFound when the
// subscription does not exist, domain.ValidationError when the payload is
// not valid JSON.
func (s *IngestService) Ingest(ctx context.Context, subscriptionID string, payload []byte, eventType, signature *string) (string, error) {
	if _, err := s.subscriptions.Get(ctx, subscriptionID); err != nil {
		return "", err
	}

	if !gjson.ValidBytes(payload) {
		return "", domain.NewValidationError("payload is not valid JSON")
	}

	webhookID := uuid.New().String()
	job := &domain.DeliveryJob{
		SubscriptionID: subscriptionID,
		Payload:        json.RawMessage(payload),
		EventType:      eventType,
		Signature:      signature,
		WebhookID:      webhookID,
		Attempt:        1,
	}

	if err := s.queue.Enqueue(ctx, domain.QueueDeliveries, job); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"webhook_id":      webhookID,
			"subscription_id": subscriptionID,
		}).Error(fmt.Sprintf("Failed to enqueue webhook: %v", err))
		return "", fmt.Errorf("%w: %v", ErrJobStoreUnavailable, err)
	}

	s.metrics.WebhooksIngested.Inc()
	s.logger.WithFields(map[string]interface{}{
		"webhook_id":      webhookID,
		"subscription_id": subscriptionID,
	}).Info("Webhook accepted")

	return webhookID, nil
}
