package service

import (
	"context"

	"github.com/hookline/hookline/internal/domain"
)

// WebhookStatus is the delivery history of one webhook with its current
// state derived from the last attempt.
type WebhookStatus struct {
	WebhookID string                `json:"webhook_id"`
	State     string                `json:"state"`
	Attempts  []*domain.DeliveryLog `json:"attempts"`
}

// Webhook states derived from the attempt history.
const (
	StateDelivered = "delivered"
	StateFailed    = "failed"
	StatePending   = "pending"
)

// StatusService reads delivery history for webhooks.
type StatusService struct {
	logs domain.DeliveryLogRepository
}

// NewStatusService creates a new status service.
func NewStatusService(logs domain.DeliveryLogRepository) *StatusService {
	return &StatusService{logs: logs}
}

// Status returns the attempt history for a webhook id. A webhook with no
// rows yet is unknown: either the id was never issued or every attempt has
// aged out of retention, the two are indistinguishable.
func (s *StatusService) Status(ctx context.Context, webhookID string) (*WebhookStatus, error) {
	attempts, err := s.logs.ListByWebhookID(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return nil, &domain.ErrNotFound{Entity: "webhook", ID: webhookID}
	}

	last := attempts[len(attempts)-1]
	state := StatePending
	switch last.Outcome {
	case domain.OutcomeSuccess:
		state = StateDelivered
	case domain.OutcomeFailure:
		state = StateFailed
	}

	return &WebhookStatus{
		WebhookID: webhookID,
		State:     state,
		Attempts:  attempts,
	}, nil
}
