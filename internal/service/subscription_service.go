package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/pkg/logger"
)

// SubscriptionService manages webhook subscriptions and keeps the lookup
// cache coherent with the repository.
type SubscriptionService struct {
	repo   domain.SubscriptionRepository
	cache  domain.SubscriptionCache
	logs   domain.DeliveryLogRepository
	logger logger.Logger
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(repo domain.SubscriptionRepository, cache domain.SubscriptionCache, logs domain.DeliveryLogRepository, log logger.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:   repo,
		cache:  cache,
		logs:   logs,
		logger: log,
	}
}

// CreateSubscriptionInput carries the client-supplied fields for a new
// subscription.
type CreateSubscriptionInput struct {
	TargetURL string   `json:"target_url"`
	Secret    *string  `json:"secret,omitempty"`
	Events    []string `json:"events,omitempty"`
}

// UpdateSubscriptionInput carries a partial update. Nil fields are left
// unchanged.
type UpdateSubscriptionInput struct {
	TargetURL *string   `json:"target_url,omitempty"`
	Secret    *string   `json:"secret,omitempty"`
	Events    *[]string `json:"events,omitempty"`
}

// Create validates and stores a new subscription and primes the cache.
func (s *SubscriptionService) Create(ctx context.Context, input CreateSubscriptionInput) (*domain.Subscription, error) {
	sub := &domain.Subscription{
		ID:        uuid.New().String(),
		TargetURL: input.TargetURL,
		Secret:    input.Secret,
		Events:    input.Events,
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.cache.Cache(ctx, sub)
	s.logger.WithFields(map[string]interface{}{
		"subscription_id": sub.ID,
		"target_url":      sub.TargetURL,
	}).Info("Subscription created")

	return sub, nil
}

// Get retrieves a subscription by id, through the cache.
func (s *SubscriptionService) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	return s.cache.Get(ctx, id)
}

// List returns all subscriptions, newest first.
func (s *SubscriptionService) List(ctx context.Context) ([]*domain.Subscription, error) {
	return s.repo.List(ctx)
}

// Update applies a partial update and rewrites the cache entry.
func (s *SubscriptionService) Update(ctx context.Context, id string, input UpdateSubscriptionInput) (*domain.Subscription, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.TargetURL != nil {
		sub.TargetURL = *input.TargetURL
	}
	if input.Secret != nil {
		sub.Secret = input.Secret
	}
	if input.Events != nil {
		sub.Events = *input.Events
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.cache.Cache(ctx, sub)
	s.logger.WithField("subscription_id", id).Info("Subscription updated")

	return sub, nil
}

// Delete removes a subscription and drops its cache entry. Pending jobs for
// the subscription are dropped by the delivery worker when it next re-reads
// the subscription; delivery logs are kept until retention expires them.
func (s *SubscriptionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, id)
	s.logger.WithField("subscription_id", id).Info("Subscription deleted")

	return nil
}

// Attempts returns the most recent delivery attempts targeting a
// subscription.
func (s *SubscriptionService) Attempts(ctx context.Context, id string, limit int) ([]*domain.DeliveryLog, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	attempts, err := s.logs.ListBySubscription(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}
