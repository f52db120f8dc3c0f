package domain

//go:generate mockgen -destination mocks/mock_subscription_repository.go -package mocks github.com/hookline/hookline/internal/domain SubscriptionRepository
//go:generate mockgen -destination mocks/mock_subscription_cache.go -package mocks github.com/hookline/hookline/internal/domain SubscriptionCache

import (
	"context"
	"net/url"
	"time"

	"github.com/asaskevich/govalidator"
)

// Subscription is a registered webhook receiver. Events is advisory
// metadata for downstream consumers; the delivery pipeline does not filter
// by it.
type Subscription struct {
	ID        string    `json:"id"`
	TargetURL string    `json:"target_url"`
	Secret    *string   `json:"secret,omitempty"`
	Events    []string  `json:"events,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CacheKey returns the cache key for a subscription id.
func SubscriptionCacheKey(id string) string {
	return "subscription:" + id
}

// Validate checks that the subscription is well formed. The target URL must
// be an absolute http or https URL.
func (s *Subscription) Validate() error {
	if s.ID == "" {
		return NewValidationError("id is required")
	}
	if s.TargetURL == "" {
		return NewValidationError("target_url is required")
	}
	if !govalidator.IsRequestURL(s.TargetURL) {
		return NewValidationError("target_url is not a valid URL")
	}

	parsed, err := url.Parse(s.TargetURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return NewValidationError("target_url must be an absolute http(s) URL")
	}

	return nil
}

// SubscriptionRepository defines the interface for subscription data access
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context) ([]*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error
}

// SubscriptionCache fronts SubscriptionRepository reads with a best-effort
// key/value cache. Cache failures are swallowed: Cache and Invalidate never
// report them, and Get falls through to the repository.
type SubscriptionCache interface {
	// Cache writes the full record through to the cache.
	Cache(ctx context.Context, sub *Subscription)

	// Get resolves a subscription, cache first. Returns *ErrNotFound when
	// the subscription exists in neither the cache nor the repository.
	Get(ctx context.Context, id string) (*Subscription, error)

	// Invalidate removes the cache entry for id.
	Invalidate(ctx context.Context, id string)
}
