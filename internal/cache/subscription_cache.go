package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/pkg/kv"
	"github.com/hookline/hookline/pkg/logger"
	"github.com/hookline/hookline/pkg/metrics"
)

// subscriptionCache implements domain.SubscriptionCache as a cache-aside
// layer over the repository. The cache is best effort: a failing or corrupt
// cache degrades to repository reads, it never fails a lookup.
type subscriptionCache struct {
	store   kv.Store
	repo    domain.SubscriptionRepository
	ttl     time.Duration
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewSubscriptionCache creates a cache-aside subscription lookup with the
// given entry TTL.
func NewSubscriptionCache(store kv.Store, repo domain.SubscriptionRepository, ttl time.Duration, log logger.Logger, m *metrics.Metrics) domain.SubscriptionCache {
	return &subscriptionCache{
		store:   store,
		repo:    repo,
		ttl:     ttl,
		logger:  log,
		metrics: m,
	}
}

// Get resolves a subscription, cache first. A cache hit never touches the
// repository; a miss reads the repository and repopulates the cache.
func (c *subscriptionCache) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	key := domain.SubscriptionCacheKey(id)

	cached, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var sub domain.Subscription
		if err := json.Unmarshal([]byte(cached), &sub); err == nil {
			c.metrics.CacheHits.Inc()
			return &sub, nil
		}
		// Corrupt entry. Treat as a miss; the repository read below rewrites it.
		c.logger.WithField("subscription_id", id).Warn("Discarding corrupt subscription cache entry")
		c.metrics.CacheErrors.WithLabelValues("decode").Inc()
	case errors.Is(err, kv.ErrNotFound):
		// Plain miss.
	default:
		c.logger.WithField("subscription_id", id).Warn(fmt.Sprintf("Subscription cache read failed: %v", err))
		c.metrics.CacheErrors.WithLabelValues("get").Inc()
	}

	c.metrics.CacheMisses.Inc()

	sub, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.Cache(ctx, sub)
	return sub, nil
}

// Cache writes the subscription through to the cache. Failures are logged
// and counted, never returned.
func (c *subscriptionCache) Cache(ctx context.Context, sub *domain.Subscription) {
	data, err := json.Marshal(sub)
	if err != nil {
		c.logger.WithField("subscription_id", sub.ID).Warn(fmt.Sprintf("Failed to encode subscription for cache: %v", err))
		c.metrics.CacheErrors.WithLabelValues("encode").Inc()
		return
	}

	if err := c.store.Set(ctx, domain.SubscriptionCacheKey(sub.ID), string(data), c.ttl); err != nil {
		c.logger.WithField("subscription_id", sub.ID).Warn(fmt.Sprintf("Subscription cache write failed: %v", err))
		c.metrics.CacheErrors.WithLabelValues("set").Inc()
	}
}

// Invalidate removes the cache entry for id.
func (c *subscriptionCache) Invalidate(ctx context.Context, id string) {
	if err := c.store.Delete(ctx, domain.SubscriptionCacheKey(id)); err != nil {
		c.logger.WithField("subscription_id", id).Warn(fmt.Sprintf("Subscription cache delete failed: %v", err))
		c.metrics.CacheErrors.WithLabelValues("delete").Inc()
	}
}
