package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/domain/mocks"
	"github.com/hookline/hookline/pkg/kv"
	"github.com/hookline/hookline/pkg/logger"
	"github.com/hookline/hookline/pkg/metrics"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

func testSubscription() *domain.Subscription {
	return &domain.Subscription{
		ID:        "7a9f1f6e-6a54-44a1-9a2c-111111111111",
		TargetURL: "https://example.com/hooks",
	}
}

func TestSubscriptionCache_Get(t *testing.T) {
	ctx := context.Background()
	log := logger.NewLoggerWithLevel("error")

	t.Run("MissThenHit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockSubscriptionRepository(ctrl)
		store := kv.NewMemoryStore()
		sub := testSubscription()

		// Only the first lookup may touch the repository.
		repo.EXPECT().GetByID(ctx, sub.ID).Return(sub, nil).Times(1)

		c := NewSubscriptionCache(store, repo, time.Minute, log, metrics.New())

		got, err := c.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, sub.TargetURL, got.TargetURL)

		got, err = c.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, got.ID)
	})

	t.Run("NotFoundPassesThrough", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockSubscriptionRepository(ctrl)
		repo.EXPECT().GetByID(ctx, "missing").
			Return(nil, &domain.ErrNotFound{Entity: "subscription", ID: "missing"})

		c := NewSubscriptionCache(kv.NewMemoryStore(), repo, time.Minute, log, metrics.New())

		_, err := c.Get(ctx, "missing")
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("CorruptEntryFallsThrough", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockSubscriptionRepository(ctrl)
		store := kv.NewMemoryStore()
		sub := testSubscription()

		require.NoError(t, store.Set(ctx, domain.SubscriptionCacheKey(sub.ID), "{not json", time.Minute))
		repo.EXPECT().GetByID(ctx, sub.ID).Return(sub, nil)

		c := NewSubscriptionCache(store, repo, time.Minute, log, metrics.New())

		got, err := c.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, got.ID)

		// The corrupt entry was rewritten with the repository copy.
		cached, err := store.Get(ctx, domain.SubscriptionCacheKey(sub.ID))
		require.NoError(t, err)
		assert.Contains(t, cached, sub.TargetURL)
	})

	t.Run("StoreOutageFallsThrough", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockSubscriptionRepository(ctrl)
		sub := testSubscription()
		repo.EXPECT().GetByID(ctx, sub.ID).Return(sub, nil)

		c := NewSubscriptionCache(failingStore{}, repo, time.Minute, log, metrics.New())

		got, err := c.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, got.ID)
	})

	t.Run("RepositoryErrorPropagates", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockSubscriptionRepository(ctrl)
		repo.EXPECT().GetByID(ctx, "x").Return(nil, errors.New("db down"))

		c := NewSubscriptionCache(kv.NewMemoryStore(), repo, time.Minute, log, metrics.New())

		_, err := c.Get(ctx, "x")
		assert.ErrorContains(t, err, "db down")
	})
}

func TestSubscriptionCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockSubscriptionRepository(ctrl)
	store := kv.NewMemoryStore()
	sub := testSubscription()

	c := NewSubscriptionCache(store, repo, time.Minute, logger.NewLoggerWithLevel("error"), metrics.New())

	c.Cache(ctx, sub)
	_, err := store.Get(ctx, domain.SubscriptionCacheKey(sub.ID))
	require.NoError(t, err)

	c.Invalidate(ctx, sub.ID)
	_, err = store.Get(ctx, domain.SubscriptionCacheKey(sub.ID))
	assert.ErrorIs(t, err, kv.ErrNotFound)
}
