package service

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/domain/mocks"
	"github.com/hookline/hookline/pkg/logger"
)

type subscriptionServiceFixture struct {
	repo  *mocks.MockSubscriptionRepository
	cache *mocks.MockSubscriptionCache
	logs  *mocks.MockDeliveryLogRepository
	svc   *SubscriptionService
}

func newSubscriptionServiceFixture(t *testing.T) *subscriptionServiceFixture {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := &subscriptionServiceFixture{
		repo:  mocks.NewMockSubscriptionRepository(ctrl),
		cache: mocks.NewMockSubscriptionCache(ctrl),
		logs:  mocks.NewMockDeliveryLogRepository(ctrl),
	}
	f.svc = NewSubscriptionService(f.repo, f.cache, f.logs, logger.NewLoggerWithLevel("error"))
	return f
}

func TestSubscriptionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newSubscriptionServiceFixture(t)

		f.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
		f.cache.EXPECT().Cache(ctx, gomock.Any())

		sub, err := f.svc.Create(ctx, CreateSubscriptionInput{
			TargetURL: "https://example.com/hooks",
			Events:    []string{"order.created"},
		})
		require.NoError(t, err)

		_, err = uuid.Parse(sub.ID)
		assert.NoError(t, err, "subscription id must be a UUID")
		assert.Equal(t, "https://example.com/hooks", sub.TargetURL)
	})

	t.Run("InvalidTargetURL", func(t *testing.T) {
		f := newSubscriptionServiceFixture(t)

		_, err := f.svc.Create(ctx, CreateSubscriptionInput{TargetURL: "not a url"})
		var validationErr domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("MissingTargetURL", func(t *testing.T) {
		f := newSubscriptionServiceFixture(t)

		_, err := f.svc.Create(ctx, CreateSubscriptionInput{})
		var validationErr domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestSubscriptionService_Update(t *testing.T) {
	ctx := context.Background()
	id := "7a9f1f6e-6a54-44a1-9a2c-111111111111"

	t.Run("PartialUpdate", func(t *testing.T) {
		f := newSubscriptionServiceFixture(t)

		secret := "whsec_old"
		existing := &domain.Subscription{
			ID:        id,
			TargetURL: "https://example.com/hooks",
			Secret:    &secret,
		}

		f.repo.EXPECT().GetByID(ctx, id).Return(existing, nil)
		f.repo.EXPECT().Update(ctx, gomock.Any()).Return(nil)
		f.cache.EXPECT().Cache(ctx, gomock.Any())

		newURL := "https://example.com/v2/hooks"
		sub, err := f.svc.Update(ctx, id, UpdateSubscriptionInput{TargetURL: &newURL})
		require.NoError(t, err)

		assert.Equal(t, newURL, sub.TargetURL)
		// Untouched fields survive a partial update.
		require.NotNil(t, sub.Secret)
		assert.Equal(t, "whsec_old", *sub.Secret)
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newSubscriptionServiceFixture(t)

		f.repo.EXPECT().GetByID(ctx, id).
			Return(nil, &domain.ErrNotFound{Entity: "subscription", ID: id})

		_, err := f.svc.Update(ctx, id, UpdateSubscriptionInput{})
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("InvalidNewURL", func(t *testing.T) {
		f := newSubscriptionServiceFixture(t)

		existing := &domain.Subscription{ID: id, TargetURL: "https://example.com/hooks"}
		f.repo.EXPECT().GetByID(ctx, id).Return(existing, nil)

		bad := "nonsense"
		_, err := f.svc.Update(ctx, id, UpdateSubscriptionInput{TargetURL: &bad})
		var validationErr domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestSubscriptionService_Delete(t *testing.T) {
	ctx := context.Background()
	id := "7a9f1f6e-6a54-44a1-9a2c-111111111111"

	t.Run("Success", func(t *testing.T) {
		f := newSubscriptionServiceFixture(t)

		f.repo.EXPECT().Delete(ctx, id).Return(nil)
		f.cache.EXPECT().Invalidate(ctx, id)

		assert.NoError(t, f.svc.Delete(ctx, id))
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newSubscriptionServiceFixture(t)

		f.repo.EXPECT().Delete(ctx, id).
			Return(&domain.ErrNotFound{Entity: "subscription", ID: id})

		err := f.svc.Delete(ctx, id)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestSubscriptionService_Attempts(t *testing.T) {
	ctx := context.Background()
	id := "7a9f1f6e-6a54-44a1-9a2c-111111111111"

	t.Run("Success", func(t *testing.T) {
		f := newSubscriptionServiceFixture(t)

		f.repo.EXPECT().GetByID(ctx, id).Return(&domain.Subscription{ID: id}, nil)
		f.logs.EXPECT().ListBySubscription(ctx, id, 50).
			Return([]*domain.DeliveryLog{{SubscriptionID: id}}, nil)

		attempts, err := f.svc.Attempts(ctx, id, 50)
		require.NoError(t, err)
		assert.Len(t, attempts, 1)
	})

	t.Run("UnknownSubscription", func(t *testing.T) {
		f := newSubscriptionServiceFixture(t)

		f.repo.EXPECT().GetByID(ctx, id).
			Return(nil, &domain.ErrNotFound{Entity: "subscription", ID: id})

		_, err := f.svc.Attempts(ctx, id, 50)
		assert.True(t, domain.IsNotFound(err))
	})
}
