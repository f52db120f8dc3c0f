package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/hookline/internal/domain"
)

func TestSubscriptionRepository_Create(t *testing.T) {
	ctx := context.Background()
	secret := "whsec_test"

	sub := &domain.Subscription{
		ID:        "7a9f1f6e-6a54-44a1-9a2c-111111111111",
		TargetURL: "https://example.com/hooks",
		Secret:    &secret,
		Events:    []string{"order.created"},
	}

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		repo := NewSubscriptionRepository(db)

		mock.ExpectExec("INSERT INTO subscriptions").
			WithArgs(
				sub.ID,
				sub.TargetURL,
				sub.Secret,
				sqlmock.AnyArg(), // events JSON
				sqlmock.AnyArg(), // created_at
				sqlmock.AnyArg(), // updated_at
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.Create(ctx, sub)
		assert.NoError(t, err)
		assert.False(t, sub.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		repo := NewSubscriptionRepository(db)

		mock.ExpectExec("INSERT INTO subscriptions").
			WillReturnError(errors.New("connection refused"))

		err = repo.Create(ctx, sub)
		assert.ErrorContains(t, err, "failed to create subscription")
	})
}

func TestSubscriptionRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	id := "7a9f1f6e-6a54-44a1-9a2c-111111111111"
	now := time.Now().UTC()

	t.Run("Found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		repo := NewSubscriptionRepository(db)

		rows := sqlmock.NewRows([]string{"id", "target_url", "secret", "events", "created_at", "updated_at"}).
			AddRow(id, "https://example.com/hooks", "whsec_test", []byte(`["order.created","order.updated"]`), now, now)

		mock.ExpectQuery("SELECT (.+) FROM subscriptions").
			WithArgs(id).
			WillReturnRows(rows)

		sub, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, sub.ID)
		assert.Equal(t, "https://example.com/hooks", sub.TargetURL)
		require.NotNil(t, sub.Secret)
		assert.Equal(t, "whsec_test", *sub.Secret)
		assert.Equal(t, []string{"order.created", "order.updated"}, sub.Events)
	})

	t.Run("NullableFieldsAbsent", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		repo := NewSubscriptionRepository(db)

		rows := sqlmock.NewRows([]string{"id", "target_url", "secret", "events", "created_at", "updated_at"}).
			AddRow(id, "https://example.com/hooks", nil, nil, now, now)

		mock.ExpectQuery("SELECT (.+) FROM subscriptions").
			WithArgs(id).
			WillReturnRows(rows)

		sub, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, sub.Secret)
		assert.Nil(t, sub.Events)
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		repo := NewSubscriptionRepository(db)

		mock.ExpectQuery("SELECT (.+) FROM subscriptions").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"id", "target_url", "secret", "events", "created_at", "updated_at"}))

		sub, err := repo.GetByID(ctx, id)
		assert.Nil(t, sub)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestSubscriptionRepository_Update(t *testing.T) {
	ctx := context.Background()

	sub := &domain.Subscription{
		ID:        "7a9f1f6e-6a54-44a1-9a2c-111111111111",
		TargetURL: "https://example.com/v2/hooks",
	}

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		repo := NewSubscriptionRepository(db)

		mock.ExpectExec("UPDATE subscriptions").
			WithArgs(sub.ID, sub.TargetURL, nil, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Update(ctx, sub))
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		repo := NewSubscriptionRepository(db)

		mock.ExpectExec("UPDATE subscriptions").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.Update(ctx, sub)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestSubscriptionRepository_Delete(t *testing.T) {
	ctx := context.Background()
	id := "7a9f1f6e-6a54-44a1-9a2c-111111111111"

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		repo := NewSubscriptionRepository(db)

		mock.ExpectExec("DELETE FROM subscriptions").
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Delete(ctx, id))
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		repo := NewSubscriptionRepository(db)

		mock.ExpectExec("DELETE FROM subscriptions").
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.Delete(ctx, id)
		assert.True(t, domain.IsNotFound(err))
	})
}
