package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/hookline/config"
	"github.com/hookline/hookline/internal/domain/mocks"
	"github.com/hookline/hookline/pkg/logger"
	"github.com/hookline/hookline/pkg/metrics"
)

func TestRetentionSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	cfg := config.RetentionConfig{
		Horizon:       72 * time.Hour,
		SweepInterval: time.Hour,
	}

	t.Run("DeletesExpiredRows", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		logs := mocks.NewMockDeliveryLogRepository(ctrl)

		before := time.Now().UTC()
		logs.EXPECT().
			DeleteOlderThan(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, cutoff time.Time) (int64, error) {
				// The cutoff is the horizon behind now.
				expected := before.Add(-72 * time.Hour)
				assert.WithinDuration(t, expected, cutoff, time.Minute)
				return 17, nil
			})

		sweeper := NewRetentionSweeper(logs, cfg, logger.NewLoggerWithLevel("error"), metrics.New())

		deleted, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(17), deleted)
	})

	t.Run("PropagatesErrors", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		logs := mocks.NewMockDeliveryLogRepository(ctrl)
		logs.EXPECT().
			DeleteOlderThan(ctx, gomock.Any()).
			Return(int64(0), errors.New("db down"))

		sweeper := NewRetentionSweeper(logs, cfg, logger.NewLoggerWithLevel("error"), metrics.New())

		_, err := sweeper.Sweep(ctx)
		assert.ErrorContains(t, err, "retention sweep failed")
	})
}

func TestRetentionSweeper_RunSweepsOnStartAndStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	logs := mocks.NewMockDeliveryLogRepository(ctrl)
	swept := make(chan struct{}, 1)
	logs.EXPECT().
		DeleteOlderThan(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, time.Time) (int64, error) {
			select {
			case swept <- struct{}{}:
			default:
			}
			return 0, nil
		}).
		MinTimes(1)

	cfg := config.RetentionConfig{Horizon: 72 * time.Hour, SweepInterval: time.Hour}
	sweeper := NewRetentionSweeper(logs, cfg, logger.NewLoggerWithLevel("error"), metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	select {
	case <-swept:
	case <-time.After(time.Second):
		t.Fatal("expected an immediate sweep on start")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}
