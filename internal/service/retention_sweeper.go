package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hookline/hookline/config"
	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/pkg/logger"
	"github.com/hookline/hookline/pkg/metrics"
)

// RetentionSweeper periodically deletes delivery logs older than the
// retention horizon. Age is measured from the attempt timestamp, so a
// webhook's early attempts can expire before its later ones.
type RetentionSweeper struct {
	logs    domain.DeliveryLogRepository
	cfg     config.RetentionConfig
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewRetentionSweeper creates a retention sweeper.
func NewRetentionSweeper(logs domain.DeliveryLogRepository, cfg config.RetentionConfig, log logger.Logger, m *metrics.Metrics) *RetentionSweeper {
	return &RetentionSweeper{
		logs:    logs,
		cfg:     cfg,
		logger:  log,
		metrics: m,
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
// Sweep errors are logged and the loop keeps going; rows that survive an
// outage are picked up by the next sweep.
func (s *RetentionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Sweep deletes expired rows once and returns the number removed.
func (s *RetentionSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.Horizon)

	deleted, err := s.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep failed: %w", err)
	}

	if deleted > 0 {
		s.metrics.LogsPurged.Add(float64(deleted))
		s.logger.WithFields(map[string]interface{}{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Purged expired delivery logs")
	}

	return deleted, nil
}

func (s *RetentionSweeper) sweep(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error(err.Error())
	}
}
