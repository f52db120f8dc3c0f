package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hookline/hookline/config"
	"github.com/hookline/hookline/internal/cache"
	"github.com/hookline/hookline/internal/database"
	"github.com/hookline/hookline/internal/queue"
	"github.com/hookline/hookline/internal/repository"
	"github.com/hookline/hookline/internal/service"
	"github.com/hookline/hookline/pkg/kv"
	"github.com/hookline/hookline/pkg/logger"
	"github.com/hookline/hookline/pkg/metrics"
)

// Worker wires the delivery process: the queue consumers and the retention
// sweeper. It shares no state with the API process beyond Postgres and
// Redis.
type Worker struct {
	config  *config.Config
	logger  logger.Logger
	metrics *metrics.Metrics

	db          *sql.DB
	redisClient *redis.Client

	delivery *service.DeliveryWorker
	sweeper  *service.RetentionSweeper
}

// NewWorker creates an uninitialized worker.
func NewWorker(cfg *config.Config) *Worker {
	return &Worker{
		config:  cfg,
		logger:  logger.NewLoggerWithLevel(cfg.LogLevel),
		metrics: metrics.New(),
	}
}

// Initialize connects Postgres and Redis and builds the delivery pipeline.
func (w *Worker) Initialize() error {
	db, err := sql.Open("postgres", w.config.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(w.config.Delivery.Concurrency + 5)
	db.SetConnMaxLifetime(5 * time.Minute)
	w.db = db

	if err := database.InitializeDatabase(w.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	opts, err := redis.ParseURL(w.config.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to parse redis URL: %w", err)
	}
	w.redisClient = redis.NewClient(opts)
	if err := w.redisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	subscriptionRepo := repository.NewSubscriptionRepository(w.db)
	deliveryLogRepo := repository.NewDeliveryLogRepository(w.db)

	store := kv.NewRedisStore(w.redisClient)
	subscriptionCache := cache.NewSubscriptionCache(store, subscriptionRepo, w.config.Delivery.CacheTTL, w.logger, w.metrics)
	jobQueue := queue.NewRedisQueue(w.redisClient, w.logger, w.metrics)

	w.delivery = service.NewDeliveryWorker(jobQueue, subscriptionCache, deliveryLogRepo, w.config.Delivery, w.logger, w.metrics)
	w.sweeper = service.NewRetentionSweeper(deliveryLogRepo, w.config.Retention, w.logger, w.metrics)

	return nil
}

// Run consumes deliveries and sweeps retention until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.WithFields(map[string]interface{}{
		"concurrency":  w.config.Delivery.Concurrency,
		"max_attempts": w.config.Delivery.MaxAttempts,
	}).Info("Delivery worker starting")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.delivery.Run(ctx)
	})
	g.Go(func() error {
		w.sweeper.Run(ctx)
		return nil
	})

	return g.Wait()
}

// Close releases the worker's connections.
func (w *Worker) Close() {
	if w.redisClient != nil {
		if err := w.redisClient.Close(); err != nil {
			w.logger.Error(fmt.Sprintf("Failed to close redis client: %v", err))
		}
	}
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			w.logger.Error(fmt.Sprintf("Failed to close database: %v", err))
		}
	}
}
