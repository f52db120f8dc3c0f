package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hookline/hookline/config"
	"github.com/hookline/hookline/internal/cache"
	"github.com/hookline/hookline/internal/database"
	"github.com/hookline/hookline/internal/domain"
	httphandler "github.com/hookline/hookline/internal/http"
	"github.com/hookline/hookline/internal/http/middleware"
	"github.com/hookline/hookline/internal/queue"
	"github.com/hookline/hookline/internal/repository"
	"github.com/hookline/hookline/internal/service"
	"github.com/hookline/hookline/pkg/kv"
	"github.com/hookline/hookline/pkg/logger"
	"github.com/hookline/hookline/pkg/metrics"
)

// App wires the API process: HTTP ingest and management endpoints backed by
// Postgres and the Redis job queue.
type App struct {
	config  *config.Config
	logger  logger.Logger
	metrics *metrics.Metrics

	db          *sql.DB
	redisClient *redis.Client

	subscriptionRepo  domain.SubscriptionRepository
	deliveryLogRepo   domain.DeliveryLogRepository
	subscriptionCache domain.SubscriptionCache
	jobQueue          domain.JobQueue

	ingestService       *service.IngestService
	subscriptionService *service.SubscriptionService
	statusService       *service.StatusService

	mux    *http.ServeMux
	server *http.Server
}

// AppOption customizes app construction, mainly for tests.
type AppOption func(*App)

// WithMockDB injects a database handle instead of opening one.
func WithMockDB(db *sql.DB) AppOption {
	return func(a *App) {
		a.db = db
	}
}

// WithLogger overrides the default logger.
func WithLogger(log logger.Logger) AppOption {
	return func(a *App) {
		a.logger = log
	}
}

// NewApp creates an uninitialized app.
func NewApp(cfg *config.Config, opts ...AppOption) *App {
	app := &App{
		config:  cfg,
		logger:  logger.NewLoggerWithLevel(cfg.LogLevel),
		metrics: metrics.New(),
		mux:     http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

// InitDB opens the Postgres connection and creates the schema if needed.
func (a *App) InitDB() error {
	if a.db == nil {
		db, err := sql.Open("postgres", a.config.Database.DSN())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}

		if err := db.Ping(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		a.db = db
	}

	if err := database.InitializeDatabase(a.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	a.logger.WithFields(map[string]interface{}{
		"host":   a.config.Database.Host,
		"dbname": a.config.Database.DBName,
	}).Info("Database ready")

	return nil
}

// InitRedis connects the Redis client used by the queue and the cache.
func (a *App) InitRedis() error {
	opts, err := redis.ParseURL(a.config.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	a.redisClient = client
	a.logger.WithField("addr", opts.Addr).Info("Redis ready")
	return nil
}

// InitRepositories builds the data access layer.
func (a *App) InitRepositories() {
	a.subscriptionRepo = repository.NewSubscriptionRepository(a.db)
	a.deliveryLogRepo = repository.NewDeliveryLogRepository(a.db)

	store := kv.NewRedisStore(a.redisClient)
	a.subscriptionCache = cache.NewSubscriptionCache(store, a.subscriptionRepo, a.config.Delivery.CacheTTL, a.logger, a.metrics)
	a.jobQueue = queue.NewRedisQueue(a.redisClient, a.logger, a.metrics)
}

// InitServices builds the service layer.
func (a *App) InitServices() {
	a.ingestService = service.NewIngestService(a.subscriptionCache, a.jobQueue, a.logger, a.metrics)
	a.subscriptionService = service.NewSubscriptionService(a.subscriptionRepo, a.subscriptionCache, a.deliveryLogRepo, a.logger)
	a.statusService = service.NewStatusService(a.deliveryLogRepo)
}

// InitHandlers registers all HTTP routes on the mux.
func (a *App) InitHandlers() {
	ingestHandler := httphandler.NewIngestHandler(a.ingestService, a.config.Delivery.MaxPayloadBytes, a.logger)
	subscriptionHandler := httphandler.NewSubscriptionHandler(a.subscriptionService, a.logger)
	statusHandler := httphandler.NewStatusHandler(a.statusService, a.logger)

	ingestHandler.RegisterRoutes(a.mux)
	subscriptionHandler.RegisterRoutes(a.mux)
	statusHandler.RegisterRoutes(a.mux)

	a.mux.Handle("GET /metrics", a.metrics.Handler())
	a.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

// Initialize runs all init steps in order.
func (a *App) Initialize() error {
	if err := a.InitDB(); err != nil {
		return err
	}
	if err := a.InitRedis(); err != nil {
		return err
	}
	a.InitRepositories()
	a.InitServices()
	a.InitHandlers()
	return nil
}

// Start runs the HTTP server until it is shut down.
func (a *App) Start() error {
	addr := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)

	a.server = &http.Server{
		Addr:         addr,
		Handler:      middleware.RequestLogging(a.logger)(a.mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	a.logger.WithField("address", addr).Info("Server starting")
	return a.server.ListenAndServe()
}

// Shutdown stops the HTTP server and closes shared resources.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Starting graceful shutdown")

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error(fmt.Sprintf("Failed to close redis client: %v", err))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error(fmt.Sprintf("Failed to close database: %v", err))
		}
	}

	a.logger.Info("Shutdown complete")
	return nil
}

// Mux exposes the route table, used by tests.
func (a *App) Mux() *http.ServeMux {
	return a.mux
}
