package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/catalog"
	"github.com/reelist/engine/internal/config"
	"github.com/reelist/engine/internal/handlers"
	"github.com/reelist/engine/internal/messaging"
	"github.com/reelist/engine/internal/middleware"
	"github.com/reelist/engine/internal/services"
	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/internal/storage/postgres"
	"github.com/reelist/engine/internal/storage/sqlite"
)

type App struct {
	config        *config.Config
	logger        *logrus.Logger
	repo          storage.Repository
	cache         *redis.Client
	stream        *messaging.EventStream
	services      *services.Services
	handlers      *handlers.Handlers
	router        *gin.Engine
	consumeCancel context.CancelFunc
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	repo, err := openRepository(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.repo = repo

	if cfg.Redis.Enabled {
		cache, err := openRedis(&cfg.Redis)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		app.cache = cache
	}

	app.stream = messaging.NewEventStream(&cfg.Kafka, app.logger)

	catalogClient := catalog.New(&cfg.Catalog, app.logger)

	app.services = services.New(repo, cfg, app.logger, app.cache, app.stream, catalogClient, prometheus.DefaultRegisterer)
	app.handlers = handlers.New(app.logger, app.services)

	app.startScoreConsumer()
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.consumeCancel != nil {
		a.consumeCancel()
	}
	a.services.Stop()

	if err := a.stream.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing event stream")
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing redis client")
		}
	}
	if err := a.repo.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing storage")
		return err
	}

	return nil
}

// openRepository selects the storage backend from deployment configuration.
// Callers never branch on the engine after this point.
func openRepository(cfg *config.Config, logger *logrus.Logger) (storage.Repository, error) {
	ctx := context.Background()
	switch cfg.Database.Driver {
	case "postgres":
		return postgres.New(ctx, &cfg.Database, logger)
	case "sqlite":
		return sqlite.New(ctx, &cfg.Database, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func openRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.MaxRetries = cfg.MaxRetries
	opts.PoolSize = cfg.PoolSize
	opts.DialTimeout = cfg.Timeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// startScoreConsumer feeds the external scoring job's trending and
// popularity updates into content metrics.
func (a *App) startScoreConsumer() {
	if a.stream == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.consumeCancel = cancel

	go a.stream.ConsumeScores(ctx, func(ctx context.Context, update messaging.ScoreUpdate) error {
		return a.services.ContentMetrics.UpdateScores(ctx, update.ContentID, update.TrendingScore, update.PopularityIndex)
	})
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))

	// Health check endpoint
	router.GET("/health", a.handlers.Health.Health)

	// Prometheus metrics endpoint
	if a.config.Monitoring.Enabled {
		router.GET(a.config.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	// API routes
	api := router.Group("/api/v1")
	{
		// Behavior event routes
		events := api.Group("/events")
		{
			events.POST("", a.handlers.Behavior.Record)
		}

		// User analytics routes
		users := api.Group("/users")
		{
			users.GET("/:userId/analytics", a.handlers.Behavior.Analytics)
			users.GET("/:userId/similar", a.handlers.Behavior.SimilarUsers)
		}

		// Content routes
		content := api.Group("/content")
		{
			content.PUT("", a.handlers.Content.Upsert)
			content.GET("/:contentId/metrics", a.handlers.Content.Metrics)
		}

		// Recommendation routes
		api.POST("/recommendations", a.handlers.Recommendation.Recommend)

		// Experiment routes
		api.GET("/experiments/:name/results", a.handlers.Experiment.Results)

		// Admin routes
		admin := api.Group("/admin")
		{
			admin.POST("/retention/cleanup", a.handlers.Admin.Cleanup)
		}
	}

	a.router = router
}
