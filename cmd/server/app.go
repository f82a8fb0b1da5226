package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	apiMiddleware "github.com/lingolab/vocab-srs/internal/api/middleware"
	"github.com/lingolab/vocab-srs/internal/config"
	"github.com/lingolab/vocab-srs/internal/domain/srs"
	"github.com/lingolab/vocab-srs/internal/events"
	"github.com/lingolab/vocab-srs/internal/platform/metrics"
	"github.com/lingolab/vocab-srs/internal/platform/sqldb"
	"github.com/lingolab/vocab-srs/internal/reminder"
	"github.com/lingolab/vocab-srs/internal/service/auth"
	"github.com/lingolab/vocab-srs/internal/service/repetition"
)

// rateLimiterIdleTTL is how long a user's token bucket survives without requests.
const rateLimiterIdleTTL = 10 * time.Minute

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sqlx.DB

	// Stores
	records *sqldb.ReviewRecordStore
	lists   *sqldb.ListStore

	// Service interfaces
	jwtService auth.JWTService
	policy     srs.Service
	engine     repetition.Engine
	due        repetition.DueService

	// Observability and background work
	emitter     *events.Bus
	metrics     *metrics.Recorder
	reminders   *reminder.Scheduler
	rateLimiter *apiMiddleware.RateLimiter
}

// newApplication creates a new application instance with all dependencies initialized.
// The database must already be open; it is migrated first when
// database.auto_migrate is set.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sqlx.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	if cfg.Database.AutoMigrate {
		if err := sqldb.Migrate(ctx, db, sqldb.MigrateUp, logger); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.records = sqldb.NewReviewRecordStore(db, logger)
	app.lists = sqldb.NewListStore(db, logger)

	params, err := srs.NewParams(srs.ParamsConfig{
		LearningThreshold: cfg.Scheduler.LearningThreshold,
		GrowthFactor:      cfg.Scheduler.GrowthFactor,
		MaxIntervalDays:   cfg.Scheduler.MaxIntervalDays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build scheduling parameters: %w", err)
	}
	app.policy, err = srs.NewServiceWithParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduling policy: %w", err)
	}

	app.metrics = metrics.NewRecorder()
	app.emitter = events.NewBus(logger)
	app.emitter.Subscribe(app.metrics)

	app.engine = repetition.NewEngine(app.records, app.lists, app.policy, logger, repetition.EngineOptions{
		MaxAttempts:    cfg.Engine.MaxAttempts,
		RetryBaseDelay: cfg.Engine.RetryBaseDelay(),
		Emitter:        app.emitter,
	})
	app.due = repetition.NewDueService(app.records, nil, logger)

	if cfg.Reminder.Enabled {
		app.reminders = reminder.New(
			app.records,
			reminder.LogNotifier{Logger: logger},
			logger,
			reminder.Options{
				Interval: time.Duration(cfg.Reminder.IntervalMinutes) * time.Minute,
				Gauge:    app.metrics,
			},
		)
	}

	app.rateLimiter = apiMiddleware.NewRateLimiter(
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.Burst,
		rateLimiterIdleTTL,
	)

	logger.Info("Application initialized successfully",
		"learning_threshold", params.LearningThreshold,
		"growth_factor", params.GrowthFactor,
		"max_interval_days", params.MaxIntervalDays,
		"reminders_enabled", cfg.Reminder.Enabled)
	return app, nil
}

// Run starts background jobs and serves HTTP until ctx is canceled.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if app.reminders != nil {
		if err := app.reminders.Start(); err != nil {
			return fmt.Errorf("failed to start reminder scheduler: %w", err)
		}
	}

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.reminders != nil {
		app.reminders.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
