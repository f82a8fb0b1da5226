package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lingolab/vocab-srs/internal/api"
	"github.com/lingolab/vocab-srs/internal/config"
	"github.com/lingolab/vocab-srs/internal/platform/sqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Port: 0, LogLevel: "error", ShutdownTimeoutSeconds: 1},
		Database: config.DatabaseConfig{
			Driver:       sqldb.DriverSQLite,
			URL:          filepath.Join(t.TempDir(), "srs.db"),
			MaxOpenConns: 4,
			AutoMigrate:  true,
		},
		Auth:      config.AuthConfig{JWTSecret: testJWTSecret, TokenLifetimeMinutes: 60},
		Scheduler: config.SchedulerConfig{LearningThreshold: 2, GrowthFactor: 2.5, MaxIntervalDays: 365},
		Engine:    config.EngineConfig{MaxAttempts: 3, RetryBaseDelayMS: 1},
		Reminder:  config.ReminderConfig{IntervalMinutes: 60},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *application {
	t.Helper()

	ctx := context.Background()
	db, err := sqldb.Open(ctx, sqldb.Options{
		Driver:       cfg.Database.Driver,
		URL:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	app, err := newApplication(ctx, cfg, slog.New(slog.DiscardHandler), db)
	require.NoError(t, err)
	return app
}

func authedRequest(t *testing.T, app *application, userID int64, method, target, body string) *http.Request {
	t.Helper()

	token, err := app.jwtService.GenerateToken(context.Background(), userID)
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestNewApplication(t *testing.T) {
	t.Run("reminders are only built when enabled", func(t *testing.T) {
		app := newTestApp(t, testConfig(t))
		assert.Nil(t, app.reminders)

		cfg := testConfig(t)
		cfg.Reminder.Enabled = true
		app = newTestApp(t, cfg)
		require.NotNil(t, app.reminders)

		total, err := app.reminders.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})

	t.Run("scheduler parameters come from config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Scheduler.GrowthFactor = 3
		cfg.Scheduler.MaxIntervalDays = 90

		app := newTestApp(t, cfg)
		params := app.policy.Params()
		assert.Equal(t, 3.0, params.GrowthFactor)
		assert.Equal(t, 90, params.MaxIntervalDays)
	})

	t.Run("invalid auth config fails", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.JWTSecret = "short"

		db, err := sqldb.Open(context.Background(), sqldb.Options{Driver: cfg.Database.Driver, URL: cfg.Database.URL})
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		_, err = newApplication(context.Background(), cfg, slog.New(slog.DiscardHandler), db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT service")
	})
}

func TestRouterReviewFlow(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, testConfig(t))
	require.NoError(t, app.lists.Register(ctx, 7, "Spanish A1"))
	router := app.setupRouter()

	const userID int64 = 42

	rec := serve(router, authedRequest(t, app, userID, http.MethodPost, "/api/lists/7/record", ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created api.RecordResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, userID, created.UserID)
	assert.Equal(t, int64(7), created.ListID)
	assert.Equal(t, "new", created.Status)
	assert.Equal(t, 1, created.IntervalDays)

	rec = serve(router, authedRequest(t, app, userID, http.MethodPost, "/api/lists/7/reviews", `{"outcome":"recalled"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reviewed api.ReviewResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reviewed))
	assert.Equal(t, 1, reviewed.PreviousIntervalDays)
	assert.Equal(t, 2, reviewed.NewIntervalDays)
	assert.Equal(t, "learning", reviewed.Record.Status)
	assert.Equal(t, 1, reviewed.Record.ReviewCount)

	asOf := url.QueryEscape(time.Now().UTC().Add(72 * time.Hour).Format(time.RFC3339))
	rec = serve(router, authedRequest(t, app, userID, http.MethodGet, "/api/reviews/due?as_of="+asOf, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var due api.DueListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&due))
	assert.Equal(t, 1, due.Count)

	rec = serve(router, authedRequest(t, app, userID, http.MethodGet, "/api/reviews/next", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(router, authedRequest(t, app, userID, http.MethodPost, "/api/lists/99/record", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "vocab_srs_records_created_total 1")
	assert.Contains(t, string(body), `vocab_srs_reviews_applied_total{outcome="recalled",status="learning"} 1`)
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	router := app.setupRouter()

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/reviews/due", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"))
}

func TestRouterRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.01, Burst: 1}
	app := newTestApp(t, cfg)
	router := app.setupRouter()

	rec := serve(router, authedRequest(t, app, 5, http.MethodGet, "/api/reviews/next", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(router, authedRequest(t, app, 5, http.MethodGet, "/api/reviews/next", ""))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Budgets are per user.
	rec = serve(router, authedRequest(t, app, 6, http.MethodGet, "/api/reviews/next", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestApplicationRunStopsOnCancel(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.Error(t, app.db.PingContext(context.Background()), "database should be closed after Run returns")
}
