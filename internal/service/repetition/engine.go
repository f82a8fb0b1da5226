package repetition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lingolab/vocab-srs/internal/domain"
	"github.com/lingolab/vocab-srs/internal/domain/srs"
	"github.com/lingolab/vocab-srs/internal/events"
	"github.com/lingolab/vocab-srs/internal/platform/logger"
	"github.com/lingolab/vocab-srs/internal/store"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
)

// Defaults for EngineOptions.
const (
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = 10 * time.Millisecond
	DefaultCreateTimeout  = 30 * time.Second
)

// errLostRace marks an attempt whose conditional update was beaten by another writer.
var errLostRace = errors.New("conditional update lost the race")

// EngineOptions tunes an Engine. Zero values select the defaults.
type EngineOptions struct {
	// MaxAttempts bounds the read-modify-write cycles of one ApplyReview.
	MaxAttempts int
	// RetryBaseDelay is the first backoff delay; later delays grow exponentially.
	RetryBaseDelay time.Duration
	// Clock supplies "now". Defaults to SystemClock.
	Clock Clock
	// Emitter receives record and review events. Defaults to events.NopEmitter.
	Emitter events.EventEmitter
	// CreateTimeout bounds the lookup and insert shared by concurrent
	// CreateOrGet calls, which outlive the cancellation of any single caller.
	CreateTimeout time.Duration
}

// Verify interface compliance at compile time
var _ Engine = (*engineImpl)(nil)

type engineImpl struct {
	records        RecordRepository
	lists          ListChecker
	policy         srs.Service
	clock          Clock
	emitter        events.EventEmitter
	maxAttempts    int
	retryBaseDelay time.Duration
	createTimeout  time.Duration
	creates        singleflight.Group
	logger         *slog.Logger
}

// NewEngine creates a new Engine implementation.
func NewEngine(
	records RecordRepository,
	lists ListChecker,
	policy srs.Service,
	logger *slog.Logger,
	opts EngineOptions,
) Engine {
	if records == nil {
		panic("records cannot be nil")
	}
	if lists == nil {
		panic("lists cannot be nil")
	}
	if policy == nil {
		panic("policy cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if opts.CreateTimeout <= 0 {
		opts.CreateTimeout = DefaultCreateTimeout
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Emitter == nil {
		opts.Emitter = events.NopEmitter{}
	}

	return &engineImpl{
		records:        records,
		lists:          lists,
		policy:         policy,
		clock:          opts.Clock,
		emitter:        opts.Emitter,
		maxAttempts:    opts.MaxAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		createTimeout:  opts.CreateTimeout,
		logger:         logger.With(slog.String("component", "repetition_engine")),
	}
}

// CreateOrGet implements Engine.CreateOrGet.
func (e *engineImpl) CreateOrGet(ctx context.Context, userID, listID int64) (*domain.ReviewRecord, error) {
	if err := validateIDs(userID, listID); err != nil {
		return nil, err
	}

	// Concurrent calls for one pair share a single lookup and insert. The shared
	// work is detached from any one caller's cancellation; each caller stops
	// waiting when its own context ends.
	key := strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(listID, 10)
	ch := e.creates.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.createTimeout)
		defer cancel()
		return e.createOrGet(shared, userID, listID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.ReviewRecord).Clone(), nil
	}
}

func (e *engineImpl) createOrGet(ctx context.Context, userID, listID int64) (*domain.ReviewRecord, error) {
	log := logger.FromContextOrDefault(ctx, e.logger).With(
		slog.Int64("user_id", userID),
		slog.Int64("list_id", listID))

	exists, err := e.lists.Exists(ctx, listID)
	if err != nil {
		log.Error("failed to check list existence", slog.String("error", err.Error()))
		return nil, NewServiceError("create_or_get", "failed to check list", err)
	}
	if !exists {
		log.Debug("vocabulary list not found")
		return nil, ErrListNotFound
	}

	existing, err := e.records.FindByUserAndList(ctx, userID, listID)
	if err == nil {
		log.Debug("review record already exists", slog.String("record_id", existing.ID.String()))
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error("failed to look up review record", slog.String("error", err.Error()))
		return nil, NewServiceError("create_or_get", "failed to look up record", err)
	}

	now := e.clock()
	initial := e.policy.Initialize()
	record, err := domain.NewReviewRecord(userID, listID, initial.IntervalDays, initial.Status, now)
	if err != nil {
		log.Error("initial review record is invalid", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}

	if err := e.records.Insert(ctx, record); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			log.Error("failed to insert review record", slog.String("error", err.Error()))
			return nil, NewServiceError("create_or_get", "failed to insert record", err)
		}

		// Another writer inserted the pair first; theirs is the record.
		winner, findErr := e.records.FindByUserAndList(ctx, userID, listID)
		if findErr != nil {
			log.Error("failed to read concurrently created record", slog.String("error", findErr.Error()))
			return nil, NewServiceError("create_or_get", "failed to read winning record", findErr)
		}
		log.Debug("review record created concurrently", slog.String("record_id", winner.ID.String()))
		return winner, nil
	}

	e.emit(ctx, log, events.NewReviewEvent(events.TypeRecordCreated, record, now))
	log.Info("review record created", slog.String("record_id", record.ID.String()))
	return record, nil
}

// ApplyReview implements Engine.ApplyReview.
func (e *engineImpl) ApplyReview(
	ctx context.Context,
	userID, listID int64,
	outcome domain.ReviewOutcome,
) (*ReviewResult, error) {
	if err := validateIDs(userID, listID); err != nil {
		return nil, err
	}
	if !outcome.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	log := logger.FromContextOrDefault(ctx, e.logger).With(
		slog.Int64("user_id", userID),
		slog.Int64("list_id", listID),
		slog.String("outcome", string(outcome)))

	backoff := retry.NewExponential(e.retryBaseDelay)
	backoff = retry.WithJitterPercent(25, backoff)
	backoff = retry.WithMaxRetries(uint64(e.maxAttempts-1), backoff)

	var (
		result  *ReviewResult
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		res, err := e.applyOnce(ctx, log, userID, listID, outcome)
		if errors.Is(err, errLostRace) {
			log.Debug("review lost an optimistic race", slog.Int("attempt", attempt))
			conflict := events.NewReviewEvent(events.TypeReviewConflict, nil, e.clock())
			conflict.UserID, conflict.ListID, conflict.Attempt = userID, listID, attempt
			e.emit(ctx, log, conflict)
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if errors.Is(err, errLostRace) {
		log.Warn("review abandoned after repeated conflicts", slog.Int("attempts", attempt))
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, err
	}

	applied := events.NewReviewEvent(events.TypeReviewApplied, result.Record, *result.Record.LastReviewedAt)
	applied.Outcome = outcome
	applied.PreviousIntervalDays = result.PreviousIntervalDays
	applied.Attempt = attempt
	e.emit(ctx, log, applied)

	log.Debug("review applied",
		slog.String("record_id", result.Record.ID.String()),
		slog.Int("previous_interval_days", result.PreviousIntervalDays),
		slog.Int("new_interval_days", result.NewIntervalDays),
		slog.String("status", string(result.Record.Status)),
		slog.Time("next_review_at", result.Record.NextReviewAt))

	return result, nil
}

// applyOnce performs one read-modify-write cycle.
func (e *engineImpl) applyOnce(
	ctx context.Context,
	log *slog.Logger,
	userID, listID int64,
	outcome domain.ReviewOutcome,
) (*ReviewResult, error) {
	current, err := e.records.FindByUserAndList(ctx, userID, listID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		log.Error("failed to load review record", slog.String("error", err.Error()))
		return nil, NewServiceError("apply_review", "failed to load record", err)
	}

	next, err := e.policy.Advance(srs.StateOf(current), outcome)
	if err != nil {
		log.Error("scheduling policy rejected stored state",
			slog.String("record_id", current.ID.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}

	now := e.clock()
	updated := current.Clone()
	updated.ReviewCount = next.ReviewCount
	updated.IntervalDays = next.IntervalDays
	updated.Status = next.Status
	updated.LearningStep = next.LearningStep
	updated.LastReviewedAt = &now
	updated.NextReviewAt = srs.NextReviewAt(now, next.IntervalDays)
	updated.UpdatedAt = now

	if err := updated.Validate(); err != nil {
		log.Error("computed review record violates invariants",
			slog.String("record_id", current.ID.String()),
			slog.Int("interval_days", updated.IntervalDays),
			slog.String("status", string(updated.Status)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}

	ok, err := e.records.UpdateIfUnchanged(ctx, updated, current.Version)
	switch {
	case errors.Is(err, store.ErrConflict):
		return nil, errLostRace
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrRecordNotFound
	case err != nil:
		log.Error("failed to update review record", slog.String("error", err.Error()))
		return nil, NewServiceError("apply_review", "failed to update record", err)
	case !ok:
		return nil, errLostRace
	}

	return &ReviewResult{
		Record:               updated,
		PreviousIntervalDays: current.IntervalDays,
		NewIntervalDays:      updated.IntervalDays,
	}, nil
}

// Get implements Engine.Get.
func (e *engineImpl) Get(ctx context.Context, userID, listID int64) (*domain.DueRecord, error) {
	if err := validateIDs(userID, listID); err != nil {
		return nil, err
	}

	record, err := e.records.FindByUserAndList(ctx, userID, listID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, NewServiceError("get", "failed to load record", err)
	}
	return record.Due(e.clock()), nil
}

// emit publishes an event. Handler failures are logged and never fail the operation.
func (e *engineImpl) emit(ctx context.Context, log *slog.Logger, event *events.ReviewEvent) {
	if err := e.emitter.EmitEvent(ctx, event); err != nil {
		log.Warn("failed to emit event",
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()))
	}
}

func validateIDs(userID, listID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id must be positive, got %d", ErrInvalidArgument, userID)
	}
	if listID <= 0 {
		return fmt.Errorf("%w: list id must be positive, got %d", ErrInvalidArgument, listID)
	}
	return nil
}
