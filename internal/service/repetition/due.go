package repetition

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/lingolab/vocab-srs/internal/domain"
	"github.com/lingolab/vocab-srs/internal/platform/logger"
)

// Verify interface compliance at compile time
var _ DueService = (*dueServiceImpl)(nil)

type dueServiceImpl struct {
	records RecordRepository
	clock   Clock
	logger  *slog.Logger
}

// NewDueService creates a new DueService implementation.
// A nil clock selects SystemClock.
func NewDueService(records RecordRepository, clock Clock, logger *slog.Logger) DueService {
	if records == nil {
		panic("records cannot be nil")
	}
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &dueServiceImpl{
		records: records,
		clock:   clock,
		logger:  logger.With(slog.String("component", "due_service")),
	}
}

func (s *dueServiceImpl) resolveAsOf(asOf *time.Time) time.Time {
	if asOf == nil {
		return s.clock()
	}
	return asOf.UTC()
}

// ListDue implements DueService.ListDue.
func (s *dueServiceImpl) ListDue(
	ctx context.Context,
	userID int64,
	asOf *time.Time,
) iter.Seq2[*domain.DueRecord, error] {
	return func(yield func(*domain.DueRecord, error) bool) {
		if userID <= 0 {
			yield(nil, fmt.Errorf("%w: user id must be positive, got %d", ErrInvalidArgument, userID))
			return
		}

		// asOf is resolved per range so a reused sequence sees the current clock.
		at := s.resolveAsOf(asOf)
		log := logger.FromContextOrDefault(ctx, s.logger).With(
			slog.Int64("user_id", userID),
			slog.Time("as_of", at))

		count := 0
		for record, err := range s.records.QueryDue(ctx, userID, at) {
			if err != nil {
				log.Error("due query failed", slog.String("error", err.Error()))
				yield(nil, NewServiceError("list_due", "failed to query due records", err))
				return
			}
			count++
			if !yield(record.Due(at), nil) {
				return
			}
		}
		log.Debug("listed due records", slog.Int("count", count))
	}
}

// NextDue implements DueService.NextDue.
func (s *dueServiceImpl) NextDue(ctx context.Context, userID int64, asOf *time.Time) (*domain.DueRecord, error) {
	for record, err := range s.ListDue(ctx, userID, asOf) {
		if err != nil {
			return nil, err
		}
		return record, nil
	}
	return nil, ErrNoneDue
}

// CountDue implements DueService.CountDue.
func (s *dueServiceImpl) CountDue(ctx context.Context, userID int64, asOf *time.Time) (int, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("%w: user id must be positive, got %d", ErrInvalidArgument, userID)
	}
	n, err := s.records.CountDue(ctx, userID, s.resolveAsOf(asOf))
	if err != nil {
		return 0, NewServiceError("count_due", "failed to count due records", err)
	}
	return n, nil
}
