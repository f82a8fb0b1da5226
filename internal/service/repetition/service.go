package repetition

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/lingolab/vocab-srs/internal/domain"
)

// ReviewResult is the outcome of a successful ApplyReview.
type ReviewResult struct {
	Record               *domain.ReviewRecord `json:"record"`
	PreviousIntervalDays int                  `json:"previous_interval_days"`
	NewIntervalDays      int                  `json:"new_interval_days"`
}

// Engine creates review records and applies review outcomes to them.
type Engine interface {
	// CreateOrGet returns the review record for (userID, listID), creating it
	// on first use.
	//
	// Returns:
	//   - (*domain.ReviewRecord, nil): the existing record unchanged, or a new one
	//   - (nil, ErrInvalidArgument): if either id is not positive
	//   - (nil, ErrListNotFound): if the list does not exist; nothing is written
	//   - (nil, error): any other error, typically from the store
	//
	// Concurrent first calls for the same pair produce exactly one record.
	CreateOrGet(ctx context.Context, userID, listID int64) (*domain.ReviewRecord, error)

	// ApplyReview advances the record for (userID, listID) by one review.
	//
	// Returns:
	//   - (*ReviewResult, nil): the persisted record plus previous and new interval
	//   - (nil, ErrRecordNotFound): if no record exists; one is never created here
	//   - (nil, ErrInvalidOutcome): for an outcome outside the closed set
	//   - (nil, ErrConcurrentUpdate): if every attempt lost an optimistic race
	//   - (nil, ErrInvariantViolation): if the computed record is inconsistent
	//
	// The read-modify-write is retried with backoff when another writer wins.
	ApplyReview(
		ctx context.Context,
		userID, listID int64,
		outcome domain.ReviewOutcome,
	) (*ReviewResult, error)

	// Get returns the record for (userID, listID) with fields derived at the
	// current clock time. Returns ErrRecordNotFound if it does not exist.
	Get(ctx context.Context, userID, listID int64) (*domain.DueRecord, error)
}

// DueService answers "what is due" questions for a user.
// A nil asOf means the current clock time.
type DueService interface {
	// ListDue streams the user's records with NextReviewAt <= asOf, most overdue
	// first. Each range over the sequence runs a fresh query.
	ListDue(ctx context.Context, userID int64, asOf *time.Time) iter.Seq2[*domain.DueRecord, error]

	// NextDue returns the most overdue record, or ErrNoneDue.
	NextDue(ctx context.Context, userID int64, asOf *time.Time) (*domain.DueRecord, error)

	// CountDue returns how many records are due.
	CountDue(ctx context.Context, userID int64, asOf *time.Time) (int, error)
}

// Common error types for the repetition services
var (
	// ErrInvalidArgument indicates a non-positive user or list id.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidOutcome indicates a review outcome outside the closed set.
	ErrInvalidOutcome = errors.New("invalid review outcome")

	// ErrListNotFound indicates that the vocabulary list does not exist.
	ErrListNotFound = errors.New("vocabulary list not found")

	// ErrRecordNotFound indicates that no review record exists for the pair.
	ErrRecordNotFound = errors.New("review record not found")

	// ErrConcurrentUpdate indicates that every attempt to apply a review lost
	// the race to another writer. Callers may retry the request.
	ErrConcurrentUpdate = errors.New("review record was modified concurrently")

	// ErrInvariantViolation indicates that a computed record failed its
	// consistency checks. It signals a programming error and is never retried.
	ErrInvariantViolation = errors.New("review record invariant violated")

	// ErrNoneDue indicates that the user has nothing due for review.
	ErrNoneDue = errors.New("no records due for review")
)

// ServiceError wraps errors from the repetition services with additional context.
// This allows consumers to differentiate between different types of service errors
// using errors.As instead of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "create_or_get", "apply_review")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError returns a new ServiceError for the given operation.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// Clock returns the current time. Implementations should return UTC.
type Clock func() time.Time

// SystemClock reads the wall clock in UTC at microsecond precision, the
// resolution every supported database stores.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
