package store

import (
	"context"
	"iter"
	"time"

	"github.com/lingolab/vocab-srs/internal/domain"
)

// ReviewRecordStore defines the interface for review record persistence.
type ReviewRecordStore interface {
	// FindByUserAndList retrieves the record for a (user, list) pair.
	// Returns ErrRecordNotFound if no record exists.
	FindByUserAndList(ctx context.Context, userID, listID int64) (*domain.ReviewRecord, error)

	// Insert saves a new record. The record is validated before writing.
	// Returns ErrRecordExists if a record for the same user and list already exists.
	Insert(ctx context.Context, record *domain.ReviewRecord) error

	// UpdateIfUnchanged writes the record only if the stored version still equals
	// expectedVersion, bumping the stored version by one. It reports whether the
	// write happened; false means another writer got there first.
	// Returns ErrRecordNotFound if the record no longer exists.
	// On success record.Version is set to the new stored version.
	UpdateIfUnchanged(ctx context.Context, record *domain.ReviewRecord, expectedVersion int64) (bool, error)

	// QueryDue streams the user's records with NextReviewAt <= asOf, ordered by
	// NextReviewAt ascending and then ID. Each range over the returned sequence
	// runs a fresh query.
	QueryDue(ctx context.Context, userID int64, asOf time.Time) iter.Seq2[*domain.ReviewRecord, error]

	// CountDue returns the number of the user's records with NextReviewAt <= asOf.
	CountDue(ctx context.Context, userID int64, asOf time.Time) (int, error)

	// CountDueByUser returns the due count of every user with at least one due record.
	CountDueByUser(ctx context.Context, asOf time.Time) (map[int64]int, error)
}

// ListStore answers questions about vocabulary lists, which are owned elsewhere.
type ListStore interface {
	// Exists reports whether the vocabulary list exists.
	Exists(ctx context.Context, listID int64) (bool, error)
}
