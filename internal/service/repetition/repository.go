package repetition

import (
	"context"
	"iter"
	"time"

	"github.com/lingolab/vocab-srs/internal/domain"
)

// RecordRepository is the persistence the engine and due service need.
// store.ReviewRecordStore satisfies it.
type RecordRepository interface {
	FindByUserAndList(ctx context.Context, userID, listID int64) (*domain.ReviewRecord, error)
	Insert(ctx context.Context, record *domain.ReviewRecord) error
	UpdateIfUnchanged(ctx context.Context, record *domain.ReviewRecord, expectedVersion int64) (bool, error)
	QueryDue(ctx context.Context, userID int64, asOf time.Time) iter.Seq2[*domain.ReviewRecord, error]
	CountDue(ctx context.Context, userID int64, asOf time.Time) (int, error)
}

// ListChecker reports whether a vocabulary list exists.
// store.ListStore satisfies it.
type ListChecker interface {
	Exists(ctx context.Context, listID int64) (bool, error)
}
