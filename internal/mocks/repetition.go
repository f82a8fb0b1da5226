package mocks

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/lingolab/vocab-srs/internal/domain"
	"github.com/lingolab/vocab-srs/internal/service/repetition"
)

// ApplyReviewCall records the arguments of one ApplyReview call.
type ApplyReviewCall struct {
	UserID  int64
	ListID  int64
	Outcome domain.ReviewOutcome
}

// MockEngine implements repetition.Engine for testing
type MockEngine struct {
	CreateOrGetFn func(ctx context.Context, userID, listID int64) (*domain.ReviewRecord, error)
	ApplyReviewFn func(ctx context.Context, userID, listID int64, outcome domain.ReviewOutcome) (*repetition.ReviewResult, error)
	GetFn         func(ctx context.Context, userID, listID int64) (*domain.DueRecord, error)

	// Default response values
	Record *domain.ReviewRecord
	Result *repetition.ReviewResult
	Due    *domain.DueRecord
	Err    error

	mu               sync.Mutex
	CreateOrGetCalls int
	ApplyReviewCalls []ApplyReviewCall
}

var _ repetition.Engine = (*MockEngine)(nil)

// CreateOrGet implements the repetition.Engine interface
func (m *MockEngine) CreateOrGet(ctx context.Context, userID, listID int64) (*domain.ReviewRecord, error) {
	m.mu.Lock()
	m.CreateOrGetCalls++
	m.mu.Unlock()

	if m.CreateOrGetFn != nil {
		return m.CreateOrGetFn(ctx, userID, listID)
	}
	return m.Record, m.Err
}

// ApplyReview implements the repetition.Engine interface
func (m *MockEngine) ApplyReview(
	ctx context.Context,
	userID, listID int64,
	outcome domain.ReviewOutcome,
) (*repetition.ReviewResult, error) {
	m.mu.Lock()
	m.ApplyReviewCalls = append(m.ApplyReviewCalls, ApplyReviewCall{userID, listID, outcome})
	m.mu.Unlock()

	if m.ApplyReviewFn != nil {
		return m.ApplyReviewFn(ctx, userID, listID, outcome)
	}
	return m.Result, m.Err
}

// Get implements the repetition.Engine interface
func (m *MockEngine) Get(ctx context.Context, userID, listID int64) (*domain.DueRecord, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, userID, listID)
	}
	return m.Due, m.Err
}

// MockDueService implements repetition.DueService for testing.
// By default ListDue yields Records, or Err if set.
type MockDueService struct {
	NextDueFn  func(ctx context.Context, userID int64, asOf *time.Time) (*domain.DueRecord, error)
	CountDueFn func(ctx context.Context, userID int64, asOf *time.Time) (int, error)

	Records []*domain.DueRecord
	Err     error

	mu    sync.Mutex
	AsOfs []time.Time
	Users []int64
}

var _ repetition.DueService = (*MockDueService)(nil)

func (m *MockDueService) record(userID int64, asOf *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users = append(m.Users, userID)
	if asOf != nil {
		m.AsOfs = append(m.AsOfs, *asOf)
	}
}

// ListDue implements the repetition.DueService interface
func (m *MockDueService) ListDue(
	_ context.Context,
	userID int64,
	asOf *time.Time,
) iter.Seq2[*domain.DueRecord, error] {
	return func(yield func(*domain.DueRecord, error) bool) {
		m.record(userID, asOf)
		if m.Err != nil {
			yield(nil, m.Err)
			return
		}
		for _, r := range m.Records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// NextDue implements the repetition.DueService interface
func (m *MockDueService) NextDue(ctx context.Context, userID int64, asOf *time.Time) (*domain.DueRecord, error) {
	if m.NextDueFn != nil {
		m.record(userID, asOf)
		return m.NextDueFn(ctx, userID, asOf)
	}
	for r, err := range m.ListDue(ctx, userID, asOf) {
		return r, err
	}
	return nil, repetition.ErrNoneDue
}

// CountDue implements the repetition.DueService interface
func (m *MockDueService) CountDue(ctx context.Context, userID int64, asOf *time.Time) (int, error) {
	if m.CountDueFn != nil {
		return m.CountDueFn(ctx, userID, asOf)
	}
	m.record(userID, asOf)
	return len(m.Records), m.Err
}
