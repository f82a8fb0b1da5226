package repetition_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lingolab/vocab-srs/internal/domain"
	"github.com/lingolab/vocab-srs/internal/service/repetition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dueRecord builds a stored record whose next review falls at next.
func dueRecord(userID, listID int64, next time.Time) *domain.ReviewRecord {
	created := next.AddDate(0, 0, -1)
	return &domain.ReviewRecord{
		ID:           uuid.New(),
		UserID:       userID,
		ListID:       listID,
		IntervalDays: 1,
		Status:       domain.ReviewStatusNew,
		NextReviewAt: next,
		Version:      1,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func collect(t *testing.T, svc repetition.DueService, userID int64, asOf *time.Time) []*domain.DueRecord {
	t.Helper()
	var out []*domain.DueRecord
	for record, err := range svc.ListDue(context.Background(), userID, asOf) {
		require.NoError(t, err)
		out = append(out, record)
	}
	return out
}

func TestDueService_ListDueReturnsOnlyDueRecords(t *testing.T) {
	t.Parallel()
	repo := newMemoryRepository()
	svc := repetition.NewDueService(repo, nil, nil)

	asOf := baseTime
	overdue := dueRecord(1, 1, asOf.AddDate(0, 0, -1))
	upcoming := dueRecord(1, 2, asOf.AddDate(0, 0, 5))
	repo.put(overdue)
	repo.put(upcoming)

	got := collect(t, svc, 1, &asOf)
	require.Len(t, got, 1)
	assert.Equal(t, overdue.ID, got[0].ID)
	assert.True(t, got[0].IsDue)
	assert.Zero(t, got[0].DaysUntilReview)
}

func TestDueService_ListDueOrdering(t *testing.T) {
	t.Parallel()
	repo := newMemoryRepository()
	svc := repetition.NewDueService(repo, nil, nil)

	asOf := baseTime
	for listID, offset := range map[int64]time.Duration{
		1: -2 * time.Hour,
		2: -72 * time.Hour,
		3: 0,
		4: -25 * time.Hour,
		5: time.Second,
	} {
		repo.put(dueRecord(1, listID, asOf.Add(offset)))
	}
	repo.put(dueRecord(2, 9, asOf.AddDate(0, 0, -10)))

	got := collect(t, svc, 1, &asOf)
	require.Len(t, got, 4)
	assert.Equal(t, []int64{2, 4, 1, 3}, []int64{got[0].ListID, got[1].ListID, got[2].ListID, got[3].ListID})
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].NextReviewAt.Before(got[i-1].NextReviewAt))
	}
}

func TestDueService_ListDueDefaultsToClock(t *testing.T) {
	t.Parallel()
	repo := newMemoryRepository()
	clock := newSteppingClock(baseTime)
	svc := repetition.NewDueService(repo, clock.Now, nil)

	repo.put(dueRecord(1, 1, baseTime.Add(time.Hour)))

	assert.Empty(t, collect(t, svc, 1, nil))

	// The same sequence value re-queries with the clock read at range time.
	seq := svc.ListDue(context.Background(), 1, nil)
	clock.Advance(2 * time.Hour)
	count := 0
	for record, err := range seq {
		require.NoError(t, err)
		assert.True(t, record.IsDue)
		count++
	}
	assert.Equal(t, 1, count)
}

func TestDueService_ListDueIsRestartable(t *testing.T) {
	t.Parallel()
	repo := newMemoryRepository()
	svc := repetition.NewDueService(repo, nil, nil)

	asOf := baseTime
	repo.put(dueRecord(1, 1, asOf.Add(-time.Hour)))
	seq := svc.ListDue(context.Background(), 1, &asOf)

	first := 0
	for range seq {
		first++
	}

	repo.put(dueRecord(1, 2, asOf.Add(-2*time.Hour)))
	second := 0
	for range seq {
		second++
	}

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestDueService_ListDueEarlyBreak(t *testing.T) {
	t.Parallel()
	repo := newMemoryRepository()
	svc := repetition.NewDueService(repo, nil, nil)

	asOf := baseTime
	for listID := int64(1); listID <= 5; listID++ {
		repo.put(dueRecord(1, listID, asOf.Add(-time.Duration(listID)*time.Hour)))
	}

	seen := 0
	for range svc.ListDue(context.Background(), 1, &asOf) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestDueService_ListDueErrors(t *testing.T) {
	t.Parallel()
	repo := newMemoryRepository()
	svc := repetition.NewDueService(repo, nil, nil)

	for _, err := range svc.ListDue(context.Background(), 0, nil) {
		assert.ErrorIs(t, err, repetition.ErrInvalidArgument)
	}

	storeErr := errors.New("query failed")
	repo.err = storeErr
	calls := 0
	for record, err := range svc.ListDue(context.Background(), 1, nil) {
		calls++
		assert.Nil(t, record)
		assert.ErrorIs(t, err, storeErr)
	}
	assert.Equal(t, 1, calls)
}

func TestDueService_NextDue(t *testing.T) {
	t.Parallel()
	repo := newMemoryRepository()
	svc := repetition.NewDueService(repo, nil, nil)
	asOf := baseTime

	_, err := svc.NextDue(context.Background(), 1, &asOf)
	assert.ErrorIs(t, err, repetition.ErrNoneDue)

	oldest := dueRecord(1, 3, asOf.AddDate(0, 0, -4))
	repo.put(dueRecord(1, 1, asOf.Add(-time.Minute)))
	repo.put(oldest)

	next, err := svc.NextDue(context.Background(), 1, &asOf)
	require.NoError(t, err)
	assert.Equal(t, oldest.ID, next.ID)
}

func TestDueService_CountDue(t *testing.T) {
	t.Parallel()
	repo := newMemoryRepository()
	svc := repetition.NewDueService(repo, nil, nil)
	asOf := baseTime

	repo.put(dueRecord(1, 1, asOf.Add(-time.Minute)))
	repo.put(dueRecord(1, 2, asOf))
	repo.put(dueRecord(1, 3, asOf.Add(time.Minute)))

	n, err := svc.CountDue(context.Background(), 1, &asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.CountDue(context.Background(), -1, &asOf)
	assert.ErrorIs(t, err, repetition.ErrInvalidArgument)
}

func TestNewDueService_PanicsOnNilRepository(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { repetition.NewDueService(nil, nil, nil) })
}
