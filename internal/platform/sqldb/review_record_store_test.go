package sqldb_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lingolab/vocab-srs/internal/domain"
	"github.com/lingolab/vocab-srs/internal/platform/sqldb"
	"github.com/lingolab/vocab-srs/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(t *testing.T, userID, listID int64, createdAt time.Time) *domain.ReviewRecord {
	t.Helper()
	record, err := domain.NewReviewRecord(userID, listID, 1, domain.ReviewStatusNew, createdAt)
	require.NoError(t, err)
	return record
}

// reviewed moves a record one review forward in place, as the engine would.
func reviewed(record *domain.ReviewRecord, at time.Time, interval int) {
	record.ReviewCount++
	record.IntervalDays = interval
	record.Status = domain.ReviewStatusLearning
	record.LastReviewedAt = &at
	record.NextReviewAt = at.AddDate(0, 0, interval)
	record.UpdatedAt = at
}

func TestReviewRecordStore_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	registerLists(t, db, 7)
	records := sqldb.NewReviewRecordStore(db, nil)

	record := newRecord(t, 42, 7, baseTime)
	require.NoError(t, records.Insert(ctx, record))

	found, err := records.FindByUserAndList(ctx, 42, 7)
	require.NoError(t, err)

	assert.Equal(t, record.ID, found.ID)
	assert.Equal(t, int64(42), found.UserID)
	assert.Equal(t, int64(7), found.ListID)
	assert.Equal(t, 0, found.ReviewCount)
	assert.Equal(t, 1, found.IntervalDays)
	assert.Equal(t, domain.ReviewStatusNew, found.Status)
	assert.Nil(t, found.LastReviewedAt)
	assert.True(t, record.NextReviewAt.Equal(found.NextReviewAt), "next review %v != %v", record.NextReviewAt, found.NextReviewAt)
	assert.True(t, record.CreatedAt.Equal(found.CreatedAt))
	assert.Equal(t, time.UTC, found.NextReviewAt.Location())
	assert.Equal(t, int64(1), found.Version)
	assert.NoError(t, found.Validate(), "a stored record should round-trip valid")
}

func TestReviewRecordStore_InsertErrors(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	registerLists(t, db, 7)
	records := sqldb.NewReviewRecordStore(db, nil)

	require.NoError(t, records.Insert(ctx, newRecord(t, 42, 7, baseTime)))

	t.Run("duplicate pair", func(t *testing.T) {
		err := records.Insert(ctx, newRecord(t, 42, 7, baseTime.Add(time.Minute)))
		assert.ErrorIs(t, err, store.ErrRecordExists)
		assert.True(t, store.IsDuplicateError(err))
	})

	t.Run("unknown list", func(t *testing.T) {
		err := records.Insert(ctx, newRecord(t, 42, 999, baseTime))
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})

	t.Run("invalid record", func(t *testing.T) {
		record := newRecord(t, 42, 7, baseTime)
		record.IntervalDays = 0
		err := records.Insert(ctx, record)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})
}

func TestReviewRecordStore_FindMissing(t *testing.T) {
	db := openTestDB(t)
	records := sqldb.NewReviewRecordStore(db, nil)

	_, err := records.FindByUserAndList(context.Background(), 1, 1)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
	assert.True(t, store.IsNotFoundError(err))
}

func TestReviewRecordStore_UpdateIfUnchanged(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	registerLists(t, db, 7)
	records := sqldb.NewReviewRecordStore(db, nil)

	record := newRecord(t, 42, 7, baseTime)
	require.NoError(t, records.Insert(ctx, record))

	reviewedAt := baseTime.Add(25 * time.Hour)
	reviewed(record, reviewedAt, 2)

	ok, err := records.UpdateIfUnchanged(ctx, record, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), record.Version)

	stored, err := records.FindByUserAndList(ctx, 42, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, 1, stored.ReviewCount)
	assert.Equal(t, 2, stored.IntervalDays)
	assert.Equal(t, domain.ReviewStatusLearning, stored.Status)
	require.NotNil(t, stored.LastReviewedAt)
	assert.True(t, reviewedAt.Equal(*stored.LastReviewedAt))
	assert.True(t, reviewedAt.AddDate(0, 0, 2).Equal(stored.NextReviewAt))

	t.Run("stale version loses", func(t *testing.T) {
		stale := stored.Clone()
		reviewed(stale, reviewedAt.Add(time.Hour), 4)

		ok, err := records.UpdateIfUnchanged(ctx, stale, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(2), stale.Version, "version is untouched on a lost race")

		current, err := records.FindByUserAndList(ctx, 42, 7)
		require.NoError(t, err)
		assert.Equal(t, 2, current.IntervalDays, "losing write must not change the row")
	})

	t.Run("missing record", func(t *testing.T) {
		ghost := stored.Clone()
		ghost.ID = uuid.New()

		ok, err := records.UpdateIfUnchanged(ctx, ghost, 2)
		assert.False(t, ok)
		assert.ErrorIs(t, err, store.ErrRecordNotFound)
	})
}

func TestReviewRecordStore_ConcurrentUpdatesHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	registerLists(t, db, 7)
	records := sqldb.NewReviewRecordStore(db, nil)

	record := newRecord(t, 42, 7, baseTime)
	require.NoError(t, records.Insert(ctx, record))

	const writers = 8
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			candidate := record.Clone()
			reviewed(candidate, baseTime.Add(time.Duration(i+1)*time.Hour), i+1)

			ok, err := records.UpdateIfUnchanged(ctx, candidate, 1)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	stored, err := records.FindByUserAndList(ctx, 42, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, 1, stored.ReviewCount)
}

func TestReviewRecordStore_QueryDue(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	registerLists(t, db, 1, 2, 3, 4, 5)
	records := sqldb.NewReviewRecordStore(db, nil)

	// Due dates: list 3 earliest, lists 1 and 4 tied, list 2 latest due, list 5 in the future.
	r3 := newRecord(t, 42, 3, baseTime.Add(-48*time.Hour))
	r1 := newRecord(t, 42, 1, baseTime.Add(-24*time.Hour))
	r4 := newRecord(t, 42, 4, baseTime.Add(-24*time.Hour))
	r2 := newRecord(t, 42, 2, baseTime.Add(-time.Hour))
	r5 := newRecord(t, 42, 5, baseTime.Add(time.Hour))
	other := newRecord(t, 99, 1, baseTime.Add(-72*time.Hour))
	for _, r := range []*domain.ReviewRecord{r1, r2, r3, r4, r5, other} {
		require.NoError(t, records.Insert(ctx, r))
	}

	asOf := baseTime.Add(24 * time.Hour)
	first, second := r1, r4
	if second.ID.String() < first.ID.String() {
		first, second = second, first
	}
	want := []uuid.UUID{r3.ID, first.ID, second.ID, r2.ID}

	var got []uuid.UUID
	for record, err := range records.QueryDue(ctx, 42, asOf) {
		require.NoError(t, err)
		assert.Equal(t, int64(42), record.UserID)
		assert.False(t, record.NextReviewAt.After(asOf))
		got = append(got, record.ID)
	}
	assert.Equal(t, want, got)

	t.Run("boundary is inclusive", func(t *testing.T) {
		var ids []uuid.UUID
		for record, err := range records.QueryDue(ctx, 42, r2.NextReviewAt) {
			require.NoError(t, err)
			ids = append(ids, record.ID)
		}
		assert.Len(t, ids, 4)
		assert.Equal(t, r2.ID, ids[len(ids)-1])
	})

	t.Run("early break", func(t *testing.T) {
		var n int
		for _, err := range records.QueryDue(ctx, 42, asOf) {
			require.NoError(t, err)
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, 2, n)
	})

	t.Run("each range re-queries", func(t *testing.T) {
		seq := records.QueryDue(ctx, 99, asOf)
		count := func() int {
			var n int
			for _, err := range seq {
				require.NoError(t, err)
				n++
			}
			return n
		}
		assert.Equal(t, 1, count())
		require.NoError(t, records.Insert(ctx, newRecord(t, 99, 2, baseTime)))
		assert.Equal(t, 2, count())
	})

	t.Run("unknown user", func(t *testing.T) {
		for range records.QueryDue(ctx, 12345, asOf) {
			t.Fatal("expected no records")
		}
	})
}

func TestReviewRecordStore_CountDue(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	registerLists(t, db, 1, 2, 3)
	records := sqldb.NewReviewRecordStore(db, nil)

	require.NoError(t, records.Insert(ctx, newRecord(t, 42, 1, baseTime.Add(-48*time.Hour))))
	require.NoError(t, records.Insert(ctx, newRecord(t, 42, 2, baseTime.Add(-30*time.Hour))))
	require.NoError(t, records.Insert(ctx, newRecord(t, 42, 3, baseTime)))
	require.NoError(t, records.Insert(ctx, newRecord(t, 7, 1, baseTime.Add(-72*time.Hour))))

	count, err := records.CountDue(ctx, 42, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	byUser, err := records.CountDueByUser(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{42: 2, 7: 1}, byUser)

	byUser, err = records.CountDueByUser(ctx, baseTime.Add(-100*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, byUser)
}
