package repetition_test

import (
	"context"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/lingolab/vocab-srs/internal/domain"
	"github.com/lingolab/vocab-srs/internal/domain/srs"
	"github.com/lingolab/vocab-srs/internal/events"
	"github.com/lingolab/vocab-srs/internal/store"
	"github.com/stretchr/testify/mock"
)

var baseTime = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type pair struct {
	userID, listID int64
}

// memoryRepository is an in-memory RecordRepository that enforces the same
// uniqueness and version rules as the SQL store.
type memoryRepository struct {
	mu      sync.Mutex
	records map[pair]*domain.ReviewRecord

	inserts     int
	updates     int
	updateCalls int

	// beforeUpdate runs at the start of every UpdateIfUnchanged call, outside the lock.
	beforeUpdate func(call int)
	// beforeInsert runs at the start of every Insert call, outside the lock.
	beforeInsert func()
	// err, when set, fails every call.
	err error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{records: make(map[pair]*domain.ReviewRecord)}
}

func (r *memoryRepository) FindByUserAndList(
	ctx context.Context,
	userID, listID int64,
) (*domain.ReviewRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	record, ok := r.records[pair{userID, listID}]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	return record.Clone(), nil
}

func (r *memoryRepository) Insert(ctx context.Context, record *domain.ReviewRecord) error {
	r.mu.Lock()
	hook := r.beforeInsert
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	key := pair{record.UserID, record.ListID}
	if _, exists := r.records[key]; exists {
		return store.ErrRecordExists
	}
	r.records[key] = record.Clone()
	r.inserts++
	return nil
}

func (r *memoryRepository) UpdateIfUnchanged(
	ctx context.Context,
	record *domain.ReviewRecord,
	expectedVersion int64,
) (bool, error) {
	r.mu.Lock()
	r.updateCalls++
	call := r.updateCalls
	hook := r.beforeUpdate
	r.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	key := pair{record.UserID, record.ListID}
	current, ok := r.records[key]
	if !ok {
		return false, store.ErrRecordNotFound
	}
	if current.Version != expectedVersion {
		return false, nil
	}
	record.Version = expectedVersion + 1
	r.records[key] = record.Clone()
	r.updates++
	return true, nil
}

func (r *memoryRepository) QueryDue(
	ctx context.Context,
	userID int64,
	asOf time.Time,
) iter.Seq2[*domain.ReviewRecord, error] {
	return func(yield func(*domain.ReviewRecord, error) bool) {
		r.mu.Lock()
		if r.err != nil {
			err := r.err
			r.mu.Unlock()
			yield(nil, err)
			return
		}
		var due []*domain.ReviewRecord
		for _, record := range r.records {
			if record.UserID == userID && !record.NextReviewAt.After(asOf) {
				due = append(due, record.Clone())
			}
		}
		r.mu.Unlock()

		sort.Slice(due, func(i, j int) bool {
			if !due[i].NextReviewAt.Equal(due[j].NextReviewAt) {
				return due[i].NextReviewAt.Before(due[j].NextReviewAt)
			}
			return due[i].ID.String() < due[j].ID.String()
		})
		for _, record := range due {
			if !yield(record, nil) {
				return
			}
		}
	}
}

func (r *memoryRepository) CountDue(ctx context.Context, userID int64, asOf time.Time) (int, error) {
	n := 0
	for _, err := range r.QueryDue(ctx, userID, asOf) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// put stores a record directly, bypassing the engine.
func (r *memoryRepository) put(record *domain.ReviewRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[pair{record.UserID, record.ListID}] = record.Clone()
}

// bump simulates another writer committing a change to the record.
func (r *memoryRepository) bump(userID, listID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.records[pair{userID, listID}]; ok {
		record.Version++
	}
}

func (r *memoryRepository) get(userID, listID int64) *domain.ReviewRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.records[pair{userID, listID}]; ok {
		return record.Clone()
	}
	return nil
}

func (r *memoryRepository) counts() (inserts, updates int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inserts, r.updates
}

// MockListChecker is a mock implementation of the ListChecker interface
type MockListChecker struct {
	mock.Mock
}

func (m *MockListChecker) Exists(ctx context.Context, listID int64) (bool, error) {
	args := m.Called(ctx, listID)
	return args.Bool(0), args.Error(1)
}

// staticLists reports a fixed set of lists as existing.
type staticLists map[int64]bool

func (s staticLists) Exists(_ context.Context, listID int64) (bool, error) {
	return s[listID], nil
}

// stubPolicy returns a fixed state from Advance.
type stubPolicy struct {
	srs.Service
	next State
	err  error
}

// State aliases srs.State to keep stub literals short.
type State = srs.State

func (p stubPolicy) Advance(State, domain.ReviewOutcome) (State, error) {
	return p.next, p.err
}

// recordingHandler captures emitted events.
type recordingHandler struct {
	mu     sync.Mutex
	events []*events.ReviewEvent
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *events.ReviewEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHandler) ofType(eventType string) []*events.ReviewEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*events.ReviewEvent
	for _, e := range h.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// steppingClock returns a clock that can be moved forward by tests.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSteppingClock(start time.Time) *steppingClock {
	return &steppingClock{now: start}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
