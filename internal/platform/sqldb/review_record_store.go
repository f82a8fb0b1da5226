package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lingolab/vocab-srs/internal/domain"
	"github.com/lingolab/vocab-srs/internal/store"
)

const reviewRecordColumns = `id, user_id, list_id, review_count, interval_days, status,
	learning_step, last_reviewed_at, next_review_at, version, created_at, updated_at`

const (
	findByUserAndListQuery = `SELECT ` + reviewRecordColumns + `
	FROM review_records
	WHERE user_id = ? AND list_id = ?`

	insertQuery = `INSERT INTO review_records (` + reviewRecordColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	updateIfUnchangedQuery = `UPDATE review_records
	SET review_count = ?, interval_days = ?, status = ?, learning_step = ?,
		last_reviewed_at = ?, next_review_at = ?, updated_at = ?, version = version + 1
	WHERE id = ? AND version = ?`

	recordExistsQuery = `SELECT COUNT(1) FROM review_records WHERE id = ?`

	queryDueQuery = `SELECT ` + reviewRecordColumns + `
	FROM review_records
	WHERE user_id = ? AND next_review_at <= ?
	ORDER BY next_review_at ASC, id ASC`

	countDueQuery = `SELECT COUNT(1) FROM review_records
	WHERE user_id = ? AND next_review_at <= ?`

	countDueByUserQuery = `SELECT user_id, COUNT(1) AS due
	FROM review_records
	WHERE next_review_at <= ?
	GROUP BY user_id`
)

// reviewRecordRow is the database shape of a domain.ReviewRecord.
type reviewRecordRow struct {
	ID             uuid.UUID    `db:"id"`
	UserID         int64        `db:"user_id"`
	ListID         int64        `db:"list_id"`
	ReviewCount    int          `db:"review_count"`
	IntervalDays   int          `db:"interval_days"`
	Status         string       `db:"status"`
	LearningStep   int          `db:"learning_step"`
	LastReviewedAt sql.NullTime `db:"last_reviewed_at"`
	NextReviewAt   time.Time    `db:"next_review_at"`
	Version        int64        `db:"version"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

func (r *reviewRecordRow) toDomain() *domain.ReviewRecord {
	record := &domain.ReviewRecord{
		ID:           r.ID,
		UserID:       r.UserID,
		ListID:       r.ListID,
		ReviewCount:  r.ReviewCount,
		IntervalDays: r.IntervalDays,
		Status:       domain.ReviewStatus(r.Status),
		LearningStep: r.LearningStep,
		NextReviewAt: r.NextReviewAt.UTC(),
		Version:      r.Version,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastReviewedAt.Valid {
		t := r.LastReviewedAt.Time.UTC()
		record.LastReviewedAt = &t
	}
	return record
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// ReviewRecordStore implements store.ReviewRecordStore on top of sqlx.
type ReviewRecordStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewReviewRecordStore creates a ReviewRecordStore over an open database.
// If logger is nil, a default logger will be used.
func NewReviewRecordStore(db *sqlx.DB, logger *slog.Logger) *ReviewRecordStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewRecordStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_record_store")),
	}
}

// Ensure ReviewRecordStore implements store.ReviewRecordStore interface
var _ store.ReviewRecordStore = (*ReviewRecordStore)(nil)

// FindByUserAndList implements store.ReviewRecordStore.FindByUserAndList
func (s *ReviewRecordStore) FindByUserAndList(
	ctx context.Context,
	userID, listID int64,
) (*domain.ReviewRecord, error) {
	return findByUserAndList(ctx, s.db, userID, listID)
}

func findByUserAndList(ctx context.Context, q store.DBTX, userID, listID int64) (*domain.ReviewRecord, error) {
	var row reviewRecordRow
	err := q.GetContext(ctx, &row, q.Rebind(findByUserAndListQuery), userID, listID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRecordNotFound
		}
		return nil, store.NewStoreError("review_record", "find", "query failed", MapError(err))
	}
	return row.toDomain(), nil
}

// Insert implements store.ReviewRecordStore.Insert
func (s *ReviewRecordStore) Insert(ctx context.Context, record *domain.ReviewRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(insertQuery),
		record.ID,
		record.UserID,
		record.ListID,
		record.ReviewCount,
		record.IntervalDays,
		string(record.Status),
		record.LearningStep,
		nullableTime(record.LastReviewedAt),
		record.NextReviewAt.UTC(),
		record.Version,
		record.CreatedAt.UTC(),
		record.UpdatedAt.UTC(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			s.logger.DebugContext(ctx, "review record already exists",
				slog.Int64("user_id", record.UserID),
				slog.Int64("list_id", record.ListID))
			return MapUniqueViolation(err, store.ErrRecordExists)
		}
		return store.NewStoreError("review_record", "insert", "statement failed", MapError(err))
	}

	s.logger.DebugContext(ctx, "review record inserted",
		slog.String("record_id", record.ID.String()),
		slog.Int64("user_id", record.UserID),
		slog.Int64("list_id", record.ListID))
	return nil
}

// UpdateIfUnchanged implements store.ReviewRecordStore.UpdateIfUnchanged
// The update and the follow-up existence check run in one transaction, so a
// false result always means the row was present with a different version.
func (s *ReviewRecordStore) UpdateIfUnchanged(
	ctx context.Context,
	record *domain.ReviewRecord,
	expectedVersion int64,
) (bool, error) {
	if err := record.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	var updated bool
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, tx.Rebind(updateIfUnchangedQuery),
			record.ReviewCount,
			record.IntervalDays,
			string(record.Status),
			record.LearningStep,
			nullableTime(record.LastReviewedAt),
			record.NextReviewAt.UTC(),
			record.UpdatedAt.UTC(),
			record.ID,
			expectedVersion,
		)
		if err != nil {
			return store.NewStoreError("review_record", "update", "statement failed", MapError(err))
		}

		affected, err := checkRowsAffected(result)
		if err != nil {
			return err
		}
		if affected > 0 {
			updated = true
			return nil
		}

		var count int
		if err := tx.GetContext(ctx, &count, tx.Rebind(recordExistsQuery), record.ID); err != nil {
			return store.NewStoreError("review_record", "update", "existence check failed", MapError(err))
		}
		if count == 0 {
			return store.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if !updated {
		s.logger.DebugContext(ctx, "conditional update lost to a concurrent writer",
			slog.String("record_id", record.ID.String()),
			slog.Int64("expected_version", expectedVersion))
		return false, nil
	}

	record.Version = expectedVersion + 1
	return true, nil
}

// QueryDue implements store.ReviewRecordStore.QueryDue
// Rows are decoded one at a time as the caller ranges; breaking out of the
// loop closes the underlying cursor.
func (s *ReviewRecordStore) QueryDue(
	ctx context.Context,
	userID int64,
	asOf time.Time,
) iter.Seq2[*domain.ReviewRecord, error] {
	return func(yield func(*domain.ReviewRecord, error) bool) {
		rows, err := s.db.QueryxContext(ctx, s.db.Rebind(queryDueQuery), userID, asOf.UTC())
		if err != nil {
			yield(nil, store.NewStoreError("review_record", "query_due", "query failed", MapError(err)))
			return
		}
		defer func() {
			if cerr := rows.Close(); cerr != nil {
				s.logger.WarnContext(ctx, "failed to close due rows", slog.String("error", cerr.Error()))
			}
		}()

		for rows.Next() {
			var row reviewRecordRow
			if err := rows.StructScan(&row); err != nil {
				yield(nil, store.NewStoreError("review_record", "query_due", "scan failed", err))
				return
			}
			if !yield(row.toDomain(), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, store.NewStoreError("review_record", "query_due", "iteration failed", MapError(err)))
		}
	}
}

// CountDue implements store.ReviewRecordStore.CountDue
func (s *ReviewRecordStore) CountDue(ctx context.Context, userID int64, asOf time.Time) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(countDueQuery), userID, asOf.UTC()); err != nil {
		return 0, store.NewStoreError("review_record", "count_due", "query failed", MapError(err))
	}
	return count, nil
}

// CountDueByUser implements store.ReviewRecordStore.CountDueByUser
func (s *ReviewRecordStore) CountDueByUser(ctx context.Context, asOf time.Time) (map[int64]int, error) {
	var rows []struct {
		UserID int64 `db:"user_id"`
		Due    int   `db:"due"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(countDueByUserQuery), asOf.UTC()); err != nil {
		return nil, store.NewStoreError("review_record", "count_due_by_user", "query failed", MapError(err))
	}

	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Due
	}
	return counts, nil
}
