package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReviewOutcome is the learner's self-reported recall result for a study session.
type ReviewOutcome string

// Possible review outcome values
const (
	ReviewOutcomeRecalled  ReviewOutcome = "recalled"
	ReviewOutcomeForgotten ReviewOutcome = "forgotten"
)

// Valid reports whether the outcome is one of the known values.
func (o ReviewOutcome) Valid() bool {
	switch o {
	case ReviewOutcomeRecalled, ReviewOutcomeForgotten:
		return true
	default:
		return false
	}
}

// ParseReviewOutcome converts a raw string into a ReviewOutcome.
func ParseReviewOutcome(s string) (ReviewOutcome, error) {
	o := ReviewOutcome(s)
	if !o.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidReviewOutcome, s)
	}
	return o, nil
}

// ReviewStatus is the phase a review record is in.
//
// new: never reviewed. learning: short doubling intervals after the first
// review or after a lapse. review: long intervals grown by the growth factor.
type ReviewStatus string

// Possible review status values
const (
	ReviewStatusNew      ReviewStatus = "new"
	ReviewStatusLearning ReviewStatus = "learning"
	ReviewStatusReview   ReviewStatus = "review"
)

// Valid reports whether the status is one of the known values.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewStatusNew, ReviewStatusLearning, ReviewStatusReview:
		return true
	default:
		return false
	}
}

// ReviewRecord tracks the spaced repetition state of one vocabulary list for one user.
// There is at most one record per (UserID, ListID) pair.
type ReviewRecord struct {
	ID             uuid.UUID    `json:"id"`
	UserID         int64        `json:"user_id"`
	ListID         int64        `json:"list_id"`
	ReviewCount    int          `json:"review_count"`
	IntervalDays   int          `json:"interval_days"`
	Status         ReviewStatus `json:"status"`
	LearningStep   int          `json:"learning_step"` // Consecutive recalls while learning
	LastReviewedAt *time.Time   `json:"last_reviewed_at"`
	NextReviewAt   time.Time    `json:"next_review_at"`
	Version        int64        `json:"version"` // Optimistic concurrency token
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NewReviewRecord creates a record for a list the user has just started studying.
// The first review is due intervalDays after now.
func NewReviewRecord(
	userID, listID int64,
	intervalDays int,
	status ReviewStatus,
	now time.Time,
) (*ReviewRecord, error) {
	now = now.UTC()
	record := &ReviewRecord{
		ID:           uuid.New(),
		UserID:       userID,
		ListID:       listID,
		ReviewCount:  0,
		IntervalDays: intervalDays,
		Status:       status,
		NextReviewAt: now.AddDate(0, 0, intervalDays),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks the record against its invariants.
func (r *ReviewRecord) Validate() error {
	if r.ID == uuid.Nil {
		return ErrRecordIDEmpty
	}

	if r.UserID <= 0 {
		return ErrInvalidUserID
	}

	if r.ListID <= 0 {
		return ErrInvalidListID
	}

	if r.IntervalDays < 1 {
		return ErrInvalidInterval
	}

	if !r.Status.Valid() {
		return ErrInvalidReviewStatus
	}

	if r.ReviewCount < 0 || r.LearningStep < 0 {
		return ErrInvalidReviewCount
	}

	if r.Version < 1 {
		return ErrInvalidVersion
	}

	if r.ReviewCount == 0 {
		if r.Status != ReviewStatusNew || r.LastReviewedAt != nil {
			return fmt.Errorf("%w: unreviewed record must be new with no last review", ErrInconsistentState)
		}
	} else if r.Status == ReviewStatusNew || r.LastReviewedAt == nil {
		return fmt.Errorf("%w: reviewed record cannot be new or lack a last review", ErrInconsistentState)
	}

	anchor := r.CreatedAt
	if r.LastReviewedAt != nil {
		anchor = *r.LastReviewedAt
	}
	if !anchor.AddDate(0, 0, r.IntervalDays).Equal(r.NextReviewAt) {
		return fmt.Errorf("%w: next review does not match interval", ErrInconsistentState)
	}

	return nil
}

// Clone returns a deep copy of the record.
func (r *ReviewRecord) Clone() *ReviewRecord {
	c := *r
	if r.LastReviewedAt != nil {
		t := *r.LastReviewedAt
		c.LastReviewedAt = &t
	}
	return &c
}

// IsDue reports whether the record is due for review at asOf.
func (r *ReviewRecord) IsDue(asOf time.Time) bool {
	return !r.NextReviewAt.After(asOf)
}

// DaysUntilReview returns the whole days, rounded up, until the record becomes due.
// It is zero for records that are already due.
func (r *ReviewRecord) DaysUntilReview(asOf time.Time) int {
	remaining := r.NextReviewAt.Sub(asOf)
	if remaining <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	return int((remaining + day - 1) / day)
}

// Due derives the presentation fields for the record at asOf.
func (r *ReviewRecord) Due(asOf time.Time) *DueRecord {
	return &DueRecord{
		ReviewRecord:    *r.Clone(),
		IsDue:           r.IsDue(asOf),
		DaysUntilReview: r.DaysUntilReview(asOf),
	}
}

// DueRecord is a ReviewRecord with fields derived from a point in time.
// The derived fields are never persisted.
type DueRecord struct {
	ReviewRecord
	IsDue           bool `json:"is_due"`
	DaysUntilReview int  `json:"days_until_review"`
}
