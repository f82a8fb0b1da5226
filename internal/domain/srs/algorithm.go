package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/lingolab/vocab-srs/internal/domain"
)

// State is the part of a review record the scheduling policy reads and writes.
type State struct {
	IntervalDays int
	Status       domain.ReviewStatus
	ReviewCount  int
	LearningStep int
}

// StateOf extracts the scheduling state from a record.
func StateOf(record *domain.ReviewRecord) State {
	return State{
		IntervalDays: record.IntervalDays,
		Status:       record.Status,
		ReviewCount:  record.ReviewCount,
		LearningStep: record.LearningStep,
	}
}

// InitializeInterval returns the state of a record that has never been reviewed.
func InitializeInterval() State {
	return State{
		IntervalDays: 1,
		Status:       domain.ReviewStatusNew,
	}
}

// Advance computes the next scheduling state after a review.
//
// Parameters:
//   - current: The state before the review
//   - outcome: Recalled or Forgotten
//   - params: Policy parameters
//
// Returns:
//   - The new state. ReviewCount is incremented; the caller owns timestamps.
//   - ErrInvalidOutcome or ErrInvalidStatus for values outside the closed sets
//
// Transitions:
//   - Forgotten from any status: interval resets to 1, status becomes learning
//   - Recalled from new: interval doubles, status becomes learning
//   - Recalled from learning: interval doubles and the learning step advances;
//     reaching params.LearningThreshold graduates the record to review
//   - Recalled from review: interval grows by params.GrowthFactor, rounded
//
// The interval is always clamped to [1, params.MaxIntervalDays]. The function
// reads nothing but its arguments, so equal inputs give equal outputs.
// A nil params selects NewDefaultParams.
func Advance(current State, outcome domain.ReviewOutcome, params *Params) (State, error) {
	if params == nil {
		params = NewDefaultParams()
	}
	if !outcome.Valid() {
		return State{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	if !current.Status.Valid() {
		return State{}, fmt.Errorf("%w: %q", ErrInvalidStatus, current.Status)
	}

	next := State{
		ReviewCount: current.ReviewCount + 1,
	}

	if outcome == domain.ReviewOutcomeForgotten {
		next.IntervalDays = 1
		next.Status = domain.ReviewStatusLearning
		next.LearningStep = 0
		return next, nil
	}

	switch current.Status {
	case domain.ReviewStatusNew:
		next.IntervalDays = clampInterval(float64(current.IntervalDays)*2, params)
		next.Status = domain.ReviewStatusLearning
		next.LearningStep = 0

	case domain.ReviewStatusLearning:
		next.IntervalDays = clampInterval(float64(current.IntervalDays)*2, params)
		next.LearningStep = current.LearningStep + 1
		next.Status = domain.ReviewStatusLearning
		if next.LearningStep >= params.LearningThreshold {
			next.Status = domain.ReviewStatusReview
			next.LearningStep = 0
		}

	case domain.ReviewStatusReview:
		grown := math.Round(float64(current.IntervalDays) * params.GrowthFactor)
		next.IntervalDays = clampInterval(grown, params)
		next.Status = domain.ReviewStatusReview
	}

	return next, nil
}

// NextReviewAt returns the due time for an interval starting at now.
func NextReviewAt(now time.Time, intervalDays int) time.Time {
	return now.AddDate(0, 0, intervalDays)
}

// clampInterval bounds a computed interval to [1, MaxIntervalDays].
// Working in float64 keeps very large intervals from overflowing int.
func clampInterval(days float64, params *Params) int {
	if math.IsNaN(days) || days < 1 {
		return 1
	}
	if days > float64(params.MaxIntervalDays) {
		return params.MaxIntervalDays
	}
	return int(days)
}
