// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// The specific errors below wrap it.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidReviewOutcome is returned when a review outcome is not valid.
	ErrInvalidReviewOutcome = errors.New("invalid review outcome")
)

// ReviewRecord validation errors
var (
	ErrRecordIDEmpty       = fmt.Errorf("%w: review record ID cannot be empty", ErrValidation)
	ErrInvalidUserID       = fmt.Errorf("%w: user ID must be positive", ErrValidation)
	ErrInvalidListID       = fmt.Errorf("%w: list ID must be positive", ErrValidation)
	ErrInvalidInterval     = fmt.Errorf("%w: interval must be at least 1 day", ErrValidation)
	ErrInvalidReviewStatus = fmt.Errorf("%w: invalid review status", ErrValidation)
	ErrInvalidReviewCount  = fmt.Errorf("%w: counters cannot be negative", ErrValidation)
	ErrInvalidVersion      = fmt.Errorf("%w: version must be at least 1", ErrValidation)
	ErrInconsistentState   = fmt.Errorf("%w: inconsistent review state", ErrValidation)
)
