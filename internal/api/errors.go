package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/lingolab/vocab-srs/internal/service/repetition"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, repetition.ErrListNotFound),
		errors.Is(err, repetition.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, repetition.ErrConcurrentUpdate):
		return http.StatusConflict

	case errors.Is(err, repetition.ErrInvalidArgument),
		errors.Is(err, repetition.ErrInvalidOutcome):
		return http.StatusBadRequest

	case errors.Is(err, repetition.ErrNoneDue):
		return http.StatusNoContent

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, repetition.ErrListNotFound):
		return "Vocabulary list not found"
	case errors.Is(err, repetition.ErrRecordNotFound):
		return "Review record not found"
	case errors.Is(err, repetition.ErrConcurrentUpdate):
		return "The review record was updated concurrently, please retry"
	case errors.Is(err, repetition.ErrInvalidOutcome):
		return "Invalid review outcome"
	case errors.Is(err, repetition.ErrInvalidArgument):
		return "Invalid identifier"
	default:
		return "An unexpected error occurred"
	}
}

// IsRetryable reports whether a client may safely repeat the request.
func IsRetryable(err error) bool {
	return errors.Is(err, repetition.ErrConcurrentUpdate)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message naming the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "oneof":
		return "invalid value"
	case "gt", "gte", "min":
		return "too small"
	default:
		return "validation failed"
	}
}
