package srs

import (
	"errors"

	"github.com/lingolab/vocab-srs/internal/domain"
)

// Common errors
var (
	ErrInvalidOutcome = errors.New("invalid review outcome")
	ErrInvalidStatus  = errors.New("invalid review status")
	ErrInvalidParams  = errors.New("invalid scheduling parameters")
)

// Service defines the interface for scheduling policy operations
type Service interface {
	// Initialize returns the state for a newly created record.
	Initialize() State

	// Advance computes the state that follows a review outcome.
	Advance(current State, outcome domain.ReviewOutcome) (State, error)

	// Params returns a copy of the parameters in use.
	Params() Params
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new SRS service with default parameters
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new SRS service with custom parameters.
// Returns ErrInvalidParams if params is nil or fails validation.
func NewServiceWithParams(params *Params) (Service, error) {
	if params == nil {
		return nil, ErrInvalidParams
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	p := *params
	return &defaultService{
		params: &p,
	}, nil
}

// Initialize implements Service.Initialize
func (s *defaultService) Initialize() State {
	return InitializeInterval()
}

// Advance implements Service.Advance
func (s *defaultService) Advance(current State, outcome domain.ReviewOutcome) (State, error) {
	return Advance(current, outcome, s.params)
}

// Params implements Service.Params
func (s *defaultService) Params() Params {
	return *s.params
}
