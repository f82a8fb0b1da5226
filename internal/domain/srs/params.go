package srs

import (
	"fmt"
)

// Default policy constants
const (
	DefaultLearningThreshold = 2
	DefaultGrowthFactor      = 2.5
	DefaultMaxIntervalDays   = 365
)

// Params defines all configurable parameters for the scheduling policy
type Params struct {
	// LearningThreshold is the number of consecutive recalls in the learning
	// phase needed to graduate to the review phase.
	LearningThreshold int

	// GrowthFactor multiplies the interval after each recall in the review phase.
	GrowthFactor float64

	// MaxIntervalDays caps every computed interval.
	MaxIntervalDays int
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance.
// Zero values keep the defaults.
type ParamsConfig struct {
	LearningThreshold int
	GrowthFactor      float64
	MaxIntervalDays   int
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		LearningThreshold: DefaultLearningThreshold,
		GrowthFactor:      DefaultGrowthFactor,
		MaxIntervalDays:   DefaultMaxIntervalDays,
	}
}

// NewParams creates a new Params instance with custom configuration.
// Returns ErrInvalidParams if the resulting parameters are unusable.
func NewParams(config ParamsConfig) (*Params, error) {
	params := NewDefaultParams()

	if config.LearningThreshold != 0 {
		params.LearningThreshold = config.LearningThreshold
	}
	if config.GrowthFactor != 0 {
		params.GrowthFactor = config.GrowthFactor
	}
	if config.MaxIntervalDays != 0 {
		params.MaxIntervalDays = config.MaxIntervalDays
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return params, nil
}

// Validate checks that the parameters keep intervals positive and non-decreasing.
func (p *Params) Validate() error {
	if p.LearningThreshold < 1 {
		return fmt.Errorf("%w: learning threshold must be at least 1, got %d",
			ErrInvalidParams, p.LearningThreshold)
	}
	if p.GrowthFactor < 1.0 {
		return fmt.Errorf("%w: growth factor must be at least 1.0, got %g",
			ErrInvalidParams, p.GrowthFactor)
	}
	if p.MaxIntervalDays < 1 {
		return fmt.Errorf("%w: max interval must be at least 1 day, got %d",
			ErrInvalidParams, p.MaxIntervalDays)
	}
	return nil
}
