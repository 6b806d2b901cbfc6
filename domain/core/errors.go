package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Data errors
	ErrMissingData    = errors.New("required variable missing")
	ErrNonFiniteValue = errors.New("non-finite value in design matrix or target")
	ErrEmptyGroup     = errors.New("no rows left in group")

	// Estimation errors
	ErrRankDeficient  = errors.New("design matrix is rank deficient")
	ErrInsufficientDF = fmt.Errorf("%w: insufficient degrees of freedom", ErrRankDeficient)
)

// FailureKind classifies why a (group, output variable) unit was skipped.
type FailureKind string

const (
	KindMissingData    FailureKind = "MissingDataError"
	KindNonFiniteValue FailureKind = "NonFiniteValueError"
	KindRankDeficiency FailureKind = "RankDeficiencyError"
	KindEmptyGroup     FailureKind = "EmptyGroupError"
	KindUnknown        FailureKind = "UnknownError"
)

// KindOf maps a unit error onto its failure kind.
func KindOf(err error) FailureKind {
	switch {
	case errors.Is(err, ErrMissingData):
		return KindMissingData
	case errors.Is(err, ErrNonFiniteValue):
		return KindNonFiniteValue
	case errors.Is(err, ErrRankDeficient):
		return KindRankDeficiency
	case errors.Is(err, ErrEmptyGroup):
		return KindEmptyGroup
	default:
		return KindUnknown
	}
}

// Error constructors with context
func NewMissingVariableError(variable string) error {
	return fmt.Errorf("%w: %q", ErrMissingData, variable)
}

func NewInsufficientDFError(rows, params int) error {
	return fmt.Errorf("%w: %d rows for %d parameters", ErrInsufficientDF, rows, params)
}

func NewRankError(rank, params int) error {
	return fmt.Errorf("%w: rank %d < %d parameters", ErrRankDeficient, rank, params)
}

func NewNonFiniteError(variable string, row int) error {
	return fmt.Errorf("%w: %q at row %d", ErrNonFiniteValue, variable, row)
}

// IsUnitError reports whether err is one of the per-unit failures that
// are logged and skipped rather than aborting a run.
func IsUnitError(err error) bool {
	return KindOf(err) != KindUnknown
}
