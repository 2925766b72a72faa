package photometry

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateFilter is returned when a normalization integral or
	// statistic is zero, negative, or not finite.
	ErrDegenerateFilter = errors.New("degenerate filter")
	// ErrInsufficientSamples is returned for curves with fewer than two samples.
	ErrInsufficientSamples = errors.New("insufficient samples")
	// ErrUnsortedGrid is returned when the frequency grid is not strictly
	// monotonic after orientation.
	ErrUnsortedGrid = errors.New("unsorted frequency grid")
	// ErrMismatchedLength is returned when grids and transmission differ in length.
	ErrMismatchedLength = errors.New("mismatched sample lengths")
)

// FilterError attaches the filter name to a normalization failure
type FilterError struct {
	Filter string
	Err    error
}

// Error implements the error interface
func (e *FilterError) Error() string {
	return fmt.Sprintf("filter %s: %v", e.Filter, e.Err)
}

// Unwrap returns the underlying error
func (e *FilterError) Unwrap() error {
	return e.Err
}

// Reason returns a short label for the error class, used for metrics
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrDegenerateFilter):
		return "degenerate"
	case errors.Is(err, ErrInsufficientSamples):
		return "insufficient_samples"
	case errors.Is(err, ErrUnsortedGrid):
		return "unsorted_grid"
	case errors.Is(err, ErrMismatchedLength):
		return "mismatched_length"
	default:
		return "other"
	}
}
