package domain

import "errors"

// Sentinel errors returned by the octant pipeline. Call sites wrap them with
// the variable, timestep and octant involved, so match with errors.Is.
var (
	// ErrInvalidCoordinate indicates a grid index outside the partitioner extent.
	ErrInvalidCoordinate = errors.New("coordinate outside grid extent")

	// ErrEmptyGroup indicates an octant with no valid samples in an admitted timestep.
	ErrEmptyGroup = errors.New("octant has no valid samples")

	// ErrDegenerateRange indicates a normalization scope whose minimum equals its maximum.
	ErrDegenerateRange = errors.New("normalization range has zero spread")

	// ErrTimeOverflow indicates a time coordinate outside the representable calendar.
	ErrTimeOverflow = errors.New("time coordinate outside representable calendar range")

	// ErrShapeMismatch indicates a ragged sample cube or a time axis of the wrong length.
	ErrShapeMismatch = errors.New("sample cube shape mismatch")

	// ErrInvalidRange indicates a target output range with min >= max.
	ErrInvalidRange = errors.New("invalid output range")
)
