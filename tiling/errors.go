package tiling

import "errors"

// Sentinel errors for tiled inference.
var (
	// Configuration errors, raised before any tile is processed
	ErrInvalidConfig = errors.New("tiling: invalid configuration")
	ErrEmptyImage    = errors.New("tiling: image has zero height or width")

	// Transform contract violations
	ErrShapeMismatch = errors.New("tiling: transform output shape mismatch")

	// Canvas invariant violation; indicates a scheduling bug
	ErrWeightUnderflow = errors.New("tiling: blend weight is not positive")
)
