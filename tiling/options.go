package tiling

import (
	"fmt"
	"image/color"

	"go_imgutils/alpha"
)

// Default engine options, matching the restoration path of the model callers.
const (
	DefaultTileSize    = 128
	DefaultTileOverlap = 16
	DefaultBatchSize   = 4
	DefaultScale       = 1
)

// Options configures an Engine.
type Options struct {
	TileSize    int // model input edge in pixels
	TileOverlap int // shared pixels between neighbouring tiles, 0 <= overlap < TileSize
	BatchSize   int // tiles per transform call
	Scale       int // output/input resolution ratio of the transform

	// AlignmentUnit, when > 1, pads every tile so both sides are a multiple
	// of it before the transform. The padding is cropped away afterwards.
	AlignmentUnit int

	// AlphaInterpolation resizes the transparency mask to the output size.
	AlphaInterpolation alpha.Interpolation

	// Background is composited under transparent pixels before inference.
	// Nil means white.
	Background color.Color

	// Workers > 1 runs that many batches concurrently. 0 or 1 is sequential.
	Workers int

	Silent   bool
	Progress ProgressReporter
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		TileSize:           DefaultTileSize,
		TileOverlap:        DefaultTileOverlap,
		BatchSize:          DefaultBatchSize,
		Scale:              DefaultScale,
		AlphaInterpolation: alpha.Linear,
		Background:         color.White,
		Workers:            1,
	}
}

// Validate checks every option and reports the first violation.
// This is a pure function with no side effects.
func (o Options) Validate() error {
	if err := ValidateGrid(o.TileSize, o.TileOverlap); err != nil {
		return err
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size %d must be positive", ErrInvalidConfig, o.BatchSize)
	}
	if o.Scale <= 0 {
		return fmt.Errorf("%w: scale %d must be positive", ErrInvalidConfig, o.Scale)
	}
	if o.AlignmentUnit < 0 {
		return fmt.Errorf("%w: alignment unit %d must not be negative", ErrInvalidConfig, o.AlignmentUnit)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers %d must not be negative", ErrInvalidConfig, o.Workers)
	}
	if err := o.AlphaInterpolation.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (o Options) reporter() ProgressReporter {
	if o.Silent || o.Progress == nil {
		return NopProgress{}
	}
	return o.Progress
}

func (o Options) background() color.Color {
	if o.Background == nil {
		return color.White
	}
	return o.Background
}

func (o Options) workers() int {
	return max(o.Workers, 1)
}
