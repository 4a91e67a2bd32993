package tiling

import (
	"context"
	"fmt"

	"go_imgutils/tensor"

	"go.uber.org/zap"
)

// Transform is the model boundary. It maps an (N, C, H, W) batch to an
// (N, C, H*scale, W*scale) batch and knows nothing about tiles.
type Transform func(ctx context.Context, batch *tensor.Tensor) (*tensor.Tensor, error)

// Identity returns its input unchanged.
func Identity(_ context.Context, batch *tensor.Tensor) (*tensor.Tensor, error) {
	return batch, nil
}

// TileSink receives each tile's transform output in submission order.
// out is a (B, C, tile*scale, tile*scale) tensor and n selects the sample.
type TileSink func(t Tile, out *tensor.Tensor, n int) error

// BatchRunner turns tiles into model-sized batches and runs the transform on them.
type BatchRunner struct {
	tileSize  int
	batchSize int
	scale     int
	paddings  []tensor.Padding
	logger    *zap.Logger
}

// NewBatchRunner creates a runner. alignUnit <= 1 disables the secondary
// alignment pad.
func NewBatchRunner(tileSize, batchSize, scale, alignUnit int, logger *zap.Logger) *BatchRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	paddings := []tensor.Padding{tensor.ToSize{H: tileSize, W: tileSize}}
	if alignUnit > 1 {
		paddings = append(paddings, tensor.ToMultiple{Unit: alignUnit})
	}
	return &BatchRunner{
		tileSize:  tileSize,
		batchSize: batchSize,
		scale:     scale,
		paddings:  paddings,
		logger:    logger,
	}
}

// Split chunks tiles into consecutive batches of at most batchSize.
func (r *BatchRunner) Split(tiles []Tile) [][]Tile {
	batches := make([][]Tile, 0, (len(tiles)+r.batchSize-1)/r.batchSize)
	for start := 0; start < len(tiles); start += r.batchSize {
		end := min(start+r.batchSize, len(tiles))
		batches = append(batches, tiles[start:end])
	}
	return batches
}

// Build extracts the tiles from sample 0 of src, pads each one to the model
// input size and stacks them into a single batch tensor.
func (r *BatchRunner) Build(src *tensor.Tensor, tiles []Tile) (*tensor.Tensor, error) {
	items := make([]*tensor.Tensor, len(tiles))
	for i, t := range tiles {
		region := src.Region(0, t.X0, t.Y0, t.X1, t.Y1)
		items[i] = tensor.Pad(region, r.paddings...)
	}
	return tensor.Stack(items)
}

// Run executes one batch: build, transform, shape check, crop back to
// tile*scale, then hand each sample to sink in order.
func (r *BatchRunner) Run(ctx context.Context, index int, src *tensor.Tensor, tiles []Tile, fn Transform, sink TileSink) error {
	input, err := r.Build(src, tiles)
	if err != nil {
		return fmt.Errorf("build batch %d: %w", index, err)
	}

	r.logger.Debug("running batch",
		zap.Int("batch", index),
		zap.Int("tiles", len(tiles)),
		zap.Stringer("input_shape", input.Shape()))

	output, err := fn(ctx, input)
	if err != nil {
		return fmt.Errorf("transform batch %d: %w", index, err)
	}
	if output == nil {
		return fmt.Errorf("%w: batch %d: transform returned no tensor", ErrShapeMismatch, index)
	}

	want := tensor.Shape{input.N, input.C, input.H * r.scale, input.W * r.scale}
	if output.Shape() != want {
		return fmt.Errorf("%w: batch %d: got %v, want %v", ErrShapeMismatch, index, output.Shape(), want)
	}

	size := r.tileSize * r.scale
	output = output.Crop(size, size)
	for i, t := range tiles {
		if err := sink(t, output, i); err != nil {
			return fmt.Errorf("blend batch %d tile %v: %w", index, t, err)
		}
	}
	return nil
}
