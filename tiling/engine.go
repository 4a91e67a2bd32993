package tiling

import (
	"context"
	"fmt"
	"image"
	"time"

	"go_imgutils/alpha"
	"go_imgutils/tensor"
	"go_imgutils/vision"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine runs a Transform over an arbitrarily large image by tiling it.
// An Engine holds only its options and may be shared; every call owns its
// own canvas.
type Engine struct {
	opts   Options
	logger *zap.Logger
}

// NewEngine validates opts and returns an engine. A nil logger disables logging.
func NewEngine(opts Options, logger *zap.Logger) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{opts: opts, logger: logger}, nil
}

// Options returns a copy of the engine options.
func (e *Engine) Options() Options {
	return e.opts
}

// Run processes a (1, C, H, W) tensor and returns the blended
// (1, C, H*scale, W*scale) result clipped to [0,1]. Any failure discards the
// canvas; no partial result is returned. ctx is consulted between batches.
func (e *Engine) Run(ctx context.Context, input *tensor.Tensor, fn Transform) (*tensor.Tensor, error) {
	if input == nil || input.N != 1 {
		return nil, fmt.Errorf("%w: input must hold exactly one image", ErrInvalidConfig)
	}
	if input.H <= 0 || input.W <= 0 || input.C <= 0 {
		return nil, fmt.Errorf("%w: input shape %v", ErrEmptyImage, input.Shape())
	}

	o := e.opts
	tiles, err := Schedule(input.H, input.W, o.TileSize, o.TileOverlap)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	runner := NewBatchRunner(o.TileSize, o.BatchSize, o.Scale, o.AlignmentUnit, e.logger)
	blender := NewBlender(input.C, input.H, input.W, o.Scale, o.TileSize, o.TileOverlap)
	batches := runner.Split(tiles)
	counter := &progressCounter{total: len(tiles), reporter: o.reporter()}

	if o.workers() > 1 && len(batches) > 1 {
		err = e.runParallel(ctx, input, batches, runner, blender, counter, fn)
	} else {
		err = e.runSequential(ctx, input, batches, runner, blender, counter, fn)
	}
	if err != nil {
		return nil, err
	}

	out, err := blender.Result()
	if err != nil {
		return nil, err
	}

	e.logger.Info("tiled inference complete",
		zap.Int("width", input.W),
		zap.Int("height", input.H),
		zap.Int("scale", o.Scale),
		zap.Int("tiles", len(tiles)),
		zap.Int("batches", len(batches)),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

func (e *Engine) runSequential(ctx context.Context, input *tensor.Tensor, batches [][]Tile,
	runner *BatchRunner, blender *Blender, counter *progressCounter, fn Transform) error {
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled before batch %d: %w", i, err)
		}
		if err := runner.Run(ctx, i, input, batch, fn, blender.Add); err != nil {
			return err
		}
		counter.add(len(batch))
	}
	return nil
}

// runParallel dispatches batches to a bounded set of goroutines. Tile
// extraction only reads the shared input; canvas writes go through the
// blender's lock. The first failure cancels the batches not yet started.
func (e *Engine) runParallel(ctx context.Context, input *tensor.Tensor, batches [][]Tile,
	runner *BatchRunner, blender *Blender, counter *progressCounter, fn Transform) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.workers())

	for i, batch := range batches {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("cancelled before batch %d: %w", i, err)
			}
			if err := runner.Run(gctx, i, input, batch, fn, blender.Add); err != nil {
				return err
			}
			counter.add(len(batch))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cancelled: %w", err)
	}
	return nil
}

// Process runs the full image pipeline: split transparency, tile the opaque
// color buffer through fn, convert back to 8-bit, and reattach the
// transparency resized to the output. Opaque inputs produce opaque outputs.
func (e *Engine) Process(ctx context.Context, img image.Image, fn Transform) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: no pixels", ErrEmptyImage)
	}

	rgb, mask, err := alpha.Split(img, e.opts.background())
	if err != nil {
		return nil, err
	}

	out, err := e.Run(ctx, rgb, fn)
	if err != nil {
		return nil, err
	}

	return alpha.Recombine(vision.ToNRGBA(out), mask, e.opts.AlphaInterpolation), nil
}
