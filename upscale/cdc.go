// Package upscale enlarges anime images with CDC super-resolution models run
// through the tiling engine.
package upscale

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"sync"

	"go_imgutils/alpha"
	"go_imgutils/inference"
	"go_imgutils/tensor"
	"go_imgutils/tiling"

	"go.uber.org/zap"
)

// ErrScaleProbe is returned when a model's response to the probe input does
// not describe a consistent integer upscale.
var ErrScaleProbe = errors.New("upscale: model scale probe failed")

// CDC defaults.
const (
	DefaultModel       = "HGSR-MHR-anime-aug_X4_320"
	DefaultTileSize    = 512
	DefaultTileOverlap = 64
	DefaultBatchSize   = 1

	// InputUnit is the side multiple CDC models require.
	InputUnit = 16

	probeSize = 16
)

// Options configures one upscaling call.
type Options struct {
	Model              string
	TileSize           int
	TileOverlap        int
	BatchSize          int
	Workers            int
	AlphaInterpolation alpha.Interpolation
	Background         color.Color
	Silent             bool
	Progress           tiling.ProgressReporter
}

// DefaultOptions returns the CDC defaults.
func DefaultOptions() Options {
	return Options{
		Model:              DefaultModel,
		TileSize:           DefaultTileSize,
		TileOverlap:        DefaultTileOverlap,
		BatchSize:          DefaultBatchSize,
		Workers:            1,
		AlphaInterpolation: alpha.Linear,
		Background:         color.White,
	}
}

func (o Options) engineOptions(scale int) tiling.Options {
	eo := tiling.DefaultOptions()
	eo.TileSize = o.TileSize
	eo.TileOverlap = o.TileOverlap
	eo.BatchSize = o.BatchSize
	eo.Scale = scale
	eo.AlignmentUnit = InputUnit
	eo.AlphaInterpolation = o.AlphaInterpolation
	eo.Workers = o.Workers
	eo.Background = o.Background
	eo.Silent = o.Silent
	eo.Progress = o.Progress
	return eo
}

// Upscaler runs CDC models from a caller-owned registry. Each model's scale
// is probed once and remembered.
type Upscaler struct {
	models *inference.Registry
	logger *zap.Logger

	mu     sync.Mutex
	scales map[string]int
}

// New creates an Upscaler. A nil logger disables logging.
func New(models *inference.Registry, logger *zap.Logger) *Upscaler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Upscaler{
		models: models,
		logger: logger.Named("upscale"),
		scales: make(map[string]int),
	}
}

// Scale returns the model's upscale factor, probing it on first use with a
// random (1, 3, 16, 16) input.
func (u *Upscaler) Scale(ctx context.Context, model string) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if s, ok := u.scales[model]; ok {
		return s, nil
	}

	pool, err := u.models.Pool(model)
	if err != nil {
		return 0, fmt.Errorf("open model %s: %w", model, err)
	}

	probe := tensor.New(1, 3, probeSize, probeSize)
	for i := range probe.Data {
		probe.Data[i] = float32(rand.NormFloat64())
	}
	out, err := pool.Run(ctx, probe)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", model, err)
	}

	scale, err := probeScale(out.Shape)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", model, err)
	}
	u.scales[model] = scale
	u.logger.Info("model scale probed", zap.String("model", model), zap.Int("scale", scale))
	return scale, nil
}

// probeScale reads the scale from the model's answer to the probe input.
// CDC models answer (1, 3, s, 16, s, 16); plain (1, 3, 16s, 16s) outputs are
// accepted too.
func probeScale(shape []int) (int, error) {
	switch len(shape) {
	case 6:
		b, c, sh, h, sw, w := shape[0], shape[1], shape[2], shape[3], shape[4], shape[5]
		if b != 1 || c != 3 || h != probeSize || w != probeSize {
			return 0, fmt.Errorf("%w: unexpected output size %v", ErrScaleProbe, shape)
		}
		if sh != sw || sh < 1 {
			return 0, fmt.Errorf("%w: scale of height and width do not match in %v", ErrScaleProbe, shape)
		}
		return sh, nil
	case 4:
		b, c, h, w := shape[0], shape[1], shape[2], shape[3]
		if b != 1 || c != 3 || h != w || h < probeSize || h%probeSize != 0 {
			return 0, fmt.Errorf("%w: unexpected output size %v", ErrScaleProbe, shape)
		}
		return h / probeSize, nil
	default:
		return 0, fmt.Errorf("%w: output rank %d", ErrScaleProbe, len(shape))
	}
}

// transform adapts a CDC pool to the engine. Rank-6 outputs
// (b, c, s, h, s, w) are reshaped to (b, c, s*h, s*w) in place.
func transform(pool *inference.SessionPool, scale int) tiling.Transform {
	return func(ctx context.Context, batch *tensor.Tensor) (*tensor.Tensor, error) {
		out, err := pool.Run(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(out.Shape) != 6 {
			return out.Tensor()
		}
		b, c, sh, h, sw, w := out.Shape[0], out.Shape[1], out.Shape[2], out.Shape[3], out.Shape[4], out.Shape[5]
		if sh != scale || sw != scale {
			return nil, fmt.Errorf("%w: output %v changed scale from %d", inference.ErrUnexpectedOutput, out.Shape, scale)
		}
		return out.Reshape(b, c, sh*h, sw*w)
	}
}

// Upscale returns img enlarged by the model's scale. Tiles are padded to a
// multiple of 16 before inference and cropped after it. Transparency is
// resized with opts.AlphaInterpolation and reattached.
func (u *Upscaler) Upscale(ctx context.Context, img image.Image, opts Options) (image.Image, error) {
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	// Validate the grid before touching the model.
	if err := opts.engineOptions(1).Validate(); err != nil {
		return nil, err
	}

	scale, err := u.Scale(ctx, model)
	if err != nil {
		return nil, err
	}
	engine, err := tiling.NewEngine(opts.engineOptions(scale), u.logger)
	if err != nil {
		return nil, err
	}
	pool, err := u.models.Pool(model)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", model, err)
	}

	u.logger.Debug("upscaling image",
		zap.String("model", model),
		zap.Int("scale", scale),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	out, err := engine.Process(ctx, img, transform(pool, scale))
	if err != nil {
		return nil, fmt.Errorf("upscale with %s: %w", model, err)
	}
	return out, nil
}
