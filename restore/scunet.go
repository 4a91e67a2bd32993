// Package restore removes compression and noise artifacts from anime images
// with SCUNet models run through the tiling engine.
package restore

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"go_imgutils/inference"
	"go_imgutils/tiling"

	"go.uber.org/zap"
)

// ErrUnknownModel is returned for model variants other than GAN and PSNR.
var ErrUnknownModel = errors.New("restore: unknown model")

// Model selects the SCUNet weights.
type Model string

const (
	GAN  Model = "GAN"
	PSNR Model = "PSNR"
)

// Restoration defaults.
const (
	DefaultTileSize    = 128
	DefaultTileOverlap = 16
	DefaultBatchSize   = 4
	DefaultModel       = GAN
)

// ParseModel accepts "gan" or "psnr" in any case.
func ParseModel(s string) (Model, error) {
	switch m := Model(strings.ToUpper(strings.TrimSpace(s))); m {
	case GAN, PSNR:
		return m, nil
	case "":
		return DefaultModel, nil
	default:
		return "", fmt.Errorf("%w: %q (want GAN or PSNR)", ErrUnknownModel, s)
	}
}

// FileName returns the model name looked up in the registry.
func (m Model) FileName() string {
	return "SCUNet-" + string(m)
}

// Options configures one restoration call.
type Options struct {
	Model Model

	// ModelName, when set, replaces the SCUNet file name, for example with
	// a builtin model.
	ModelName string

	TileSize    int
	TileOverlap int
	BatchSize   int
	Workers     int
	Background  color.Color
	Silent      bool
	Progress    tiling.ProgressReporter
}

// DefaultOptions returns the SCUNet defaults.
func DefaultOptions() Options {
	return Options{
		Model:       DefaultModel,
		TileSize:    DefaultTileSize,
		TileOverlap: DefaultTileOverlap,
		BatchSize:   DefaultBatchSize,
		Workers:     1,
		Background:  color.White,
	}
}

func (o Options) modelName() (string, error) {
	if o.ModelName != "" {
		return o.ModelName, nil
	}
	m, err := ParseModel(string(o.Model))
	if err != nil {
		return "", err
	}
	return m.FileName(), nil
}

func (o Options) engineOptions() tiling.Options {
	eo := tiling.DefaultOptions()
	eo.TileSize = o.TileSize
	eo.TileOverlap = o.TileOverlap
	eo.BatchSize = o.BatchSize
	eo.Scale = 1
	eo.Workers = o.Workers
	eo.Background = o.Background
	eo.Silent = o.Silent
	eo.Progress = o.Progress
	return eo
}

// Restorer runs SCUNet restoration with models from a caller-owned registry.
type Restorer struct {
	models *inference.Registry
	logger *zap.Logger
}

// New creates a Restorer. A nil logger disables logging.
func New(models *inference.Registry, logger *zap.Logger) *Restorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Restorer{models: models, logger: logger.Named("restore")}
}

// Restore returns the restored image at the input resolution. Images with
// transparency come back with their alpha channel intact.
func (r *Restorer) Restore(ctx context.Context, img image.Image, opts Options) (image.Image, error) {
	name, err := opts.modelName()
	if err != nil {
		return nil, err
	}

	engine, err := tiling.NewEngine(opts.engineOptions(), r.logger)
	if err != nil {
		return nil, err
	}

	pool, err := r.models.Pool(name)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", name, err)
	}

	r.logger.Debug("restoring image",
		zap.String("model", name),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	out, err := engine.Process(ctx, img, pool.Transform())
	if err != nil {
		return nil, fmt.Errorf("restore with %s: %w", name, err)
	}
	return out, nil
}
