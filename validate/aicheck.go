// Package validate scores how likely an anime image is AI-generated.
package validate

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"slices"

	"go_imgutils/alpha"
	"go_imgutils/inference"
	"go_imgutils/tensor"
	"go_imgutils/vision"

	"go.uber.org/zap"
)

// Classifier settings.
const (
	DefaultModel     = "mobilenetv3_sce_dist"
	DefaultThreshold = 0.5
	InputSize        = 384

	normalizeMean = 0.5
	normalizeStd  = 0.5
)

// ModelNames lists the published AI-check classifiers.
var ModelNames = []string{
	"caformer_s36_plus_sce",
	"mobilenetv3_sce",
	"mobilenetv3_sce_dist",
}

// Labels are the classifier outputs in order.
var Labels = []string{"ai", "human"}

// ModelFile maps a model name to its registry name. Published models live
// in per-model directories; builtins are used as-is.
func ModelFile(name string) (string, error) {
	if slices.Contains(ModelNames, name) {
		return name + "/model.onnx", nil
	}
	if inference.IsBuiltin(name) {
		return name, nil
	}
	return "", fmt.Errorf("%w: %q", inference.ErrUnknownModel, name)
}

// Result is one AI-check verdict.
type Result struct {
	Model     string
	Score     float32
	Threshold float32
	AICreated bool
}

// Label returns "ai" or "human".
func (r Result) Label() string {
	if r.AICreated {
		return Labels[0]
	}
	return Labels[1]
}

// Encode prepares an image for the classifier: flatten transparency onto
// white, resize to 384x384 bilinear, and normalize to (v - 0.5) / 0.5.
func Encode(img image.Image) (*tensor.Tensor, error) {
	rgb, _, err := alpha.Split(img, color.White)
	if err != nil {
		return nil, err
	}
	resized, err := vision.Resize(vision.ToNRGBA(rgb), InputSize, InputSize)
	if err != nil {
		return nil, err
	}
	return vision.NormalizeCHW(resized, normalizeMean, normalizeStd)
}

// Checker runs AI-check classifiers from a caller-owned registry.
type Checker struct {
	models *inference.Registry
	logger *zap.Logger
}

// New creates a Checker. A nil logger disables logging.
func New(models *inference.Registry, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{models: models, logger: logger.Named("validate")}
}

// Score returns the classifier's AI score for img. An empty model name
// selects DefaultModel.
func (c *Checker) Score(ctx context.Context, img image.Image, model string) (float32, error) {
	if model == "" {
		model = DefaultModel
	}
	file, err := ModelFile(model)
	if err != nil {
		return 0, err
	}
	if img == nil || img.Bounds().Empty() {
		return 0, fmt.Errorf("%w: no pixels", vision.ErrEmptyImage)
	}

	input, err := Encode(img)
	if err != nil {
		return 0, err
	}
	pool, err := c.models.Pool(file)
	if err != nil {
		return 0, fmt.Errorf("open model %s: %w", model, err)
	}
	out, err := pool.Run(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("score with %s: %w", model, err)
	}
	if len(out.Data) == 0 {
		return 0, fmt.Errorf("%w: empty classifier output %v", inference.ErrUnexpectedOutput, out.Shape)
	}

	score := out.Data[0]
	c.logger.Debug("ai check scored", zap.String("model", model), zap.Float32("score", score))
	return score, nil
}

// Check scores img and applies threshold: the image counts as AI-created
// when the score is at least threshold.
func (c *Checker) Check(ctx context.Context, img image.Image, model string, threshold float32) (Result, error) {
	if model == "" {
		model = DefaultModel
	}
	score, err := c.Score(ctx, img, model)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Model:     model,
		Score:     score,
		Threshold: threshold,
		AICreated: score >= threshold,
	}, nil
}

// IsAICreated reports whether img scores at least threshold.
func (c *Checker) IsAICreated(ctx context.Context, img image.Image, model string, threshold float32) (bool, error) {
	r, err := c.Check(ctx, img, model, threshold)
	return r.AICreated, err
}
