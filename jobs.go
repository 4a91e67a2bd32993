package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go_imgutils/alpha"
	"go_imgutils/core"
	"go_imgutils/db"
	"go_imgutils/inference"
	"go_imgutils/logging"
	"go_imgutils/metrics"
	"go_imgutils/restore"
	"go_imgutils/shutdown"
	"go_imgutils/tiling"
	"go_imgutils/upscale"
	"go_imgutils/validate"
	"go_imgutils/vision"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobRequest is one image to process.
type JobRequest struct {
	Operation core.Operation
	Input     string
	// Output is ignored for AI checks. Empty means next to the input.
	Output   string
	Progress tiling.ProgressReporter
}

// JobResult describes a finished job.
type JobResult struct {
	Metrics logging.JobMetrics
	// Check is set for AI checks.
	Check *validate.Result
}

// Processor runs image jobs with shared model handles and records every
// job in the history database and the metrics collector.
type Processor struct {
	cfg       *core.Config
	timeout   time.Duration
	restorer  *restore.Restorer
	upscaler  *upscale.Upscaler
	checker   *validate.Checker
	repo      *db.Repository
	collector metrics.Collector
	logger    *logging.Logger
}

// NewProcessor wires the operation callers to models. repo may be nil and
// collector defaults to metrics.Nop.
func NewProcessor(cfg *core.Config, models *inference.Registry, timeout time.Duration,
	repo *db.Repository, collector metrics.Collector, logger *logging.Logger) *Processor {
	if collector == nil {
		collector = metrics.Nop{}
	}
	z := logger.Zap()
	return &Processor{
		cfg:       cfg,
		timeout:   timeout,
		restorer:  restore.New(models, z),
		upscaler:  upscale.New(models, z),
		checker:   validate.New(models, z),
		repo:      repo,
		collector: collector,
		logger:    logger,
	}
}

// Run processes one image. The job is recorded whether it succeeds or not.
func (p *Processor) Run(ctx context.Context, req JobRequest) (JobResult, error) {
	start := time.Now()
	m := logging.JobMetrics{
		ID:        uuid.NewString(),
		Operation: string(req.Operation),
		Model:     p.modelFor(req.Operation),
		Input:     req.Input,
	}
	res := JobResult{}
	var grid tileGrid

	err := p.run(ctx, req, &m, &res, &grid)
	m.Duration = time.Since(start)
	m.Success = err == nil
	if err != nil {
		m.Error = err.Error()
		m.Output = ""
	}
	res.Metrics = m
	p.record(ctx, m, grid, start)

	if err != nil {
		p.logger.Error("Job failed", logging.JobFields(m))
		return res, err
	}
	p.logger.Info("Job finished", logging.JobFields(m))
	return res, nil
}

// tileGrid is the effective tiling of a job after defaults are applied.
type tileGrid struct {
	size, overlap, batch int
}

func (p *Processor) run(ctx context.Context, req JobRequest, m *logging.JobMetrics, res *JobResult, grid *tileGrid) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	img, err := vision.Load(req.Input)
	if err != nil {
		return err
	}
	m.Width, m.Height = img.Bounds().Dx(), img.Bounds().Dy()

	if req.Operation == core.OpAICheck {
		result, err := p.checker.Check(ctx, img, p.cfg.Model, float32(p.cfg.Threshold))
		if err != nil {
			return err
		}
		m.Model = result.Model
		m.Score = result.Score
		res.Check = &result
		return nil
	}

	var out image.Image
	switch req.Operation {
	case core.OpRestore:
		opts, err := p.restoreOptions(req.Progress)
		if err != nil {
			return err
		}
		*grid = tileGrid{opts.TileSize, opts.TileOverlap, opts.BatchSize}
		out, err = p.restorer.Restore(ctx, img, opts)
		if err != nil {
			return err
		}
	case core.OpUpscale:
		opts, err := p.upscaleOptions(req.Progress)
		if err != nil {
			return err
		}
		*grid = tileGrid{opts.TileSize, opts.TileOverlap, opts.BatchSize}
		out, err = p.upscaler.Upscale(ctx, img, opts)
		if err != nil {
			return err
		}
	default:
		return core.ErrInvalidOperation(string(req.Operation))
	}

	output := req.Output
	if output == "" {
		output = OutputPath(req.Input, req.Operation, "")
	}
	if err := saveAtomic(out, output); err != nil {
		return err
	}
	m.Output = output
	m.OutWidth, m.OutHeight = out.Bounds().Dx(), out.Bounds().Dy()
	return nil
}

// modelFor is the model name recorded for op.
func (p *Processor) modelFor(op core.Operation) string {
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	switch op {
	case core.OpRestore:
		return restore.DefaultModel.FileName()
	case core.OpUpscale:
		return upscale.DefaultModel
	case core.OpAICheck:
		return validate.DefaultModel
	}
	return ""
}

func (p *Processor) progress(r tiling.ProgressReporter) tiling.ProgressReporter {
	if r != nil {
		return r
	}
	return tiling.LogProgress{Logger: p.logger.Zap(), Title: "tiles"}
}

func (p *Processor) restoreOptions(progress tiling.ProgressReporter) (restore.Options, error) {
	opts := restore.DefaultOptions()
	if p.cfg.Model != "" {
		if m, err := restore.ParseModel(p.cfg.Model); err == nil {
			opts.Model = m
		} else {
			opts.ModelName = p.cfg.Model
		}
	}
	opts.TileSize = withDefault(p.cfg.TileSize, opts.TileSize)
	opts.TileOverlap = withDefault(p.cfg.TileOverlap, opts.TileOverlap)
	opts.BatchSize = withDefault(p.cfg.BatchSize, opts.BatchSize)
	opts.Workers = p.cfg.Workers
	opts.Silent = p.cfg.Silent
	opts.Progress = p.progress(progress)

	bg, err := vision.ParseBackground(p.cfg.Background)
	if err != nil {
		return opts, err
	}
	opts.Background = bg
	return opts, nil
}

func (p *Processor) upscaleOptions(progress tiling.ProgressReporter) (upscale.Options, error) {
	opts := upscale.DefaultOptions()
	if p.cfg.Model != "" {
		opts.Model = p.cfg.Model
	}
	opts.TileSize = withDefault(p.cfg.TileSize, opts.TileSize)
	opts.TileOverlap = withDefault(p.cfg.TileOverlap, opts.TileOverlap)
	opts.BatchSize = withDefault(p.cfg.BatchSize, opts.BatchSize)
	opts.Workers = p.cfg.Workers
	opts.Silent = p.cfg.Silent
	opts.Progress = p.progress(progress)

	bg, err := vision.ParseBackground(p.cfg.Background)
	if err != nil {
		return opts, err
	}
	opts.Background = bg
	interp, err := alpha.ParseInterpolation(p.cfg.AlphaInterpolation)
	if err != nil {
		return opts, err
	}
	opts.AlphaInterpolation = interp
	return opts, nil
}

func withDefault(v, def int) int {
	if v == core.UseDefault {
		return def
	}
	return v
}

// record stores the job in the history database and the collector. A
// failed history write is logged and does not fail the job.
func (p *Processor) record(ctx context.Context, m logging.JobMetrics, grid tileGrid, start time.Time) {
	status := metrics.JobStatusSuccess
	if !m.Success {
		status = metrics.JobStatusError
	}
	p.collector.RecordJob(metrics.JobRecord{
		ID:           m.ID,
		Operation:    m.Operation,
		Model:        m.Model,
		Input:        m.Input,
		Status:       status,
		StartTime:    start,
		EndTime:      start.Add(m.Duration),
		Duration:     m.Duration,
		OutputPixels: int64(m.OutWidth) * int64(m.OutHeight),
		ErrorMsg:     m.Error,
	})

	if p.repo == nil {
		return
	}
	rec := db.JobRecord{
		ID:           m.ID,
		Operation:    m.Operation,
		Model:        m.Model,
		InputPath:    m.Input,
		OutputPath:   m.Output,
		InputWidth:   m.Width,
		InputHeight:  m.Height,
		OutputWidth:  m.OutWidth,
		OutputHeight: m.OutHeight,
		TileSize:     grid.size,
		TileOverlap:  grid.overlap,
		BatchSize:    grid.batch,
		Status:       status,
		ErrorMessage: m.Error,
		DurationMS:   m.Duration.Milliseconds(),
		CreatedAt:    start,
	}
	if m.Width > 0 && m.OutWidth > 0 {
		rec.Scale = m.OutWidth / m.Width
	}
	if m.Operation == string(core.OpAICheck) && m.Success {
		score := float64(m.Score)
		rec.Score = &score
	}
	// The job's own context may already be cancelled by shutdown.
	if _, err := p.repo.InsertJob(context.WithoutCancel(ctx), rec); err != nil {
		p.logger.Warn("Failed to record job", zap.String("job_id", m.ID), zap.Error(err))
	}
}

// OutputPath derives where a result for input goes: dir (or the input's
// directory) / <stem>_<op><ext>. Inputs whose extension cannot be encoded
// are written as PNG.
func OutputPath(input string, op core.Operation, dir string) string {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if !vision.IsSupportedOutput(base) {
		ext = ".png"
	}
	return filepath.Join(dir, stem+"_"+string(op)+ext)
}

// saveAtomic writes img next to path under a partial name and renames it
// into place, so readers never see half-written files.
func saveAtomic(img image.Image, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp := filepath.Join(dir, shutdown.PartialPrefix+filepath.Base(path))
	if err := vision.Save(img, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("move output into place: %w", err)
	}
	return nil
}

// isCancellation reports whether err comes from shutdown rather than the
// job itself.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, shutdown.ErrClosed)
}
