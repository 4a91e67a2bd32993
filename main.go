package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go_imgutils/core"
	"go_imgutils/core/validation"
	"go_imgutils/db"
	"go_imgutils/inference"
	"go_imgutils/logging"
	"go_imgutils/metrics"
	"go_imgutils/restore"
	"go_imgutils/shutdown"
	"go_imgutils/tiling"
	"go_imgutils/upscale"
	"go_imgutils/validate"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// minOutboxSpace is the free space below which preflight warns.
const minOutboxSpace = 1 << 30

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// app carries state shared by every command.
type app struct {
	stdout, stderr io.Writer

	configPath string
	logLevel   string
	dev        bool

	cfg      *core.Config
	inferCfg *inference.Config
	logger   *logging.Logger

	// exitCode overrides the error-derived code when set by watch.
	exitCode int
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.exitCode != core.ExitCodeSuccess {
		return a.exitCode
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", color.RedString("Error:"), err)
		return core.ExitCodeForError(err)
	}
	return core.ExitCodeSuccess
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "imgutils",
		Short:         "Restore, upscale and AI-check anime images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (overrides IMGUTILS_CONFIG)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&a.dev, "dev", false, "development logging")

	root.AddCommand(
		a.jobCommand(core.OpRestore, "Remove noise and artifacts with SCUNet"),
		a.jobCommand(core.OpUpscale, "Upscale with a CDC super-resolution model"),
		a.jobCommand(core.OpAICheck, "Score how likely images are AI-generated"),
		a.watchCommand(),
		a.checkCommand(),
		a.statsCommand(),
		a.serviceCommand(),
		a.versionCommand(),
	)
	return root
}

// setup loads .env, configuration and the logger.
func (a *app) setup() error {
	// A missing .env is normal.
	_ = godotenv.Load()
	if a.configPath != "" {
		os.Setenv("IMGUTILS_CONFIG", a.configPath)
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.dev {
		cfg.DevMode = true
	}
	a.cfg = cfg
	a.inferCfg = inference.LoadConfig()

	logFile := cfg.LogFile
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = core.GetDataFilePath(logFile)
	}
	logger, err := logging.NewLogger(logging.Options{
		Level:       logging.ParseLevel(cfg.LogLevel, logging.InfoLevel),
		Development: cfg.DevMode,
		FilePath:    logFile,
		Console:     a.stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

// jobCommand builds the one-shot command for op.
func (a *app) jobCommand(op core.Operation, short string) *cobra.Command {
	var output, outDir string
	cmd := &cobra.Command{
		Use:   string(op) + " <image>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" && len(args) > 1 {
				return errors.New("--output needs exactly one input; use --outdir for several")
			}
			if err := a.applyJobFlags(cmd); err != nil {
				return err
			}
			a.cfg.Operation = op

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runJobs(ctx, op, args, output, outDir)
		},
	}

	addJobFlags(cmd, op)
	if op != core.OpAICheck {
		cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single input only)")
		cmd.Flags().StringVar(&outDir, "outdir", "", "directory for results (default: next to each input)")
	}
	return cmd
}

// addJobFlags registers the processing flags applyJobFlags reads. An empty
// op registers the flags of every operation.
func addJobFlags(cmd *cobra.Command, op core.Operation) {
	f := cmd.Flags()
	f.String("model", "", "model name or file")
	f.Int("tile-size", core.UseDefault, "tile side in pixels (-1 uses the model default)")
	f.Int("tile-overlap", core.UseDefault, "tile overlap in pixels (-1 uses the model default)")
	f.Int("batch-size", core.UseDefault, "tiles per inference batch (-1 uses the model default)")
	f.Int("workers", 1, "concurrent inference batches")
	f.String("background", core.DefaultBackground, "color that transparent pixels are flattened onto")
	f.Bool("silent", false, "hide the progress bar")
	if op == "" || op == core.OpUpscale {
		f.String("alpha-interpolation", "", "alpha channel resize filter (upscale)")
	}
	if op == "" || op == core.OpAICheck {
		f.Float64("threshold", core.DefaultThreshold, "score at or above which an image is AI-generated (aicheck)")
	}
}

// applyJobFlags copies explicitly set flags over the loaded config.
func (a *app) applyJobFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	cfg := a.cfg
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Lookup(name) != nil && f.Changed(name) {
			err = apply()
		}
	}
	set("model", func() (e error) { cfg.Model, e = f.GetString("model"); return })
	set("tile-size", func() (e error) { cfg.TileSize, e = f.GetInt("tile-size"); return })
	set("tile-overlap", func() (e error) { cfg.TileOverlap, e = f.GetInt("tile-overlap"); return })
	set("batch-size", func() (e error) { cfg.BatchSize, e = f.GetInt("batch-size"); return })
	set("workers", func() (e error) { cfg.Workers, e = f.GetInt("workers"); return })
	set("background", func() (e error) { cfg.Background, e = f.GetString("background"); return })
	set("silent", func() (e error) { cfg.Silent, e = f.GetBool("silent"); return })
	set("alpha-interpolation", func() (e error) { cfg.AlphaInterpolation, e = f.GetString("alpha-interpolation"); return })
	set("threshold", func() (e error) { cfg.Threshold, e = f.GetFloat64("threshold"); return })
	if err != nil {
		return err
	}
	return core.ValidateConfig(cfg)
}

// runJobs processes each input in order. It stops at the first
// cancellation; other failures are reported and the rest still run.
func (a *app) runJobs(ctx context.Context, op core.Operation, inputs []string, output, outDir string) error {
	models := inference.NewRegistry(a.inferCfg, a.logger.Zap())
	defer models.Close()

	database, repo := a.openHistory()
	if database != nil {
		defer database.Close()
	}
	proc := NewProcessor(a.cfg, models, a.inferCfg.Timeout, repo, nil, a.logger)

	failed := 0
	for _, input := range inputs {
		req := JobRequest{Operation: op, Input: input, Output: output}
		if op != core.OpAICheck && output == "" {
			req.Output = OutputPath(input, op, outDir)
		}
		if !a.cfg.Silent && op != core.OpAICheck {
			req.Progress = tiling.NewBarProgress(a.stderr, filepath.Base(input))
		}

		res, err := proc.Run(ctx, req)
		if err != nil {
			if isCancellation(err) {
				return err
			}
			failed++
			fmt.Fprintf(a.stderr, "%s %s: %v\n", color.RedString("✗"), input, err)
			continue
		}
		a.printResult(res)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d %s jobs failed", failed, len(inputs), op)
	}
	return nil
}

func (a *app) printResult(res JobResult) {
	m := res.Metrics
	if res.Check != nil {
		label := color.GreenString(res.Check.Label())
		if res.Check.AICreated {
			label = color.YellowString(res.Check.Label())
		}
		fmt.Fprintf(a.stdout, "%s\t%s\t%.4f\n", m.Input, label, res.Check.Score)
		return
	}
	fmt.Fprintf(a.stdout, "%s %s -> %s (%dx%d, %s)\n",
		color.GreenString("✓"), m.Input, m.Output, m.OutWidth, m.OutHeight,
		m.Duration.Round(time.Millisecond))
}

// openHistory opens the job database for a one-shot command. History is
// best-effort there: a database that fails to open is logged and skipped.
func (a *app) openHistory() (*db.Database, *db.Repository) {
	database, err := db.Open(a.cfg.DatabasePath)
	if err != nil {
		a.logger.Warn("Job history unavailable", zap.String("path", a.cfg.DatabasePath), zap.Error(err))
		return nil, nil
	}
	return database, db.NewRepository(database, nil)
}

func (a *app) watchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process images dropped into the inbox until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			if f.Changed("operation") {
				s, _ := f.GetString("operation")
				op, err := core.ParseOperation(s)
				if err != nil {
					return err
				}
				a.cfg.Operation = op
			}
			if f.Changed("inbox") {
				a.cfg.InboxDir, _ = f.GetString("inbox")
			}
			if f.Changed("outbox") {
				a.cfg.OutboxDir, _ = f.GetString("outbox")
			}
			if err := a.applyJobFlags(cmd); err != nil {
				return err
			}
			return a.runWatch(cmd.Context(), true)
		},
	}
	f := cmd.Flags()
	f.String("operation", "", "restore, upscale or aicheck")
	f.String("inbox", "", "directory to watch")
	f.String("outbox", "", "directory for results")
	addJobFlags(cmd, "")
	return cmd
}

// runWatch runs the inbox watcher until ctx is done or, when handleSignals
// is set, SIGINT or SIGTERM arrives.
func (a *app) runWatch(ctx context.Context, handleSignals bool) error {
	cfg := a.cfg

	result := validation.NewValidationSuite("imgutils watch").
		WithOutput(a.stderr).
		WithShowProgress(handleSignals).
		Add(a.preflightChecks()...).
		Validate()
	if !result.Success {
		return result.GetFirstError()
	}

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}

	mgr := shutdown.NewManager(a.logger.Zap(), shutdown.WithTimeout(cfg.ShutdownTimeout))
	if handleSignals {
		mgr.Start()
	}
	go func() {
		select {
		case <-ctx.Done():
			mgr.Stop()
		case <-mgr.Context().Done():
		}
	}()

	writer := db.NewAsyncWriter(db.NewRepository(database, nil).AsyncWriteHandler(), db.DefaultChannelCapacity,
		func(err error) { a.logger.Warn("Job history write failed", zap.Error(err)) })
	writer.Start()
	repo := db.NewRepository(database, writer)

	models := inference.NewRegistry(a.inferCfg, a.logger.Zap())

	mgr.Register("history-writer", shutdown.PriorityWriters, func(context.Context) error {
		if !writer.Stop(cfg.ShutdownTimeout) {
			return fmt.Errorf("history writer still had %d queued jobs", writer.Pending())
		}
		return nil
	})
	mgr.Register("models", shutdown.PriorityStorage, func(context.Context) error { return models.Close() })
	mgr.Register("database", shutdown.PriorityStorage, func(context.Context) error { return database.Close() })
	registerCleanup(mgr, cfg, a.logger)

	database.StartCleanupScheduler(mgr.Context(), cfg.RetentionDays, 24*time.Hour, func(r db.CleanupResult, err error) {
		if err != nil {
			a.logger.Warn("Job history cleanup failed", zap.Error(err))
			return
		}
		a.logger.Info("Job history cleanup finished",
			zap.Int64("jobs_deleted", r.JobsDeleted),
			zap.Duration("duration", r.Duration))
	})

	store := metrics.NewStore(metrics.StoreConfig{HistoryCapacity: cfg.MetricsCapacity, Version: core.Version}, time.Now())
	proc := NewProcessor(cfg, models, a.inferCfg.Timeout, repo, store, a.logger)
	watcher := NewWatcher(cfg, proc, repo, mgr.Track, a.logger)
	go watcher.Start(mgr.Context())
	<-watcher.Done()

	logSessionStats(a.logger, store)
	err = mgr.Shutdown()
	a.exitCode = mgr.ExitCode()
	return err
}

// logSessionStats logs what the watch session processed.
func logSessionStats(logger *logging.Logger, c metrics.Collector) {
	stats := c.JobStats()
	status := c.SystemStatus()
	logger.Info("Watch session summary",
		zap.String("health", status.Health),
		zap.Duration("uptime", status.Uptime.Round(time.Second)),
		zap.Int64("jobs", stats.TotalProcessed),
		zap.Int64("succeeded", stats.TotalSuccess),
		zap.Int64("failed", stats.TotalErrors))
	for op, s := range stats.ByOperation {
		logger.Info("Operation summary",
			zap.String("operation", op),
			zap.Int64("count", s.Count),
			zap.Float64("success_rate", s.SuccessRate),
			zap.Duration("avg_duration", s.AvgDuration),
			zap.Float64("megapixels", s.Megapixels))
	}
}

// preflightChecks lists what watch needs before it starts.
func (a *app) preflightChecks() []validation.Check {
	cfg := a.cfg
	checks := []validation.Check{
		validation.ConfigCheck(cfg),
		validation.DirCheck("Inbox", cfg.InboxDir, true),
		validation.DirCheck("Outbox", cfg.OutboxDir, true),
		validation.DirCheck("Data directory", filepath.Dir(cfg.DatabasePath), true),
		validation.DiskSpaceCheck("Outbox free space", cfg.OutboxDir, minOutboxSpace),
	}
	name, err := modelName(cfg)
	if err != nil {
		checks = append(checks, validation.Check{
			Name: "Model",
			Run:  func() (string, error) { return "", err },
		})
	} else if !inference.IsBuiltin(name) {
		checks = append(checks,
			validation.FileCheck("Model", a.inferCfg.ModelPath(name)),
			validation.Check{
				Name: "ONNX Runtime",
				Run:  a.inferCfg.FindRuntime,
			})
	}
	return checks
}

// modelName resolves the registry name the configured operation loads.
func modelName(cfg *core.Config) (string, error) {
	switch cfg.Operation {
	case core.OpRestore:
		if cfg.Model == "" {
			return restore.DefaultModel.FileName(), nil
		}
		if m, err := restore.ParseModel(cfg.Model); err == nil {
			return m.FileName(), nil
		}
		return cfg.Model, nil
	case core.OpUpscale:
		if cfg.Model == "" {
			return upscale.DefaultModel, nil
		}
		return cfg.Model, nil
	case core.OpAICheck:
		if cfg.Model == "" {
			return validate.ModelFile(validate.DefaultModel)
		}
		return validate.ModelFile(cfg.Model)
	}
	return "", core.ErrInvalidOperation(string(cfg.Operation))
}

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the watch preflight checks and exit",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			result := validation.NewValidationSuite("imgutils preflight").
				WithOutput(a.stdout).
				WithShowProgress(true).
				Add(a.preflightChecks()...).
				Validate()
			if !result.Success {
				return result.GetFirstError()
			}
			return nil
		},
	}
}

func (a *app) statsCommand() *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show job history totals and recent jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := db.Open(a.cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer database.Close()
			return printStats(cmd.Context(), a.stdout, db.NewRepository(database, nil), recent)
		},
	}
	cmd.Flags().IntVarP(&recent, "recent", "n", 10, "recent jobs to list")
	return cmd
}

func printStats(ctx context.Context, w io.Writer, repo *db.Repository, recent int) error {
	stats, err := repo.Stats(ctx)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintln(w, "No jobs recorded yet.")
		return nil
	}

	bold := color.New(color.Bold)
	bold.Fprintln(w, "Operations")
	for _, s := range stats {
		fmt.Fprintf(w, "  %-8s %s jobs, %s ok, %s failed, avg %s, %s output pixels\n",
			s.Operation,
			humanize.Comma(s.Total),
			color.GreenString(humanize.Comma(s.Succeeded)),
			color.RedString(humanize.Comma(s.Failed)),
			(time.Duration(s.AvgDurationMS) * time.Millisecond).Round(time.Millisecond),
			humanize.Comma(s.OutputPixels))
	}

	if recent <= 0 {
		return nil
	}
	jobs, err := repo.RecentJobs(ctx, recent)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	bold.Fprintln(w, "Recent jobs")
	for _, j := range jobs {
		status := color.GreenString(j.Status)
		if j.Status != db.StatusSuccess {
			status = color.RedString(j.Status)
		}
		fmt.Fprintf(w, "  %-14s %-8s %-7s %s\n", humanize.Time(j.CreatedAt), j.Operation, status, j.InputPath)
	}
	return nil
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Works without a config file.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(a.stdout, "imgutils "+core.GetVersionInfo())
		},
	}
}
