package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go_imgutils/core"
	"go_imgutils/inference"
	"go_imgutils/validate"
)

// setupEnv points every path the CLI touches at a temp directory.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("IMGUTILS_CONFIG", "")
	t.Setenv("IMGUTILS_LOG_FILE", filepath.Join(dir, "logs", "imgutils.log"))
	t.Setenv("IMGUTILS_LOG_LEVEL", "warn")
	t.Setenv("IMGUTILS_DATABASE_PATH", filepath.Join(dir, "data", "jobs.db"))
	t.Setenv("IMGUTILS_INBOX_DIR", filepath.Join(dir, "inbox"))
	t.Setenv("IMGUTILS_OUTBOX_DIR", filepath.Join(dir, "outbox"))
	t.Setenv("INFER_MODEL_DIR", filepath.Join(dir, "models"))
	return dir
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExecute_Version(t *testing.T) {
	code, out, _ := run(t, "version")
	if code != core.ExitCodeSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(out, core.Version) {
		t.Errorf("version output %q lacks %q", out, core.Version)
	}
}

func TestExecute_RestoreThenStats(t *testing.T) {
	dir := setupEnv(t)
	input := filepath.Join(dir, "frame.png")
	output := filepath.Join(dir, "restored.png")
	writeImage(t, input, 24, 24)

	code, out, errOut := run(t, "restore", "--model", inference.BuiltinIdentity, "--silent", "-o", output, input)
	if code != core.ExitCodeSuccess {
		t.Fatalf("restore exit code = %d, stderr = %s", code, errOut)
	}
	if !strings.Contains(out, output) {
		t.Errorf("restore output %q does not name %s", out, output)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("restored file missing: %v", err)
	}

	code, out, errOut = run(t, "stats")
	if code != core.ExitCodeSuccess {
		t.Fatalf("stats exit code = %d, stderr = %s", code, errOut)
	}
	if !strings.Contains(out, "restore") || !strings.Contains(out, input) {
		t.Errorf("stats output = %q", out)
	}
}

func TestExecute_UpscaleOutdir(t *testing.T) {
	dir := setupEnv(t)
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	writeImage(t, a, 16, 16)
	writeImage(t, b, 16, 16)
	outDir := filepath.Join(dir, "up")

	code, _, errOut := run(t, "upscale", "--model", "nearest-x2", "--silent", "--outdir", outDir, a, b)
	if code != core.ExitCodeSuccess {
		t.Fatalf("exit code = %d, stderr = %s", code, errOut)
	}
	for _, in := range []string{a, b} {
		if _, err := os.Stat(OutputPath(in, core.OpUpscale, outDir)); err != nil {
			t.Errorf("missing output for %s: %v", filepath.Base(in), err)
		}
	}
}

func TestExecute_AICheck(t *testing.T) {
	dir := setupEnv(t)
	input := filepath.Join(dir, "frame.png")
	writeImage(t, input, 24, 24)

	code, out, errOut := run(t, "aicheck", "--model", inference.BuiltinMeanScore, "--threshold", "0.99", input)
	if code != core.ExitCodeSuccess {
		t.Fatalf("exit code = %d, stderr = %s", code, errOut)
	}
	if !strings.Contains(out, input) || !strings.Contains(out, "human") {
		t.Errorf("aicheck output = %q", out)
	}
}

func TestExecute_Errors(t *testing.T) {
	dir := setupEnv(t)
	input := filepath.Join(dir, "frame.png")
	writeImage(t, input, 8, 8)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"sharpen", input}},
		{"no inputs", []string{"restore"}},
		{"bad tile size", []string{"restore", "--tile-size=-5", input}},
		{"overlap not below tile", []string{"restore", "--tile-size", "8", "--tile-overlap", "8", input}},
		{"output with two inputs", []string{"restore", "-o", "x.png", input, input}},
		{"missing input", []string{"restore", "--model", "identity", "--silent", filepath.Join(dir, "nope.png")}},
		{"threshold out of range", []string{"aicheck", "--threshold", "2", input}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := run(t, tt.args...)
			if code != core.ExitCodeError {
				t.Errorf("exit code = %d, want %d", code, core.ExitCodeError)
			}
			if errOut == "" {
				t.Error("nothing written to stderr")
			}
		})
	}
}

func TestExecute_Check(t *testing.T) {
	t.Run("builtin model passes", func(t *testing.T) {
		setupEnv(t)
		t.Setenv("IMGUTILS_MODEL", inference.BuiltinIdentity)
		code, out, errOut := run(t, "check")
		if code != core.ExitCodeSuccess {
			t.Fatalf("exit code = %d, stdout = %s, stderr = %s", code, out, errOut)
		}
	})

	t.Run("missing model file fails", func(t *testing.T) {
		setupEnv(t)
		t.Setenv("IMGUTILS_OPERATION", "upscale")
		t.Setenv("IMGUTILS_MODEL", "not-downloaded")
		code, _, errOut := run(t, "check")
		if code != core.ExitCodeError {
			t.Fatalf("exit code = %d, want %d", code, core.ExitCodeError)
		}
		if !strings.Contains(errOut, "not-downloaded") {
			t.Errorf("stderr = %q", errOut)
		}
	})

	t.Run("model file without runtime library fails", func(t *testing.T) {
		dir := setupEnv(t)
		t.Setenv("IMGUTILS_OPERATION", "restore")
		t.Setenv("IMGUTILS_MODEL", "")
		library := filepath.Join(dir, "ort", "libonnxruntime.so")
		t.Setenv("INFER_ORT_LIBRARY", library)
		writeFile(t, filepath.Join(dir, "models", "SCUNet-GAN.onnx"))

		code, out, errOut := run(t, "check")
		if code != core.ExitCodeError {
			t.Fatalf("exit code = %d, want %d", code, core.ExitCodeError)
		}
		if !strings.Contains(out+errOut, library) {
			t.Errorf("output does not name the missing library: stdout = %q, stderr = %q", out, errOut)
		}

		writeFile(t, library)
		if code, out, errOut := run(t, "check"); code != core.ExitCodeSuccess {
			t.Errorf("exit code with library present = %d, stdout = %s, stderr = %s", code, out, errOut)
		}
	})
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatchCommand_JobFlags(t *testing.T) {
	a := &app{cfg: core.DefaultConfig()}
	cmd := a.watchCommand()
	err := cmd.ParseFlags([]string{
		"--tile-size", "64",
		"--tile-overlap", "8",
		"--batch-size", "2",
		"--background", "black",
		"--silent",
		"--alpha-interpolation", "nearest",
		"--threshold", "0.7",
	})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if err := a.applyJobFlags(cmd); err != nil {
		t.Fatalf("applyJobFlags() error = %v", err)
	}
	cfg := a.cfg
	if cfg.TileSize != 64 || cfg.TileOverlap != 8 || cfg.BatchSize != 2 {
		t.Errorf("tile options = %d/%d/%d", cfg.TileSize, cfg.TileOverlap, cfg.BatchSize)
	}
	if cfg.Background != "black" || !cfg.Silent || cfg.AlphaInterpolation != "nearest" || cfg.Threshold != 0.7 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestExecute_WatchRejectsBadOverlap(t *testing.T) {
	setupEnv(t)
	code, _, errOut := run(t, "watch", "--model", inference.BuiltinIdentity, "--tile-size", "8", "--tile-overlap", "8")
	if code != core.ExitCodeError {
		t.Fatalf("exit code = %d, want %d", code, core.ExitCodeError)
	}
	if strings.Contains(errOut, "unknown flag") || !strings.Contains(errOut, "IMGUTILS_TILE_OVERLAP") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestModelName(t *testing.T) {
	tests := []struct {
		op      core.Operation
		model   string
		want    string
		wantErr bool
	}{
		{core.OpRestore, "", "SCUNet-GAN", false},
		{core.OpRestore, "psnr", "SCUNet-PSNR", false},
		{core.OpRestore, "identity", "identity", false},
		{core.OpUpscale, "", "HGSR-MHR-anime-aug_X4_320", false},
		{core.OpUpscale, "nearest-x4", "nearest-x4", false},
		{core.OpAICheck, "", validate.DefaultModel + "/model.onnx", false},
		{core.OpAICheck, "mean-score", "mean-score", false},
		{core.OpAICheck, "resnet", "", true},
		{"sharpen", "", "", true},
	}
	for _, tt := range tests {
		cfg := &core.Config{Operation: tt.op, Model: tt.model}
		got, err := modelName(cfg)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("modelName(%s, %q) = %q, %v; want %q (error %v)", tt.op, tt.model, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestRunWatch_StopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, core.OpRestore)
	cfg.InboxDir = filepath.Join(dir, "inbox")
	cfg.OutboxDir = filepath.Join(dir, "outbox")
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ShutdownTimeout = 5 * time.Second

	var stdout, stderr bytes.Buffer
	a := &app{
		stdout:   &stdout,
		stderr:   &stderr,
		cfg:      cfg,
		inferCfg: inference.DefaultConfig(),
		logger:   testLogger(t),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.runWatch(ctx, false) }()

	// runWatch creates the inbox during preflight.
	input := filepath.Join(cfg.InboxDir, "a.png")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(cfg.InboxDir); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("inbox never created")
		}
		time.Sleep(5 * time.Millisecond)
	}
	staged := filepath.Join(dir, "a.png")
	writeImage(t, staged, 16, 16)
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(staged, old, old); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(staged, input); err != nil {
		t.Fatal(err)
	}

	output := OutputPath(input, core.OpRestore, cfg.OutboxDir)
	for {
		if _, err := os.Stat(output); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watch never produced an output")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runWatch() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runWatch did not return after cancel")
	}
	if a.exitCode != core.ExitCodeSuccess {
		t.Errorf("exit code = %d", a.exitCode)
	}
}
