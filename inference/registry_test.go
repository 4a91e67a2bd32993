package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"go_imgutils/tensor"

	"go.uber.org/zap/zaptest"
)

func TestRegistryCachesPools(t *testing.T) {
	reg := NewRegistry(nil, zaptest.NewLogger(t))
	defer reg.Close()

	p1, err := reg.Pool("identity")
	if err != nil {
		t.Fatalf("Pool() error: %v", err)
	}
	p2, _ := reg.Pool("identity")
	if p1 != p2 {
		t.Error("Pool() should return the cached pool")
	}
	if _, err := reg.Pool("nearest-x4"); err != nil {
		t.Fatalf("Pool(nearest-x4) error: %v", err)
	}
	if got := reg.Names(); !reflect.DeepEqual(got, []string{"identity", "nearest-x4"}) {
		t.Errorf("Names() = %v", got)
	}
	if _, err := reg.Pool(""); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Pool(\"\") error = %v, want ErrUnknownModel", err)
	}
}

func TestRegistryCustomLoader(t *testing.T) {
	reg := NewRegistry(&Config{ModelDir: "/m", MaxSessions: 2}, nil)
	defer reg.Close()

	var gotPath string
	reg.Register("SCUNet-GAN", func(path string) (Session, error) {
		gotPath = path
		return &fakeSession{}, nil
	})
	pool, err := reg.Pool("SCUNet-GAN")
	if err != nil {
		t.Fatalf("Pool() error: %v", err)
	}
	if _, err := pool.Run(context.Background(), tensor.New(1, 3, 2, 2)); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if gotPath != filepath.Join("/m", "SCUNet-GAN.onnx") {
		t.Errorf("loader got path %q", gotPath)
	}
	if pool.MaxSize() != 2 {
		t.Errorf("MaxSize() = %d, want 2", pool.MaxSize())
	}
}

func TestRegistryFileModels(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(&Config{
		ModelDir:       dir,
		MaxSessions:    1,
		RuntimeLibrary: filepath.Join(dir, "lib", "libonnxruntime.so"),
	}, nil)
	defer reg.Close()

	missing, _ := reg.Pool("absent")
	if _, err := missing.Run(context.Background(), tensor.New(1, 3, 2, 2)); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Run(missing model) error = %v, want ErrModelNotFound", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "present.onnx"), []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}
	present, _ := reg.Pool("present")
	if _, err := present.Run(context.Background(), tensor.New(1, 3, 2, 2)); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Run(file model without runtime) error = %v, want ErrBackendUnavailable", err)
	}
}

func TestRegistryClose(t *testing.T) {
	reg := NewRegistry(nil, nil)
	pool, _ := reg.Pool("identity")
	if err := reg.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !pool.IsClosed() {
		t.Error("Close() should close every pool")
	}
	if _, err := reg.Pool("identity"); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Pool() after Close() error = %v, want ErrPoolClosed", err)
	}
	if err := reg.Close(); err != nil {
		t.Errorf("double Close() error: %v", err)
	}
}

func TestVerifyModelChecksum(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.onnx")
	content := []byte("model weights")
	if err := os.WriteFile(model, content, 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	if err := VerifyModelChecksum(model); err != nil {
		t.Errorf("no sidecar: error = %v, want nil", err)
	}

	tests := []struct {
		name    string
		sidecar string
		want    error
	}{
		{"bare digest", digest, nil},
		{"sha256sum format", digest + "  model.onnx\n", nil},
		{"mismatch", hex.EncodeToString(make([]byte, 32)), ErrModelCorrupted},
		{"malformed", "abc", ErrModelCorrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(model+ChecksumSuffix, []byte(tt.sidecar), 0o644); err != nil {
				t.Fatal(err)
			}
			err := VerifyModelChecksum(model)
			if tt.want == nil && err != nil {
				t.Errorf("VerifyModelChecksum() error = %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("VerifyModelChecksum() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := VerifyModelChecksum(filepath.Join(dir, "nope.onnx")); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("missing model error = %v, want ErrModelNotFound", err)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("INFER_MODEL_DIR", "")
	t.Setenv("INFER_MAX_SESSIONS", "")
	t.Setenv("INFER_TIMEOUT_SECONDS", "")
	t.Setenv("INFER_ORT_LIBRARY", "")

	cfg := LoadConfig()
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("LoadConfig() with empty env = %+v, want defaults", cfg)
	}

	t.Setenv("INFER_MODEL_DIR", "/opt/models")
	t.Setenv("INFER_MAX_SESSIONS", "4")
	t.Setenv("INFER_TIMEOUT_SECONDS", "0")
	t.Setenv("INFER_ORT_LIBRARY", "/opt/ort/libonnxruntime.so")
	cfg = LoadConfig()
	if cfg.ModelDir != "/opt/models" || cfg.MaxSessions != 4 || cfg.Timeout != 0 ||
		cfg.RuntimeLibrary != "/opt/ort/libonnxruntime.so" {
		t.Errorf("LoadConfig() = %+v", cfg)
	}
}

func TestParseHelpers(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", DefaultMaxSessions},
		{"8", 8},
		{"0", DefaultMaxSessions},
		{"65", DefaultMaxSessions},
		{"x", DefaultMaxSessions},
	}
	for _, tt := range tests {
		if got := parseMaxSessions(tt.in); got != tt.want {
			t.Errorf("parseMaxSessions(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if got := parseTimeout("-3"); got != time.Duration(DefaultTimeoutSeconds)*time.Second {
		t.Errorf("parseTimeout(-3) = %v", got)
	}
	if got := parseTimeout("30"); got != 30*time.Second {
		t.Errorf("parseTimeout(30) = %v", got)
	}
}

func TestConfigModelPath(t *testing.T) {
	cfg := &Config{ModelDir: "models"}
	tests := []struct{ in, want string }{
		{"SCUNet-GAN", filepath.Join("models", "SCUNet-GAN.onnx")},
		{"mobilenetv3_sce_dist/model.onnx", filepath.Join("models", "mobilenetv3_sce_dist", "model.onnx")},
		{"/abs/model.onnx", "/abs/model.onnx"},
	}
	for _, tt := range tests {
		if got := cfg.ModelPath(tt.in); got != tt.want {
			t.Errorf("ModelPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
