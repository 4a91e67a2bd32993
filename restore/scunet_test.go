package restore

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go_imgutils/inference"
	"go_imgutils/tiling"

	"go.uber.org/zap/zaptest"
)

func TestParseModel(t *testing.T) {
	tests := []struct {
		in      string
		want    Model
		wantErr bool
	}{
		{"", GAN, false},
		{"gan", GAN, false},
		{"PSNR", PSNR, false},
		{" psnr ", PSNR, false},
		{"esrgan", "", true},
	}
	for _, tt := range tests {
		got, err := ParseModel(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownModel) {
				t.Errorf("ParseModel(%q) error = %v, want ErrUnknownModel", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseModel(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if GAN.FileName() != "SCUNet-GAN" {
		t.Errorf("FileName() = %q", GAN.FileName())
	}
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	if o.TileSize != 128 || o.TileOverlap != 16 || o.BatchSize != 4 || o.Model != GAN {
		t.Errorf("DefaultOptions() = %+v", o)
	}
	if eo := o.engineOptions(); eo.Scale != 1 || eo.AlignmentUnit != 0 {
		t.Errorf("engine options scale=%d align=%d", eo.Scale, eo.AlignmentUnit)
	}
}

func gradient(w, h int, alpha bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if alpha {
				a = uint8((x * 255) / w)
			}
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: a})
		}
	}
	return img
}

func TestRestoreWithIdentityModel(t *testing.T) {
	reg := inference.NewRegistry(nil, zaptest.NewLogger(t))
	defer reg.Close()
	r := New(reg, zaptest.NewLogger(t))

	opts := DefaultOptions()
	opts.ModelName = inference.BuiltinIdentity
	opts.TileSize = 64
	opts.TileOverlap = 8

	src := gradient(150, 90, false)
	out, err := r.Restore(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	got := out.(*image.NRGBA)
	if got.Bounds() != src.Bounds() {
		t.Fatalf("bounds = %v, want %v", got.Bounds(), src.Bounds())
	}
	for i := range src.Pix {
		if got.Pix[i] != src.Pix[i] {
			t.Fatalf("byte %d = %d, want %d", i, got.Pix[i], src.Pix[i])
		}
	}
}

func TestRestoreKeepsAlpha(t *testing.T) {
	reg := inference.NewRegistry(nil, nil)
	defer reg.Close()

	opts := DefaultOptions()
	opts.ModelName = inference.BuiltinIdentity
	src := gradient(40, 30, true)

	out, err := New(reg, nil).Restore(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	got := out.(*image.NRGBA)
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			if got.NRGBAAt(x, y).A != src.NRGBAAt(x, y).A {
				t.Fatalf("alpha at (%d,%d) = %d, want %d", x, y, got.NRGBAAt(x, y).A, src.NRGBAAt(x, y).A)
			}
		}
	}
}

func TestRestoreErrors(t *testing.T) {
	reg := inference.NewRegistry(&inference.Config{ModelDir: t.TempDir(), MaxSessions: 1}, nil)
	defer reg.Close()
	r := New(reg, nil)
	src := gradient(20, 20, false)

	if _, err := r.Restore(context.Background(), src, DefaultOptions()); !errors.Is(err, inference.ErrModelNotFound) {
		t.Errorf("Restore() without model file error = %v, want ErrModelNotFound", err)
	}

	bad := DefaultOptions()
	bad.TileOverlap = bad.TileSize
	if _, err := r.Restore(context.Background(), src, bad); !errors.Is(err, tiling.ErrInvalidConfig) {
		t.Errorf("Restore() with overlap=tile error = %v, want ErrInvalidConfig", err)
	}

	unknown := DefaultOptions()
	unknown.Model = "SwinIR"
	if _, err := r.Restore(context.Background(), src, unknown); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Restore() with unknown model error = %v, want ErrUnknownModel", err)
	}

	upscaler := DefaultOptions()
	upscaler.ModelName = "nearest-x2"
	if _, err := r.Restore(context.Background(), src, upscaler); !errors.Is(err, tiling.ErrShapeMismatch) {
		t.Errorf("Restore() with an upscaling model error = %v, want ErrShapeMismatch", err)
	}
}

func TestRestoreModelFileNeedsRuntimeLibrary(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "SCUNet-GAN.onnx"), []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}
	library := filepath.Join(dir, "ort", "libonnxruntime.so")
	reg := inference.NewRegistry(&inference.Config{ModelDir: dir, MaxSessions: 1, RuntimeLibrary: library}, nil)
	defer reg.Close()

	_, err := New(reg, nil).Restore(context.Background(), gradient(8, 8, false), DefaultOptions())
	if !errors.Is(err, inference.ErrBackendUnavailable) {
		t.Fatalf("Restore() error = %v, want ErrBackendUnavailable", err)
	}
	if !strings.Contains(err.Error(), library) {
		t.Errorf("Restore() error %q does not name the runtime library", err)
	}
}
