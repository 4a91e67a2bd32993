package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyFileWriterDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   FileWriterConfig
		want FileWriterConfig
	}{
		{"zero", FileWriterConfig{}, FileWriterConfig{MaxSizeMB: DefaultMaxSizeMB, MaxBackups: DefaultMaxBackups, MaxAgeDays: DefaultMaxAgeDays}},
		{"custom", FileWriterConfig{MaxSizeMB: 5, MaxBackups: 1, MaxAgeDays: 2, Compress: true}, FileWriterConfig{MaxSizeMB: 5, MaxBackups: 1, MaxAgeDays: 2, Compress: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applyFileWriterDefaults(tt.in); got != tt.want {
				t.Errorf("applyFileWriterDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}
	if !DefaultFileWriterConfig().Compress {
		t.Error("default config should compress")
	}
}

func TestFileWriter_WritesLazily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotate.log")
	w := NewFileWriterWithConfig(path, DefaultFileWriterConfig())

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should not exist before first write: %v", err)
	}
	if _, err := w.Write([]byte("line\n")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil || string(content) != "line\n" {
		t.Errorf("content = %q, %v", content, err)
	}
}
