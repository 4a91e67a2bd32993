package core

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestGetDataDirectory(t *testing.T) {
	dir := GetDataDirectory()
	if dir == "" {
		t.Fatal("GetDataDirectory() returned empty string")
	}
	want := "." + AppName
	if runtime.GOOS == "windows" {
		want = AppName
	}
	if filepath.Base(dir) != want {
		t.Errorf("GetDataDirectory() = %q, want base %q", dir, want)
	}
}

func TestGetDataFilePath(t *testing.T) {
	path := GetDataFilePath("jobs.db")
	if !strings.HasPrefix(path, GetDataDirectory()) || filepath.Base(path) != "jobs.db" {
		t.Errorf("GetDataFilePath() = %q", path)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir() error: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
	if err := EnsureDir(dir); err != nil {
		t.Errorf("EnsureDir() on existing dir: %v", err)
	}
}
