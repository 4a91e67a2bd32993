package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go_imgutils/core"

	"github.com/dustin/go-humanize"
)

// ErrNotFound is returned by FileCheck for a missing file.
var ErrNotFound = errors.New("validation: file not found")

// ConfigCheck validates cfg with core.ValidateConfig.
func ConfigCheck(cfg *core.Config) Check {
	return Check{
		Name: "Configuration",
		Run: func() (string, error) {
			if err := core.ValidateConfig(cfg); err != nil {
				return "", err
			}
			return fmt.Sprintf("operation %s", cfg.Operation), nil
		},
	}
}

// CheckFileExists returns nil when path is an existing regular file.
func CheckFileExists(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrNotFound)
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("error checking file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	return nil
}

// FileCheck requires path to be an existing file and reports its size.
func FileCheck(name, path string) Check {
	return Check{
		Name: name,
		Run: func() (string, error) {
			if err := CheckFileExists(path); err != nil {
				return "", err
			}
			info, _ := os.Stat(path)
			return fmt.Sprintf("%s (%s)", path, humanize.IBytes(uint64(info.Size()))), nil
		},
	}
}

// DirCheck requires dir to be a writable directory, creating it first
// when create is set.
func DirCheck(name, dir string, create bool) Check {
	return Check{
		Name: name,
		Run: func() (string, error) {
			if create {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return "", core.ErrInvalidPath(name, dir, err.Error())
				}
			}
			info, err := os.Stat(dir)
			if err != nil {
				return "", core.ErrInvalidPath(name, dir, err.Error())
			}
			if !info.IsDir() {
				return "", core.ErrInvalidPath(name, dir, "not a directory")
			}
			probe, err := os.CreateTemp(dir, ".imgutils-probe-*")
			if err != nil {
				return "", core.ErrInvalidPath(name, dir, "not writable: "+err.Error())
			}
			probe.Close()
			os.Remove(probe.Name())
			abs, _ := filepath.Abs(dir)
			return abs, nil
		},
	}
}

// DiskSpaceCheck warns when dir has less than required bytes free.
func DiskSpaceCheck(name, dir string, required int64) Check {
	return Check{
		Name:     name,
		Optional: true,
		Run: func() (string, error) {
			info, err := GetDiskSpace(dir)
			if err != nil {
				return "", err
			}
			if info.Free < required {
				return "", &DiskSpaceError{Path: dir, Required: required, Available: info.Free}
			}
			return fmt.Sprintf("%s free (%.0f%% used)", info.FreeFormatted(), info.UsedPercent), nil
		},
	}
}
