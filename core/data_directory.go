package core

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the application name used in data directory paths.
const AppName = "imgutils"

// GetDataDirectory returns the platform-specific directory holding the job
// database and log files. It does not create the directory.
//
//   - Windows: %APPDATA%\imgutils
//   - Linux/macOS: ~/.imgutils
func GetDataDirectory() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppName)
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return AppName
		}
		return filepath.Join(home, "AppData", "Roaming", AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(home, "."+AppName)
}

// GetDataFilePath returns the full path for a file within the data directory.
func GetDataFilePath(filename string) string {
	return filepath.Join(GetDataDirectory(), filename)
}

// EnsureDir creates dir (owner-only permissions) if it doesn't exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o700)
}
