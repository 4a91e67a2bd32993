package inference

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds model runtime settings.
type Config struct {
	ModelDir       string        // directory holding <name>.onnx files
	MaxSessions    int           // sessions per model pool
	Timeout        time.Duration // per-image processing budget
	RuntimeLibrary string        // ONNX Runtime shared library; empty searches for the platform default
}

// Default configuration values
const (
	DefaultModelDir       = "models"
	DefaultMaxSessions    = 1
	DefaultTimeoutSeconds = 600
	MaxSessionsLimit      = 64
)

// LoadConfig loads runtime configuration from INFER_* environment variables.
// Invalid or missing values fall back to defaults.
func LoadConfig() *Config {
	return &Config{
		ModelDir:    parseModelDir(os.Getenv("INFER_MODEL_DIR")),
		MaxSessions: parseMaxSessions(os.Getenv("INFER_MAX_SESSIONS")),
		Timeout:     parseTimeout(os.Getenv("INFER_TIMEOUT_SECONDS")),

		RuntimeLibrary: os.Getenv("INFER_ORT_LIBRARY"),
	}
}

// DefaultConfig returns the configuration used when no environment is set.
func DefaultConfig() *Config {
	return &Config{
		ModelDir:    DefaultModelDir,
		MaxSessions: DefaultMaxSessions,
		Timeout:     time.Duration(DefaultTimeoutSeconds) * time.Second,
	}
}

// ModelPath returns the on-disk location of a named model. Names without
// an extension get ".onnx"; relative names resolve under ModelDir.
func (c *Config) ModelPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if filepath.Ext(name) == "" {
		name += ".onnx"
	}
	return filepath.Join(c.ModelDir, name)
}

func parseModelDir(s string) string {
	if s == "" {
		return DefaultModelDir
	}
	return s
}

// parseMaxSessions accepts 1..MaxSessionsLimit.
func parseMaxSessions(s string) int {
	if s == "" {
		return DefaultMaxSessions
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > MaxSessionsLimit {
		return DefaultMaxSessions
	}
	return n
}

// parseTimeout parses a timeout in seconds. Zero disables the budget.
func parseTimeout(s string) time.Duration {
	if s == "" {
		return time.Duration(DefaultTimeoutSeconds) * time.Second
	}
	seconds, err := strconv.Atoi(s)
	if err != nil || seconds < 0 {
		return time.Duration(DefaultTimeoutSeconds) * time.Second
	}
	return time.Duration(seconds) * time.Second
}
