package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Operation names a job kind.
type Operation string

// Supported operations.
const (
	OpRestore Operation = "restore"
	OpUpscale Operation = "upscale"
	OpAICheck Operation = "aicheck"
)

// Operations lists every supported operation.
var Operations = []Operation{OpRestore, OpUpscale, OpAICheck}

// ParseOperation accepts an operation name, case-insensitive.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	return "", ErrInvalidOperation(s)
}

// UseDefault leaves a tile option at the operation's own default.
const UseDefault = -1

// Config holds application configuration. Model runtime settings live in
// inference.Config.
type Config struct {
	// Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	DevMode  bool   `yaml:"dev_mode"`

	// Job defaults. Tile options set to UseDefault defer to the operation.
	Operation          Operation `yaml:"operation"`
	Model              string    `yaml:"model"`
	TileSize           int       `yaml:"tile_size"`
	TileOverlap        int       `yaml:"tile_overlap"`
	BatchSize          int       `yaml:"batch_size"`
	Workers            int       `yaml:"workers"`
	Background         string    `yaml:"background"`
	AlphaInterpolation string    `yaml:"alpha_interpolation"`
	Threshold          float64   `yaml:"threshold"`
	Silent             bool      `yaml:"silent"`

	// Watch mode
	InboxDir        string        `yaml:"inbox_dir"`
	OutboxDir       string        `yaml:"outbox_dir"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxFileSize     int64         `yaml:"max_file_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Job history
	DatabasePath    string `yaml:"database_path"`
	MetricsCapacity int    `yaml:"metrics_capacity"`
	RetentionDays   int    `yaml:"retention_days"` // 0 keeps jobs forever
}

// Default configuration values
const (
	DefaultLogLevel        = "info"
	DefaultLogFile         = "imgutils.log"
	DefaultBackground      = "white"
	DefaultThreshold       = 0.5
	DefaultPollInterval    = 2 * time.Second
	DefaultMaxFileSize     = 200 * 1024 * 1024
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsCapacity = 1000
	DefaultDatabaseFile    = "jobs.db"
	DefaultRetentionDays   = 30
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:        DefaultLogLevel,
		LogFile:         DefaultLogFile,
		Operation:       OpRestore,
		TileSize:        UseDefault,
		TileOverlap:     UseDefault,
		BatchSize:       UseDefault,
		Workers:         1,
		Background:      DefaultBackground,
		Threshold:       DefaultThreshold,
		InboxDir:        "inbox",
		OutboxDir:       "outbox",
		PollInterval:    DefaultPollInterval,
		MaxFileSize:     DefaultMaxFileSize,
		ShutdownTimeout: DefaultShutdownTimeout,
		DatabasePath:    GetDataFilePath(DefaultDatabaseFile),
		MetricsCapacity: DefaultMetricsCapacity,
		RetentionDays:   DefaultRetentionDays,
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// IMGUTILS_CONFIG (if any) and IMGUTILS_* environment variables, in that
// order of increasing precedence. The result is validated.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := GetEnvOrDefault("IMGUTILS_CONFIG", ""); path != "" {
		fileCfg, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	cfg.applyEnv()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML config file on top of DefaultConfig. Unknown
// keys are rejected. The result is not validated.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrConfigFile(path, err.Error())
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ErrConfigFile(path, err.Error())
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = GetEnvOrDefault("IMGUTILS_LOG_LEVEL", c.LogLevel)
	c.LogFile = GetEnvOrDefault("IMGUTILS_LOG_FILE", c.LogFile)
	c.DevMode = ParseBoolEnv("IMGUTILS_DEV_MODE", c.DevMode)

	c.Operation = Operation(GetEnvOrDefault("IMGUTILS_OPERATION", string(c.Operation)))
	c.Model = GetEnvOrDefault("IMGUTILS_MODEL", c.Model)
	c.TileSize = ParseIntEnv("IMGUTILS_TILE_SIZE", c.TileSize)
	c.TileOverlap = ParseIntEnv("IMGUTILS_TILE_OVERLAP", c.TileOverlap)
	c.BatchSize = ParseIntEnv("IMGUTILS_BATCH_SIZE", c.BatchSize)
	c.Workers = ParseIntEnv("IMGUTILS_WORKERS", c.Workers)
	c.Background = GetEnvOrDefault("IMGUTILS_BACKGROUND", c.Background)
	c.AlphaInterpolation = GetEnvOrDefault("IMGUTILS_ALPHA_INTERPOLATION", c.AlphaInterpolation)
	c.Threshold = ParseFloat64Env("IMGUTILS_THRESHOLD", c.Threshold)
	c.Silent = ParseBoolEnv("IMGUTILS_SILENT", c.Silent)

	c.InboxDir = GetEnvOrDefault("IMGUTILS_INBOX_DIR", c.InboxDir)
	c.OutboxDir = GetEnvOrDefault("IMGUTILS_OUTBOX_DIR", c.OutboxDir)
	c.PollInterval = ParseDurationEnv("IMGUTILS_POLL_INTERVAL", c.PollInterval)
	c.MaxFileSize = ParseInt64Env("IMGUTILS_MAX_FILE_SIZE", c.MaxFileSize)
	c.ShutdownTimeout = ParseDurationEnv("IMGUTILS_SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.DatabasePath = GetEnvOrDefault("IMGUTILS_DATABASE_PATH", c.DatabasePath)
	c.MetricsCapacity = ParseIntEnv("IMGUTILS_METRICS_CAPACITY", c.MetricsCapacity)
	c.RetentionDays = ParseIntEnv("IMGUTILS_RETENTION_DAYS", c.RetentionDays)
}

// ValidateConfig checks option ranges and returns the first problem as a
// *ConfigError. Operation names are normalized in place.
func ValidateConfig(c *Config) error {
	op, err := ParseOperation(string(c.Operation))
	if err != nil {
		return err
	}
	c.Operation = op

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ErrInvalidOption("IMGUTILS_LOG_LEVEL", c.LogLevel, "must be debug, info, warn or error")
	}

	if c.TileSize != UseDefault && c.TileSize < 1 {
		return ErrInvalidOption("IMGUTILS_TILE_SIZE", c.TileSize, "must be at least 1")
	}
	if c.TileOverlap != UseDefault && c.TileOverlap < 0 {
		return ErrInvalidOption("IMGUTILS_TILE_OVERLAP", c.TileOverlap, "must not be negative")
	}
	if c.TileSize != UseDefault && c.TileOverlap != UseDefault && c.TileOverlap >= c.TileSize {
		return ErrInvalidOption("IMGUTILS_TILE_OVERLAP", c.TileOverlap,
			fmt.Sprintf("must be less than tile size %d", c.TileSize))
	}
	if c.BatchSize != UseDefault && c.BatchSize < 1 {
		return ErrInvalidOption("IMGUTILS_BATCH_SIZE", c.BatchSize, "must be at least 1")
	}
	if c.Workers < 0 {
		return ErrInvalidOption("IMGUTILS_WORKERS", c.Workers, "must not be negative")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return ErrInvalidOption("IMGUTILS_THRESHOLD", c.Threshold, "must be within [0, 1]")
	}
	if c.PollInterval <= 0 {
		return ErrInvalidOption("IMGUTILS_POLL_INTERVAL", c.PollInterval, "must be positive")
	}
	if c.MaxFileSize < 0 {
		return ErrInvalidOption("IMGUTILS_MAX_FILE_SIZE", c.MaxFileSize, "must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return ErrInvalidOption("IMGUTILS_SHUTDOWN_TIMEOUT", c.ShutdownTimeout, "must be positive")
	}
	if c.MetricsCapacity < 1 {
		return ErrInvalidOption("IMGUTILS_METRICS_CAPACITY", c.MetricsCapacity, "must be at least 1")
	}
	if c.RetentionDays < 0 {
		return ErrInvalidOption("IMGUTILS_RETENTION_DAYS", c.RetentionDays, "must not be negative")
	}
	if c.DatabasePath == "" {
		return ErrMissingConfig("IMGUTILS_DATABASE_PATH")
	}
	return nil
}
