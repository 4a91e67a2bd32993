package core

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Env parse helpers return def when the variable is unset, empty or
// unparseable. Passing the current value as def lets env vars layer on top
// of a config file.

// GetEnvOrDefault returns the value of an environment variable or a default value.
func GetEnvOrDefault(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

// ParseIntEnv parses an environment variable as an integer.
func ParseIntEnv(key string, def int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return def
}

// ParseInt64Env parses an environment variable as an int64.
func ParseInt64Env(key string, def int64) int64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return def
}

// ParseFloat64Env parses an environment variable as a float64.
func ParseFloat64Env(key string, def float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return def
}

// ParseBoolEnv parses an environment variable as a boolean.
// Accepts true/1/yes/on and false/0/no/off, case-insensitive.
func ParseBoolEnv(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}

// ParseDurationEnv parses an environment variable as a duration. Bare
// integers are seconds; anything else goes through time.ParseDuration.
func ParseDurationEnv(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return def
}
