package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeConfigFile       = "CONFIG_FILE"
	ErrCodeInvalidOption    = "INVALID_OPTION"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeInvalidPath      = "INVALID_PATH"
	ErrCodeMissingConfig    = "MISSING_CONFIG"
)

// ErrConfigFile returns an error for an unreadable or malformed config file.
func ErrConfigFile(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFile,
		Message: fmt.Sprintf("Cannot load config file %s: %s", path, reason),
		Action:  "Fix the YAML file or unset IMGUTILS_CONFIG",
	}
}

// ErrInvalidOption returns an error for an out-of-range engine or job option.
func ErrInvalidOption(name string, value any, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidOption,
		Message: fmt.Sprintf("Invalid %s '%v': %s", name, value, reason),
		Action:  fmt.Sprintf("Set %s to a valid value in your .env, config file or flags", name),
	}
}

// ErrInvalidOperation returns an error for an unknown watch operation.
func ErrInvalidOperation(op string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidOperation,
		Message: fmt.Sprintf("Unknown operation '%s'", op),
		Action:  "Set IMGUTILS_OPERATION to one of: restore, upscale, aicheck",
	}
}

// ErrInvalidPath returns an error for a directory or file that cannot be used.
func ErrInvalidPath(name, path, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidPath,
		Message: fmt.Sprintf("Invalid %s '%s': %s", name, path, reason),
		Action:  fmt.Sprintf("Point %s at a writable location", name),
	}
}

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file or pass it as a flag", varName),
	}
}

// IsConfigError checks if an error is (or wraps) a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
