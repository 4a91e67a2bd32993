// Package inference provides caller-owned model handles for the tiling engine.
package inference

import "errors"

// Sentinel errors for model loading and execution.
var (
	// Model-related errors
	ErrModelNotFound   = errors.New("inference: model file not found")
	ErrModelLoadFailed = errors.New("inference: failed to load model")
	ErrModelCorrupted  = errors.New("inference: model file is corrupted or invalid")
	ErrUnknownModel    = errors.New("inference: unknown model name")

	// Execution errors
	ErrInferenceFailed    = errors.New("inference: session run failed")
	ErrUnexpectedOutput   = errors.New("inference: unexpected output shape")
	ErrBackendUnavailable = errors.New("inference: no native runtime available")
	ErrRuntimeLoadFailed  = errors.New("inference: failed to load ONNX Runtime")

	// Input validation errors
	ErrInvalidParams = errors.New("inference: invalid parameters")

	// Session pool errors
	ErrPoolClosed     = errors.New("inference: session pool is closed")
	ErrAcquireTimeout = errors.New("inference: timeout acquiring session from pool")
)
