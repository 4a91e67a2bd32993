// Package metrics keeps in-memory statistics about image jobs for the
// lifetime of a process.
package metrics

import "time"

// JobRecord is one finished (or running) image job.
type JobRecord struct {
	ID        string        `json:"id"`
	Operation string        `json:"operation"` // restore, upscale, aicheck
	Model     string        `json:"model"`
	Input     string        `json:"input"`
	Status    string        `json:"status"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time,omitempty"`
	Duration  time.Duration `json:"duration"`
	// OutputPixels is width*height of the produced image; zero for checks.
	OutputPixels int64  `json:"output_pixels"`
	ErrorMsg     string `json:"error_msg,omitempty"`
}

// SystemStatus describes the running process.
type SystemStatus struct {
	Health    string        `json:"health"`
	Version   string        `json:"version"`
	Uptime    time.Duration `json:"uptime"`
	LastCheck time.Time     `json:"last_check"`
	// LastError is the most recent job error, if any.
	LastError string `json:"last_error,omitempty"`
}

// JobStats aggregates every recorded job.
type JobStats struct {
	TotalProcessed int64                      `json:"total_processed"`
	TotalSuccess   int64                      `json:"total_success"`
	TotalErrors    int64                      `json:"total_errors"`
	ByOperation    map[string]*OperationStats `json:"by_operation"`
}

// OperationStats aggregates jobs of one operation.
type OperationStats struct {
	Count       int64         `json:"count"`
	SuccessRate float64       `json:"success_rate"` // 0-100
	AvgDuration time.Duration `json:"avg_duration"`
	Megapixels  float64       `json:"megapixels"`
}

// Job status values
const (
	JobStatusSuccess    = "success"
	JobStatusError      = "error"
	JobStatusProcessing = "processing"
)

// Health values for SystemStatus
const (
	SystemHealthRunning  = "running"
	SystemHealthDegraded = "degraded"
	SystemHealthStopped  = "stopped"
)
