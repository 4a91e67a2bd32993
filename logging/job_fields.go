package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// JobMetrics describes one finished image job. It implements
// zapcore.ObjectMarshaler so it logs as a nested object.
type JobMetrics struct {
	ID        string
	Operation string
	Model     string
	Input     string
	Output    string
	Width     int
	Height    int
	OutWidth  int
	OutHeight int
	Duration  time.Duration
	// Score is set by AI checks only.
	Score   float32
	Success bool
	Error   string
}

// MegapixelsPerSecond is output throughput; zero when Duration is zero.
func (m JobMetrics) MegapixelsPerSecond() float64 {
	if m.Duration <= 0 {
		return 0
	}
	return float64(m.OutWidth*m.OutHeight) / 1e6 / m.Duration.Seconds()
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (m JobMetrics) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", m.ID)
	enc.AddString("operation", m.Operation)
	if m.Model != "" {
		enc.AddString("model", m.Model)
	}
	enc.AddString("input", m.Input)
	if m.Output != "" {
		enc.AddString("output", m.Output)
	}
	enc.AddInt("width", m.Width)
	enc.AddInt("height", m.Height)
	if m.OutWidth > 0 {
		enc.AddInt("out_width", m.OutWidth)
		enc.AddInt("out_height", m.OutHeight)
		enc.AddFloat64("mpix_per_second", m.MegapixelsPerSecond())
	}
	enc.AddInt64("duration_ms", m.Duration.Milliseconds())
	if m.Operation == "aicheck" {
		enc.AddFloat32("score", m.Score)
	}
	enc.AddBool("success", m.Success)
	if m.Error != "" {
		enc.AddString("error", m.Error)
	}
	return nil
}

// JobFields wraps a job summary as a single "job" field.
//
//	logger.Info("job finished", logging.JobFields(m))
func JobFields(m JobMetrics) zap.Field {
	return zap.Object("job", m)
}

// TimingFields returns start, end and duration fields for a span.
func TimingFields(start, end time.Time) []zap.Field {
	return []zap.Field{
		zap.Time("start_time", start),
		zap.Time("end_time", end),
		zap.Duration("duration", end.Sub(start)),
	}
}
