package logging

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestJobFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	m := JobMetrics{
		ID:        "job-1",
		Operation: "upscale",
		Model:     "nearest-x2",
		Input:     "a.png",
		Output:    "a.x2.png",
		Width:     500,
		Height:    400,
		OutWidth:  1000,
		OutHeight: 1000,
		Duration:  2 * time.Second,
		Success:   true,
	}
	logger.Info("job finished", JobFields(m))

	job, ok := logs.All()[0].ContextMap()["job"].(map[string]interface{})
	if !ok {
		t.Fatalf("job field = %#v", logs.All()[0].ContextMap()["job"])
	}
	if job["id"] != "job-1" || job["out_width"] != int64(1000) || job["duration_ms"] != int64(2000) {
		t.Errorf("job = %v", job)
	}
	if job["mpix_per_second"] != 0.5 {
		t.Errorf("mpix_per_second = %v, want 0.5", job["mpix_per_second"])
	}
	if _, ok := job["score"]; ok {
		t.Error("score should only be logged for aicheck jobs")
	}
}

func TestJobMetrics_AICheckAndFailure(t *testing.T) {
	enc := zapcore.NewMapObjectEncoder()
	m := JobMetrics{Operation: "aicheck", Score: 0.75, Error: "boom"}
	if err := m.MarshalLogObject(enc); err != nil {
		t.Fatalf("MarshalLogObject() error: %v", err)
	}
	if enc.Fields["score"] != float32(0.75) || enc.Fields["error"] != "boom" || enc.Fields["success"] != false {
		t.Errorf("fields = %v", enc.Fields)
	}
	if _, ok := enc.Fields["mpix_per_second"]; ok {
		t.Error("throughput needs an output size")
	}
	if (JobMetrics{OutWidth: 10, OutHeight: 10}).MegapixelsPerSecond() != 0 {
		t.Error("zero duration should give zero throughput")
	}
}

func TestTimingFields(t *testing.T) {
	start := time.Unix(100, 0)
	fields := TimingFields(start, start.Add(1500*time.Millisecond))
	if len(fields) != 3 || fields[2].Key != "duration" || time.Duration(fields[2].Integer) != 1500*time.Millisecond {
		t.Errorf("TimingFields() = %v", fields)
	}
}
