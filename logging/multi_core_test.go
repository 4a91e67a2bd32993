package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewMultiCoreWithWriters(t *testing.T) {
	tests := []struct {
		name        string
		isDev       bool
		consoleJSON bool
	}{
		{"development", true, false},
		{"production", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var console, file bytes.Buffer
			core := NewMultiCoreWithWriters(zapcore.InfoLevel, zapcore.AddSync(&console), zapcore.AddSync(&file), tt.isDev)
			logger := zap.New(core)
			logger.Info("tee test", zap.String("op", "restore"))
			logger.Debug("below level")

			var entry map[string]interface{}
			if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
				t.Fatalf("file output is not JSON: %v (%q)", err, file.String())
			}
			if entry["op"] != "restore" {
				t.Errorf("file entry = %v", entry)
			}
			if strings.Contains(file.String(), "below level") || strings.Contains(console.String(), "below level") {
				t.Error("debug entry should be filtered")
			}
			isJSON := json.Valid(bytes.TrimSpace(console.Bytes()))
			if isJSON != tt.consoleJSON {
				t.Errorf("console JSON = %v, want %v: %q", isJSON, tt.consoleJSON, console.String())
			}
		})
	}
}
