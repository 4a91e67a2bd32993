package logging

import (
	"go.uber.org/zap/zapcore"
)

// NewConsoleCore returns a single console core. Development mode uses the
// colored console encoder; otherwise lines are JSON.
func NewConsoleCore(level zapcore.Level, console zapcore.WriteSyncer, isDev bool) zapcore.Core {
	var enc zapcore.Encoder
	if isDev {
		enc = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(NewEncoderConfig())
	}
	return zapcore.NewCore(enc, console, level)
}

// NewMultiCoreWithWriters tees output to a console writer and a file
// writer. The file always gets JSON; the console follows isDev.
//
// Example:
//
//	var buf bytes.Buffer
//	core := NewMultiCoreWithWriters(zapcore.DebugLevel, zapcore.AddSync(os.Stderr), zapcore.AddSync(&buf), true)
//	logger := zap.New(core)
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), fileWriter, level)
	return zapcore.NewTee(NewConsoleCore(level, consoleWriter, isDev), fileCore)
}
