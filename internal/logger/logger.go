// Package logger provides the process-wide structured logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Stage values accepted by InitLogger.
const (
	StageLocal = "local"
	StageDev   = "dev"
	StageProd  = "prod"
)

// Log is the global logger instance. It is nil until InitLogger runs.
var Log *zap.Logger

// IsValidStage reports whether stage is one of the recognized deployment stages.
func IsValidStage(stage string) bool {
	switch stage {
	case StageLocal, StageDev, StageProd:
		return true
	default:
		return false
	}
}

// InitLogger initializes the global logger for the given stage.
func InitLogger(stage string) {
	var config zap.Config
	if stage == StageProd {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	built, err := config.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	Log = built
}

// Info logs at InfoLevel.
func Info(msg string, fields ...zapcore.Field) { Log.Info(msg, fields...) }

// Error logs at ErrorLevel.
func Error(msg string, fields ...zapcore.Field) { Log.Error(msg, fields...) }

// Debug logs at DebugLevel.
func Debug(msg string, fields ...zapcore.Field) { Log.Debug(msg, fields...) }

// Warn logs at WarnLevel.
func Warn(msg string, fields ...zapcore.Field) { Log.Warn(msg, fields...) }

// Fatal logs at FatalLevel and exits the process.
func Fatal(msg string, fields ...zapcore.Field) { Log.Fatal(msg, fields...) }

// With returns a child logger carrying the given structured fields.
func With(fields ...zapcore.Field) *zap.Logger { return Log.With(fields...) }

// Sync flushes buffered log entries.
func Sync() error { return Log.Sync() }
