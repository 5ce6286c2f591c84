// Package logging builds the zap logger behind the observability.Logger port.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// SystemTraceID and SystemSpanID mark log lines emitted outside any request, such as
	// startup, shutdown and configuration warnings.
	SystemTraceID = "system"
	SystemSpanID  = "system"

	unknownID = "unknown"

	envLogLevel = "LOG_LEVEL"
	envLogFile  = "LOG_FILE"
)

// NewLogger builds the JSON logger shared by the storefront. Every entry carries service,
// env and instance (the host name), so lines from several replicas behind one Redis can be
// told apart. The level is debug in dev and info elsewhere unless LOG_LEVEL is set. LOG_FILE
// adds a file sink next to stdout.
func NewLogger(service, env string) (*zap.Logger, error) {
	level, err := levelFor(env)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stdout"}
	if env == "dev" {
		// no sampling in dev
		cfg.Sampling = nil
	}
	if path := os.Getenv(envLogFile); path != "" {
		if err := touch(path); err != nil {
			return nil, fmt.Errorf("logging: prepare %s: %w", path, err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, path)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, path)
	}

	enc := &cfg.EncoderConfig
	enc.TimeKey = "ts"
	enc.MessageKey = "msg"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder

	instance, _ := os.Hostname()
	if instance == "" {
		instance = unknownID
	}
	cfg.InitialFields = map[string]any{
		"service":  service,
		"env":      env,
		"instance": instance,
	}

	return cfg.Build()
}

func levelFor(env string) (zapcore.Level, error) {
	if raw := os.Getenv(envLogLevel); raw != "" {
		level, err := zapcore.ParseLevel(raw)
		if err != nil {
			return zapcore.InfoLevel, fmt.Errorf("logging: parse %s: %w", envLogLevel, err)
		}
		return level, nil
	}
	if env == "dev" {
		return zapcore.DebugLevel, nil
	}
	return zapcore.InfoLevel, nil
}

// WithTrace pins trace_id and span_id on logger. Empty ids are logged as "unknown" so the
// fields are always present for log queries.
func WithTrace(logger *zap.Logger, traceID, spanID string) *zap.Logger {
	if logger == nil {
		logger = zap.L()
	}
	return logger.With(
		zap.String("trace_id", orUnknown(traceID)),
		zap.String("span_id", orUnknown(spanID)),
	)
}

func orUnknown(id string) string {
	if id == "" {
		return unknownID
	}
	return id
}

// touch creates path and its directory when missing. Existing content is left alone.
func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
