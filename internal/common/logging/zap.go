package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, destination and encoding
type Config struct {
	// Level is a zap level name; "warning" is accepted and unknown names mean info
	Level string
	// Output defaults to stderr
	Output io.Writer
	// JSON switches from the console encoder to JSON lines
	JSON bool
	// Name is prepended to every entry
	Name string
}

// ParseLevel maps a level name to a zap level, defaulting to info
func ParseLevel(name string) zapcore.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil || name == "" {
		return zapcore.InfoLevel
	}
	return level
}

type zapLogger struct {
	logger *zap.Logger
}

// New builds a zap-backed Logger
func New(config Config) Logger {
	return newZap(config)
}

func newZap(config Config) *zapLogger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	encoderConfig.CallerKey = zapcore.OmitKey

	var encoder zapcore.Encoder
	if config.JSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	logger := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(out), ParseLevel(config.Level)))
	if config.Name != "" {
		logger = logger.Named(config.Name)
	}
	return &zapLogger{logger: logger}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return &zapLogger{logger: zap.NewNop()}
}

func (z *zapLogger) Debug(msg string, fields ...Field) {
	z.logger.Debug(msg, toZap(fields)...)
}

func (z *zapLogger) Info(msg string, fields ...Field) {
	z.logger.Info(msg, toZap(fields)...)
}

func (z *zapLogger) Warn(msg string, fields ...Field) {
	z.logger.Warn(msg, toZap(fields)...)
}

func (z *zapLogger) Error(msg string, err error, fields ...Field) {
	zf := toZap(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	z.logger.Error(msg, zf...)
}

func (z *zapLogger) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return z
	}
	return &zapLogger{logger: z.logger.With(toZap(fields)...)}
}

// WithContext attaches the run, service and pipeline values found in ctx
func (z *zapLogger) WithContext(ctx context.Context) Logger {
	var fields []zap.Field
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	if len(fields) == 0 {
		return z
	}
	return &zapLogger{logger: z.logger.With(fields...)}
}

func toZap(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}

// InitGlobalLogger configures the global logger for an ingestion run. An empty
// level falls back to LOG_LEVEL. With a logFile, entries are appended there as
// JSON lines and the returned Closer closes the file.
func InitGlobalLogger(level string, logFile string) (io.Closer, error) {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	config := Config{Level: level, Name: "ingestion"}
	var closer io.Closer = nopCloser{}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		config.Output = file
		config.JSON = true
		closer = file
	}

	logger := newZap(config)
	SetGlobalLogger(logger)
	logger.Debug("Logger initialized",
		String("level", ParseLevel(level).String()),
		String("log_file", logFile),
	)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// MustSync flushes buffered entries of the global logger
func MustSync() {
	if z, ok := GetGlobalLogger().(*zapLogger); ok {
		_ = z.logger.Sync()
	}
}
