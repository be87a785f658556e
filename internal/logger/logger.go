// Package logger builds the zap loggers used across the engine.
package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the log encoder.
type Format string

const (
	// FormatConsole is the human-readable, colored console encoder.
	FormatConsole Format = "CONSOLE"
	// FormatJSON is the structured JSON encoder.
	FormatJSON Format = "JSON"
)

// Component names passed to For.
const (
	ComponentAction   = "action"
	ComponentCore     = "core"
	ComponentTrack    = "track"
	ComponentStepper  = "stepper"
	ComponentOptical  = "optical"
	ComponentImporter = "importer"
	ComponentRunner   = "runner"
	ComponentStore    = "store"
	ComponentIPC      = "ipc"
	ComponentMetrics  = "metrics"
)

var (
	initOnce sync.Once
	mu       sync.Mutex
	ready    bool
)

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "NONE", "OFF":
		return zapcore.FatalLevel + 1
	default:
		return zapcore.InfoLevel
	}
}

func parseFormat(format string) Format {
	if Format(strings.ToUpper(format)) == FormatJSON {
		return FormatJSON
	}
	return FormatConsole
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

// New creates a logger writing to stderr at the given level and format.
func New(level string, format Format) *zap.Logger {
	return NewWithSink(level, format, zapcore.Lock(os.Stderr))
}

// NewWithSink creates a logger writing to ws.
func NewWithSink(level string, format Format, ws zapcore.WriteSyncer) *zap.Logger {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if format == FormatJSON {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = timeEncoder
		cfg.ConsoleSeparator = " | "
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, ws, zap.NewAtomicLevelAt(parseLevel(level)))
	return zap.New(core, zap.AddCaller())
}

// Initialize installs the global logger once. Empty arguments fall back to
// LOGGING_LEVEL and LOGGING_FORMAT, then to INFO and CONSOLE.
func Initialize(level, format string) {
	initOnce.Do(func() {
		level = envOr("LOGGING_LEVEL", orDefault(level, "INFO"))
		f := parseFormat(envOr("LOGGING_FORMAT", orDefault(format, string(FormatConsole))))
		l := New(level, f)
		zap.ReplaceGlobals(l)

		mu.Lock()
		ready = true
		mu.Unlock()

		l.Debug("logger initialized", zap.String("level", level), zap.String("format", string(f)))
	})
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// For returns a named logger for a component, initializing the global
// logger from the environment if needed.
func For(component string) *zap.SugaredLogger {
	mu.Lock()
	ok := ready
	mu.Unlock()
	if !ok {
		Initialize("", "")
	}
	return zap.S().Named(component)
}

// Sync flushes buffered entries.
func Sync() error {
	return zap.L().Sync()
}
