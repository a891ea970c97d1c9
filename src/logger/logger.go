package logger

import (
	"os"
	"strings"

	"quant-observer/src/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// -----------------------------------------------------------------------------

// Logger is a named component logger with printf-style helpers.
type Logger struct {
	name  string
	sugar *zap.SugaredLogger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. A nil config logs at INFO in JSON.
func NewLogger(config *models.MConfig, name string) *Logger {
	level, format := "INFO", "json"
	if config != nil {
		if config.LogLevel != "" {
			level = config.LogLevel
		}
		if config.LogFormat != "" {
			format = config.LogFormat
		}
	}
	return NewFromZap(newZap(level, format), name)
}

// -----------------------------------------------------------------------------

// NewFromZap wraps an existing zap logger, e.g. zaptest.NewLogger in tests.
func NewFromZap(z *zap.Logger, name string) *Logger {
	return &Logger{
		name:  name,
		sugar: z.Named(name).Sugar(),
	}
}

// -----------------------------------------------------------------------------

// NewTestLogger routes output through t.Log so it only shows on failure.
func NewTestLogger(t zaptest.TestingT, name string) *Logger {
	return NewFromZap(zaptest.NewLogger(t), name)
}

// -----------------------------------------------------------------------------

// Named returns a child logger for a sub-component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:  l.name + "." + name,
		sugar: l.sugar.Named(name),
	}
}

// -----------------------------------------------------------------------------

// With returns a logger that adds the given key/value pairs to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		name:  l.name,
		sugar: l.sugar.With(keysAndValues...),
	}
}

// -----------------------------------------------------------------------------

func (l *Logger) Name() string {
	return l.name
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.Fatalf(format, args...)
}

// -----------------------------------------------------------------------------

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// -----------------------------------------------------------------------------

func newZap(level, format string) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(format, "console") {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), ParseLevel(level))
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
}

// -----------------------------------------------------------------------------

// ParseLevel converts DEBUG|INFO|WARNING|ERROR (any case) to a zap level.
// Unknown values fall back to INFO.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "CRITICAL", "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
