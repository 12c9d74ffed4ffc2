package infra

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// LoggerLevel can be changed at run time.
	LoggerLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// LoggerFactory hands out named child loggers sharing one core.
type LoggerFactory struct {
	baseLogger *zap.Logger
}

// Create returns a logger named after the component that uses it.
func (f *LoggerFactory) Create(name string) *zap.Logger {
	return f.baseLogger.Named(name)
}

// Sync flushes buffered log entries.
func (f *LoggerFactory) Sync() {
	_ = f.baseLogger.Sync()
}

// ProvideLoggerFactory builds the console logger used by the server and
// the booking consumer.  level is a zap level name; unknown names keep
// the current level.
func ProvideLoggerFactory(level string) *LoggerFactory {
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		LoggerLevel.SetLevel(lvl)
	}
	cfg := zap.Config{
		Level:            LoggerLevel,
		Development:      false,
		Encoding:         "console",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "name",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}
	logger := zap.Must(cfg.Build())
	logger.Info("logger created", zap.String("level", LoggerLevel.String()))

	return &LoggerFactory{baseLogger: logger}
}
