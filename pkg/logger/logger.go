package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap with the error-first helpers used across the services.
type Logger struct {
	*zap.Logger
}

// NewServiceLogger builds the process logger. Production emits JSON, every
// other environment emits colored console output. LOG_LEVEL overrides the
// environment default. Every entry carries the service name.
func NewServiceLogger(env, service string) *Logger {
	cfg := configFor(env)
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zap.ParseAtomicLevel(lvl); err == nil {
			cfg.Level = parsed
		}
	}

	zl, err := cfg.Build(zap.Fields(zap.String("service_name", service)))
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: zl}
}

func configFor(env string) zap.Config {
	if env == "production" {
		return zap.NewProductionConfig()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// New wraps an existing zap logger, e.g. an observer core in tests.
func New(zl *zap.Logger) *Logger {
	return &Logger{Logger: zl}
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

func (l *Logger) Infof(format string, args ...any) {
	l.Logger.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.Logger.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.Logger.Error(fmt.Sprintf(format, args...))
}

// Error logs msg with err attached as the "error" field.
func (l *Logger) Error(msg string, err error, fields ...zap.Field) {
	l.Logger.Error(msg, append(fields, zap.Error(err))...)
}

func (l *Logger) Fatal(msg string, err error, fields ...zap.Field) {
	l.Logger.Fatal(msg, append(fields, zap.Error(err))...)
}
