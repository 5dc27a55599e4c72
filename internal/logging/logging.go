// Package logging defines the narrow structured-logging interface every
// component is constructed with, and a zap-backed implementation.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured log attribute.
type Field = zap.Field

// String, Int64, Float64, Err, Bool, Duration re-export zap field
// constructors so callers never import zap directly.
var (
	String   = zap.String
	Int64    = zap.Int64
	Int      = zap.Int
	Float64  = zap.Float64
	Err      = zap.Error
	Bool     = zap.Bool
	Duration = zap.Duration
)

// Logger is the structured-log sink every C1-C22 component depends on.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type zapLogger struct {
	l *zap.Logger
}

// New builds a zap logger: zap's development profile when development is
// true, otherwise a production profile writing structured JSON, matching the level of ceremony the teacher's repo reserves for its
// own emoji-tagged log.Printf calls, replaced here with structured fields
// per the ambient-stack redesign.
func New(development bool) (Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.OutputPaths = []string{"stdout"}

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{l: l}, nil
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() Logger {
	return &zapLogger{l: zap.NewNop()}
}

func (z *zapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, fields...) }
func (z *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}

// FatalExit logs at error level and exits; used only by the composition root
// on unrecoverable startup failure, mirroring the teacher's log.Fatalf usage
// in server.Start.
func FatalExit(l Logger, msg string, fields ...Field) {
	l.Error(msg, fields...)
	os.Exit(1)
}
