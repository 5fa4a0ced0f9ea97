// Package logging builds the zap loggers used by the gonewton commands and
// adapts them into iteration trace sinks.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	newton "github.com/njchilds90/gonewton"
	"github.com/njchilds90/gonewton/internal/config"
)

// New builds a logger from cfg writing to stderr.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	return NewWriter(cfg, os.Stderr)
}

// NewWriter builds a logger from cfg writing to w. "json" selects the
// production encoder, anything else the console encoder.
func NewWriter(cfg config.LoggingConfig, w io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core), nil
}

// Tracer logs each iteration state at debug level.
func Tracer(l *zap.Logger) newton.Tracer {
	return newton.TracerFunc(func(s newton.State) {
		l.Debug("newton iteration",
			zap.Int("k", s.K),
			zap.Float64("x", s.X),
			zap.Float64("fx", s.FX),
			zap.Float64("dfx", s.DFX),
			zap.Float64("step", s.Step),
		)
	})
}

// Outcome logs the terminal result of a run at a level matching its class.
func Outcome(l *zap.Logger, o newton.Outcome) {
	fields := []zap.Field{
		zap.Stringer("status", o.Status),
		zap.Float64("x", o.X),
		zap.Int("iterations", o.Iterations),
	}
	switch o.Class() {
	case newton.ClassSuccess:
		l.Info("newton converged", fields...)
	case newton.ClassStoppedEarly:
		l.Warn("newton stopped at iteration cap", fields...)
	default:
		l.Error("newton failed", fields...)
	}
}
