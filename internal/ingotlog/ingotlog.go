// Package ingotlog builds the *zap.SugaredLogger every component takes by
// injection (spec.md's ambient logging layer), configured from the <NAME>_LOG
// / <NAME>_LOG_FILE convention of spec.md §6. Grounded on the
// zap.NewProductionConfig + explicit OutputPaths style used for test-harness
// loggers in the pack (jordigilh-kubernaut's gateway integration helpers),
// narrowed here to a single always-on console sink plus an optional file
// sink.
package ingotlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger. Enabled/File mirror the config package's
// LogEnabled/LogFile accessors; callers typically pass those through
// directly.
type Options struct {
	Enabled bool
	File    string
	Debug   bool
}

// New builds a *zap.SugaredLogger writing to stdout, and additionally to
// File when Enabled is set. Debug lowers the minimum level to debug;
// otherwise info is the floor, matching the level conventions used
// throughout this module: debug for cache/credential-lookup failures, warn
// for registry replacement and best-effort fetch failures, info for
// workflow phase transitions.
func New(opts Options) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if opts.Enabled && opts.File != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, opts.File)
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

// Noop returns a logger that discards everything, the default used
// throughout this module when no logger is injected.
func Noop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
