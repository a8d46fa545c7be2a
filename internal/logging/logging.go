// Package logging constructs the logr handle used throughout a kubernix run.
//
// There is no process-wide logger: the CLI builds one handle per run with [New]
// and passes it down explicitly. Verbosity follows logr conventions, V(1) is
// debug output and V(2) is trace output.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Verbosity levels for logr's V().
const (
	LevelDebug = 1
	LevelTrace = 2
)

// ParseLevel maps a configured log level to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "error":
		return zapcore.ErrorLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "trace":
		return zapcore.Level(-LevelTrace), nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// New creates a logger writing to w at the given level. Development mode
// switches to the human friendly console encoder.
func New(w io.Writer, level string, development bool) (logr.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return logr.Discard(), err
	}

	return zap.New(
		zap.WriteTo(w),
		zap.UseDevMode(development),
		zap.Level(lvl),
	).WithName("kubernix"), nil
}
