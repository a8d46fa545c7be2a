// Package handlers implements the business logic for CLI commands.
//
// Handlers receive the configuration assembled by the commands package,
// validate it, build the logger and hand over to the orchestrator.
package handlers

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"

	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/logging"
)

// newLogger builds the logger of a run, writing human friendly output when
// stderr is a terminal.
func newLogger(level string) (logr.Logger, error) {
	dev := isatty.IsTerminal(os.Stderr.Fd())
	log, err := logging.New(os.Stderr, level, dev)
	if err != nil {
		return logr.Discard(), kerrors.ConfigErr("log_level", err)
	}
	return log, nil
}
