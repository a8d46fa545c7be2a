package config

import (
	"errors"
	"os"

	"github.com/imamik/kubernix/internal/kerrors"
)

// ShellEnv is the environment variable consulted when no shell is configured.
const ShellEnv = "SHELL"

// ShellOrDefault returns the configured shell, falling back to $SHELL.
func (c *Config) ShellOrDefault() (string, error) {
	if c.Shell != "" {
		return c.Shell, nil
	}
	if sh := os.Getenv(ShellEnv); sh != "" {
		return sh, nil
	}
	return "", kerrors.ConfigErr("shell", errors.New("no shell configured and $SHELL is not set"))
}
