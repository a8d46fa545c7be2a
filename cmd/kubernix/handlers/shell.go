package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/imamik/kubernix/internal/config"
	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/lock"
	"github.com/imamik/kubernix/internal/network"
	"github.com/imamik/kubernix/internal/nixenv"
	"github.com/imamik/kubernix/internal/shell"
)

// runSession is replaced in tests.
var runSession = func(ctx context.Context, s *shell.Session) error {
	return s.Run(ctx)
}

// Shell spawns a shell into the environment persisted below cfg.Root. The
// shell and log level given on the command line take precedence over the
// persisted ones.
func Shell(ctx context.Context, cfg *config.Config) error {
	if err := cfg.CanonicalizeRoot(); err != nil {
		return err
	}

	invocation := *cfg
	found, err := cfg.TryLoadFile()
	if err != nil {
		return err
	}
	if !found {
		return kerrors.ConfigErr("root", fmt.Errorf("no kubernix environment found in %s", cfg.Root))
	}
	cfg.Subcommand = invocation.Subcommand
	cfg.LogLevel = invocation.LogLevel
	if invocation.Shell != "" {
		cfg.Shell = invocation.Shell
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	alloc, err := network.NewAllocator(cfg.CIDR, cfg.Nodes)
	if err != nil {
		return err
	}

	// A free lock means no bootstrap run owns the root right now.
	if l, err := lock.Acquire(cfg.LockFile()); err == nil {
		log.Info("no running cluster found, the environment may be stale", "root", cfg.Root)
		_ = l.Release()
	} else if !errors.Is(err, lock.ErrRootLocked) {
		return err
	}

	session, err := shell.New(cfg, alloc, nixExpr(cfg))
	if err != nil {
		return err
	}
	log.V(1).Info("spawning shell", "shell", session.Path, "root", cfg.Root)
	return runSession(ctx, session)
}

// nixExpr returns the rendered Nix expression of the root, if any.
func nixExpr(cfg *config.Config) string {
	path := filepath.Join(cfg.NixDir(), nixenv.FileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
