// Package shell spawns the interactive shell an operator works in once the
// cluster is up.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/imamik/kubernix/internal/config"
	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/network"
	"github.com/imamik/kubernix/internal/util/prerequisites"
)

// outputDrainDelay bounds the wait for shell output after cancellation, when
// children of the shell may still hold its output open.
const outputDrainDelay = 2 * time.Second

// Session is a single shell invocation.
type Session struct {
	// Path is the executable, either the shell or nix-shell wrapping it.
	Path string
	Args []string
	Dir  string
	// Env is appended to the environment of the current process.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	exitCode int
}

// New creates the session for cfg. When nixExpr names a rendered Nix
// expression and nix-shell is available, the shell runs inside nix-shell.
func New(cfg *config.Config, alloc *network.Allocator, nixExpr string) (*Session, error) {
	sh, err := cfg.ShellOrDefault()
	if err != nil {
		return nil, err
	}

	s := &Session{
		Path: sh,
		Dir:  cfg.Root,
		Env:  Environment(cfg, alloc),
	}
	if nixExpr != "" {
		if nix, err := prerequisites.LookPath(prerequisites.NixShell); err == nil {
			s.Path = nix
			s.Args = []string{filepath.Dir(nixExpr), "--run", sh}
		}
	}
	return s, nil
}

// ExitCode returns the exit code of the last Run.
func (s *Session) ExitCode() int {
	return s.exitCode
}

// Run starts the shell and blocks until it exits. A terminal on stdin gets a
// pseudo terminal with raw mode and window size propagation, anything else is
// passed through. The shell's own exit status is not an error, and neither is
// an end forced by cancelling ctx.
func (s *Session) Run(ctx context.Context) error {
	// #nosec G204
	cmd := exec.CommandContext(ctx, s.Path, s.Args...)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.WaitDelay = outputDrainDelay

	var err error
	if tty, ok := s.stdin().(*os.File); ok && term.IsTerminal(int(tty.Fd())) {
		err = s.runPTY(cmd, tty)
	} else {
		cmd.Stdin = s.stdin()
		cmd.Stdout = s.stdout()
		cmd.Stderr = s.stderr()
		if err = cmd.Start(); err == nil {
			err = cmd.Wait()
		} else {
			err = kerrors.IOErr("start shell", fmt.Errorf("%s: %w", s.Path, err))
		}
	}

	if err != nil && ctx.Err() != nil {
		// Termination was requested, the shell did not fail.
		s.exitCode = -1
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		s.exitCode = exitErr.ExitCode()
		return nil
	}
	s.exitCode = 0
	return err
}

func (s *Session) runPTY(cmd *exec.Cmd, tty *os.File) error {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return kerrors.IOErr("start shell", fmt.Errorf("%s: %w", s.Path, err))
	}
	defer func() { _ = ptmx.Close() }()

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer func() {
		signal.Stop(winch)
		close(winch)
	}()
	go func() {
		for range winch {
			_ = pty.InheritSize(tty, ptmx)
		}
	}()
	winch <- syscall.SIGWINCH

	state, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return kerrors.IOErr("terminal raw mode", err)
	}
	defer func() { _ = term.Restore(int(tty.Fd()), state) }()

	// The input copy ends with the next read after the shell exits.
	go func() { _, _ = io.Copy(ptmx, tty) }()
	// EIO marks the closed pseudo terminal once the shell is gone.
	_, _ = io.Copy(s.stdout(), ptmx)

	return cmd.Wait()
}

func (s *Session) stdin() io.Reader {
	if s.Stdin == nil {
		return os.Stdin
	}
	return s.Stdin
}

func (s *Session) stdout() io.Writer {
	if s.Stdout == nil {
		return os.Stdout
	}
	return s.Stdout
}

func (s *Session) stderr() io.Writer {
	if s.Stderr == nil {
		return os.Stderr
	}
	return s.Stderr
}
