package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/kubernix/internal/config"
	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/lock"
	"github.com/imamik/kubernix/internal/shell"
)

func TestExitCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", kerrors.ConfigErr("cidr", errors.New("bad")), ExitConfig},
		{"network", kerrors.NetworkErr(errors.New("too small")), ExitNetwork},
		{"provision", kerrors.Provision(1, errors.New("timeout")), ExitProvision},
		{"io", kerrors.IOErr("write", errors.New("denied")), ExitIO},
		{"wrapped", fmt.Errorf("config phase failed: %w", kerrors.IOErr("write", errors.New("denied"))), ExitIO},
		{"other", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func stubOrchestrator(t *testing.T) *[]*config.Config {
	t.Helper()
	var calls []*config.Config
	original := runOrchestrator
	runOrchestrator = func(_ context.Context, cfg *config.Config, _ logr.Logger) error {
		calls = append(calls, cfg)
		return nil
	}
	t.Cleanup(func() { runOrchestrator = original })
	return &calls
}

func stubSession(t *testing.T) *[]*shell.Session {
	t.Helper()
	var calls []*shell.Session
	original := runSession
	runSession = func(_ context.Context, s *shell.Session) error {
		calls = append(calls, s)
		return nil
	}
	t.Cleanup(func() { runSession = original })
	return &calls
}

func TestBootstrap(t *testing.T) {
	calls := stubOrchestrator(t)
	cfg := config.Default()
	cfg.Root = t.TempDir() + "/run"

	require.NoError(t, Bootstrap(context.Background(), cfg))

	require.Len(t, *calls, 1)
	assert.DirExists(t, cfg.Root)
	assert.True(t, strings.HasPrefix(cfg.Root, "/"))
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	calls := stubOrchestrator(t)
	cfg := config.Default()
	cfg.Root = t.TempDir()
	cfg.Nodes = 0

	err := Bootstrap(context.Background(), cfg)

	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
	assert.Empty(t, *calls)
}

func TestBootstrap_InvalidLogLevel(t *testing.T) {
	calls := stubOrchestrator(t)
	cfg := config.Default()
	cfg.Root = t.TempDir()
	cfg.LogLevel = "chatty"

	err := Bootstrap(context.Background(), cfg)

	assert.Equal(t, ExitConfig, ExitCode(err))
	assert.Empty(t, *calls)
}

func persisted(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Root = t.TempDir()
	require.NoError(t, cfg.CanonicalizeRoot())
	cfg.Nodes = 3
	cfg.CIDR = "10.0.0.0/24"
	cfg.Shell = "/bin/bash"
	require.NoError(t, cfg.ToFile())
	return cfg
}

func TestShell(t *testing.T) {
	calls := stubSession(t)
	stored := persisted(t)

	cfg := config.Default()
	cfg.Root = stored.Root
	cfg.Shell = "/bin/sh"
	cfg.Subcommand = "shell"

	require.NoError(t, Shell(context.Background(), cfg))

	require.Len(t, *calls, 1)
	session := (*calls)[0]
	assert.Equal(t, "/bin/sh", session.Path, "command line shell wins")
	assert.Contains(t, session.Env, "KUBERNIX_NODES=3")
	assert.Contains(t, session.Env, "KUBERNIX_NODE_2_SUBNET=10.0.0.128/26")
	assert.Equal(t, 3, cfg.Nodes)
	assert.Equal(t, "shell", cfg.Subcommand)
}

func TestShell_PersistedShell(t *testing.T) {
	calls := stubSession(t)
	stored := persisted(t)

	cfg := config.Default()
	cfg.Root = stored.Root

	require.NoError(t, Shell(context.Background(), cfg))
	require.Len(t, *calls, 1)
	assert.Equal(t, "/bin/bash", (*calls)[0].Path)
}

func TestShell_RunningCluster(t *testing.T) {
	calls := stubSession(t)
	stored := persisted(t)

	held, err := lock.Acquire(stored.LockFile())
	require.NoError(t, err)
	t.Cleanup(func() { _ = held.Release() })

	cfg := config.Default()
	cfg.Root = stored.Root
	require.NoError(t, Shell(context.Background(), cfg))
	assert.Len(t, *calls, 1)
}

func TestShell_NoEnvironment(t *testing.T) {
	calls := stubSession(t)
	cfg := config.Default()
	cfg.Root = t.TempDir()

	err := Shell(context.Background(), cfg)

	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
	assert.Contains(t, err.Error(), "no kubernix environment")
	assert.Empty(t, *calls)
}
