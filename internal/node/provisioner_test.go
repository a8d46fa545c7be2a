package node

import (
	"context"
	"errors"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/kubernix/internal/config"
	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/network"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Root = t.TempDir()
	cfg.Node.Command = "kubelet"
	cfg.Node.Args = []string{"--node-ip={{.Address}}", "--name={{.Name}}", "--dir={{.Dir}}"}
	cfg.Node.StartTimeout = 2 * time.Second
	cfg.Node.StopGracePeriod = 100 * time.Millisecond
	return cfg
}

func testSubnet(t *testing.T, index int) network.Subnet {
	t.Helper()
	alloc, err := network.NewAllocator("10.0.0.0/24", 3)
	require.NoError(t, err)
	s, err := alloc.Subnet(index)
	require.NoError(t, err)
	return s
}

func readyLauncher() *fakeLauncher {
	return &fakeLauncher{onLaunch: func(h *fakeHandle) { h.ready() }}
}

func TestStart_Running(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	l := readyLauncher()
	p := NewProvisioner(cfg, WithLauncher(l), WithProbeFactory(lineProbe))

	rec, err := p.Start(context.Background(), 1, testSubnet(t, 1))
	require.NoError(t, err)

	assert.Equal(t, StateRunning, rec.State())
	assert.Equal(t, "kubernix-node-1", rec.Name)
	assert.Equal(t, 1001, rec.PID())
	assert.Equal(t, filepath.Join(cfg.Root, "nodes", "kubernix-node-1", LogFileName), rec.LogPath)
	assert.DirExists(t, rec.Dir)
	assert.Same(t, rec, p.Record(1))

	require.Len(t, l.specs, 1)
	spec := l.specs[0]
	assert.Equal(t, "kubelet", spec.Command)
	assert.Equal(t, []string{"--node-ip=10.0.0.66", "--name=kubernix-node-1", "--dir=" + rec.Dir}, spec.Args)
	assert.Contains(t, spec.Env, "KUBERNIX_NODE_SUBNET=10.0.0.64/26")
	assert.Contains(t, spec.Env, "KUBERNIX_NODE_GATEWAY=10.0.0.65")
	assert.Contains(t, spec.Env, "KUBERNIX_ROOT="+cfg.Root)
	assert.Contains(t, spec.Env, "KUBECONFIG="+rec.Kubeconfig)
}

func TestStart_ReadinessTimeout(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Node.StartTimeout = 50 * time.Millisecond
	l := &fakeLauncher{}
	p := NewProvisioner(cfg, WithLauncher(l), WithProbeFactory(lineProbe))

	rec, err := p.Start(context.Background(), 1, testSubnet(t, 1))
	require.Error(t, err)
	assert.Nil(t, rec)

	var perr *kerrors.ProvisionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Node)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "not ready within")

	assert.Equal(t, StateFailed, p.Record(1).State())
	assert.Equal(t, 1, l.handles[0].stopCount(), "processes of a failed node are stopped")
}

func TestStart_LaunchFailure(t *testing.T) {
	t.Parallel()
	p := NewProvisioner(testConfig(t), WithLauncher(&fakeLauncher{err: errLaunch}), WithProbeFactory(lineProbe))

	_, err := p.Start(context.Background(), 0, testSubnet(t, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, errLaunch)
	assert.Equal(t, kerrors.KindProvision, kerrors.KindOf(err))
	assert.Equal(t, StateFailed, p.Record(0).State())
}

func TestStart_ExitBeforeReady(t *testing.T) {
	t.Parallel()
	exitErr := errors.New("exit status 1")
	l := &fakeLauncher{onLaunch: func(h *fakeHandle) { h.exit(exitErr) }}
	p := NewProvisioner(testConfig(t), WithLauncher(l), WithProbeFactory(lineProbe))

	_, err := p.Start(context.Background(), 2, testSubnet(t, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited before ready")
	assert.Contains(t, err.Error(), "last words")
	assert.Equal(t, "provision error (node 2)", err.Error()[:len("provision error (node 2)")])
}

func TestStart_Cancelled(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Node.StartTimeout = time.Minute
	p := NewProvisioner(cfg, WithLauncher(&fakeLauncher{}), WithProbeFactory(lineProbe))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Start(ctx, 0, testSubnet(t, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, kerrors.KindProvision, kerrors.KindOf(err))
}

func TestStop_DuringLaunchStopsLaunchedProcess(t *testing.T) {
	t.Parallel()
	l := readyLauncher()
	l.entered = make(chan struct{})
	l.release = make(chan struct{})
	p := NewProvisioner(testConfig(t), WithLauncher(l), WithProbeFactory(lineProbe))

	subnet := testSubnet(t, 0)
	errc := make(chan error, 1)
	go func() {
		_, err := p.Start(context.Background(), 0, subnet)
		errc <- err
	}()

	<-l.entered
	require.Equal(t, StateStarting, p.Record(0).State())
	require.NoError(t, p.Stop(context.Background(), 0))
	assert.Equal(t, StateStopped, p.Record(0).State())
	close(l.release)

	var err error
	select {
	case err = <-errc:
	case <-time.After(5 * time.Second):
		t.Fatal("start did not return")
	}
	require.Error(t, err)
	assert.Equal(t, kerrors.KindProvision, kerrors.KindOf(err))
	assert.Contains(t, err.Error(), "during launch")

	h := l.handle(0)
	assert.Equal(t, 1, h.stopCount(), "the process launched after stop is stopped")
	select {
	case <-h.Done():
	default:
		t.Fatal("launched process still running")
	}
	assert.Equal(t, StateStopped, p.Record(0).State())
}

func TestStart_AlreadyRunning(t *testing.T) {
	t.Parallel()
	p := NewProvisioner(testConfig(t), WithLauncher(readyLauncher()), WithProbeFactory(lineProbe))

	_, err := p.Start(context.Background(), 0, testSubnet(t, 0))
	require.NoError(t, err)
	_, err = p.Start(context.Background(), 0, testSubnet(t, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "running")
}

func TestStop_Idempotent(t *testing.T) {
	t.Parallel()
	l := readyLauncher()
	p := NewProvisioner(testConfig(t), WithLauncher(l), WithProbeFactory(lineProbe))

	rec, err := p.Start(context.Background(), 0, testSubnet(t, 0))
	require.NoError(t, err)

	require.NoError(t, p.Stop(context.Background(), 0))
	assert.Equal(t, StateStopped, rec.State())
	require.NoError(t, p.Stop(context.Background(), 0))

	assert.Equal(t, 1, l.handles[0].stopCount(), "second stop must not signal again")
}

func TestStop_UnknownAndFailedNodes(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Node.StartTimeout = 20 * time.Millisecond
	l := &fakeLauncher{}
	p := NewProvisioner(cfg, WithLauncher(l), WithProbeFactory(lineProbe))

	assert.NoError(t, p.Stop(context.Background(), 7))

	_, err := p.Start(context.Background(), 0, testSubnet(t, 0))
	require.Error(t, err)
	require.NoError(t, p.Stop(context.Background(), 0))
	assert.Equal(t, StateFailed, p.Record(0).State())
	assert.Equal(t, 1, l.handles[0].stopCount())
}

func TestWatch_UnexpectedExit(t *testing.T) {
	t.Parallel()
	l := readyLauncher()
	p := NewProvisioner(testConfig(t), WithLauncher(l), WithProbeFactory(lineProbe))

	rec, err := p.Start(context.Background(), 0, testSubnet(t, 0))
	require.NoError(t, err)

	l.handles[0].exit(errors.New("signal: segmentation fault"))

	select {
	case exited := <-p.Exited():
		assert.Same(t, rec, exited)
	case <-time.After(2 * time.Second):
		t.Fatal("exit not reported")
	}
	assert.Equal(t, StateFailed, rec.State())
	assert.Contains(t, rec.Err().Error(), "segmentation fault")
	assert.NoError(t, p.Stop(context.Background(), 0))
}

func TestRecords_Ordered(t *testing.T) {
	t.Parallel()
	p := NewProvisioner(testConfig(t), WithLauncher(readyLauncher()), WithProbeFactory(lineProbe))
	for _, i := range []int{2, 0, 1} {
		_, err := p.Start(context.Background(), i, testSubnet(t, i))
		require.NoError(t, err)
	}

	var got []int
	for _, r := range p.Records() {
		got = append(got, r.Index)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestNewProvisioner_LauncherSelection(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Nodes = 1
	cfg.ContainerRuntime = "anything"
	assert.IsType(t, HostLauncher{}, NewProvisioner(cfg).Launcher())

	cfg.Nodes = 3
	cfg.ContainerRuntime = "podman"
	l, ok := NewProvisioner(cfg).Launcher().(ContainerLauncher)
	require.True(t, ok)
	assert.Equal(t, "podman", l.Runtime)
	assert.Equal(t, cfg.Node.Image, l.Image)
}

func TestStart_HostProcess(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Node.Command = "sh"
	cfg.Node.Args = []string{"-c", `echo "booting $KUBERNIX_NODE_NAME"; echo "listening on {{.Address}}"; exec sleep 30`}
	cfg.Node.Readiness = config.ReadinessConfig{Probe: config.ProbeLog, Pattern: `^listening on `}
	cfg.Node.StartTimeout = 5 * time.Second

	p := NewProvisioner(cfg)
	rec, err := p.Start(context.Background(), 0, network.Subnet{
		Index:   0,
		CIDR:    netip.MustParsePrefix("10.0.0.0/26"),
		Gateway: netip.MustParseAddr("10.0.0.1"),
		Address: netip.MustParseAddr("10.0.0.2"),
	})
	require.NoError(t, err)
	assert.Equal(t, StateRunning, rec.State())
	assert.Positive(t, rec.PID())

	require.NoError(t, p.Stop(context.Background(), 0))
	assert.Equal(t, StateStopped, rec.State())
	assert.FileExists(t, rec.LogPath)
}
