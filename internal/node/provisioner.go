// Package node starts, tracks and stops the processes of single cluster
// nodes.
//
// Every node moves through Pending, Starting, Running, Stopping and Stopped.
// Failed is terminal and reachable from Starting or Running. The Provisioner
// owns the Record of each node it started; callers only read it.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/kubernix/internal/config"
	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/metrics"
	"github.com/imamik/kubernix/internal/network"
	"github.com/imamik/kubernix/internal/util/naming"
)

// LogFileName is the per-node output log inside the node directory.
const LogFileName = "node.log"

// failureTailLines is the number of output lines attached to start failures.
const failureTailLines = 5

// ProbeFactory builds the readiness probe of a node.
type ProbeFactory func(cfg config.ReadinessConfig, data TemplateData) (Probe, error)

// Provisioner starts and stops nodes.
type Provisioner struct {
	cfg      *config.Config
	launcher Launcher
	newProbe ProbeFactory
	log      logr.Logger
	metrics  *metrics.Recorder
	now      func() time.Time

	mu      sync.Mutex
	records map[int]*Record
	exits   chan *Record
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLauncher overrides the launcher chosen from the configuration.
func WithLauncher(l Launcher) Option {
	return func(p *Provisioner) { p.launcher = l }
}

// WithProbeFactory overrides how readiness probes are built.
func WithProbeFactory(f ProbeFactory) Option {
	return func(p *Provisioner) { p.newProbe = f }
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(p *Provisioner) { p.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Provisioner) { p.metrics = m }
}

// NewProvisioner creates a provisioner. Multi node configurations launch
// nodes in containers of the configured runtime, single node configurations
// run the node command on the host.
func NewProvisioner(cfg *config.Config, opts ...Option) *Provisioner {
	p := &Provisioner{
		cfg:      cfg,
		newProbe: NewProbe,
		log:      logr.Discard(),
		now:      time.Now,
		records:  make(map[int]*Record),
		exits:    make(chan *Record, config.MaxNodes),
	}
	if rt := cfg.EffectiveRuntime(); rt != "" {
		p.launcher = ContainerLauncher{Runtime: rt, Image: cfg.Node.Image, Root: cfg.Root}
	} else {
		p.launcher = HostLauncher{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Launcher returns the launcher in use.
func (p *Provisioner) Launcher() Launcher {
	return p.launcher
}

// Exited delivers nodes whose process exited while Running.
func (p *Provisioner) Exited() <-chan *Record {
	return p.exits
}

// Record returns the record of node index, or nil.
func (p *Provisioner) Record(index int) *Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.records[index]
}

// Records returns all records ordered by index.
func (p *Provisioner) Records() []*Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Record, 0, len(p.records))
	for _, r := range p.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Start launches node index on subnet and waits for its readiness signal
// within the configured start timeout. Any failure leaves the node Failed with
// its processes stopped and is returned as a ProvisionError.
func (p *Provisioner) Start(ctx context.Context, index int, subnet network.Subnet) (*Record, error) {
	name := naming.Node(index)
	dir := filepath.Join(p.cfg.NodesDir(), name)
	rec := &Record{
		Index:      index,
		Name:       name,
		Subnet:     subnet,
		Dir:        dir,
		LogPath:    filepath.Join(dir, LogFileName),
		Kubeconfig: filepath.Join(p.cfg.KubeconfigDir(), name+".kubeconfig"),
	}

	p.mu.Lock()
	if prev, ok := p.records[index]; ok {
		if s := prev.State(); s != StateStopped && s != StateFailed {
			p.mu.Unlock()
			return nil, kerrors.Provision(index, fmt.Errorf("node is %s", s))
		}
	}
	p.records[index] = rec
	p.mu.Unlock()

	if err := rec.setState(StateStarting); err != nil {
		return nil, kerrors.Provision(index, err)
	}

	log := p.log.WithValues("node", name)
	log.Info("starting node", "subnet", subnet.CIDR.String(), "address", subnet.Address.String())

	if err := p.start(ctx, rec, log); err != nil {
		rec.fail(err)
		p.metrics.NodeFailed(index)
		log.Error(err, "node failed to start")
		return nil, kerrors.Provision(index, err)
	}

	p.metrics.NodeStarted(index, rec.StartupDuration())
	log.Info("node running", "pid", rec.PID(), "took", rec.StartupDuration().Round(time.Millisecond).String())
	return rec, nil
}

func (p *Provisioner) start(ctx context.Context, rec *Record, log logr.Logger) error {
	if err := os.MkdirAll(rec.Dir, 0o755); err != nil {
		return kerrors.IOErr("create node dir", err)
	}

	data := TemplateData{
		Index:      rec.Index,
		Name:       rec.Name,
		Subnet:     rec.Subnet.CIDR.String(),
		Address:    rec.Subnet.Address.String(),
		Gateway:    rec.Subnet.Gateway.String(),
		Dir:        rec.Dir,
		Kubeconfig: rec.Kubeconfig,
		Runtime:    p.cfg.EffectiveRuntime(),
	}
	args, err := ExpandAll(p.cfg.Node.Args, data)
	if err != nil {
		return err
	}
	probe, err := p.newProbe(p.cfg.Node.Readiness, data)
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, p.cfg.Node.StartTimeout)
	defer cancel()

	h, err := p.launcher.Launch(startCtx, LaunchSpec{
		Index:   rec.Index,
		Name:    rec.Name,
		Dir:     rec.Dir,
		LogPath: rec.LogPath,
		Command: p.cfg.Node.Command,
		Args:    args,
		Env:     Env(data, p.cfg.Root),
	})
	if err != nil {
		return fmt.Errorf("launch: %w", err)
	}

	rec.mu.Lock()
	if rec.state != StateStarting {
		// Stop ran while Launch was in flight and found no handle to signal.
		state := rec.state
		rec.mu.Unlock()
		p.stopHandle(h, log)
		return fmt.Errorf("node %s during launch", state)
	}
	rec.handle = h
	rec.startedAt = p.now()
	rec.mu.Unlock()
	log.V(1).Info("launched node process", "pid", h.PID(), "log", rec.LogPath)

	if err := p.awaitReady(startCtx, ctx, h, probe); err != nil {
		p.stopHandle(h, log)
		return err
	}

	rec.mu.Lock()
	rec.readyAt = p.now()
	err = rec.setStateLocked(StateRunning)
	rec.mu.Unlock()
	if err != nil {
		// A concurrent Stop took over. Handle.Stop is idempotent.
		p.stopHandle(h, log)
		return err
	}

	go p.watch(rec, h, log)
	return nil
}

func (p *Provisioner) stopHandle(h Handle, log logr.Logger) {
	if err := h.Stop(p.cfg.Node.StopGracePeriod); err != nil {
		log.Error(err, "failed to stop node after start failure")
	}
}

// awaitReady waits for probe while watching for an early exit. startCtx
// carries the start timeout, parent the caller's cancellation.
func (p *Provisioner) awaitReady(startCtx, parent context.Context, h Handle, probe Probe) error {
	ready := make(chan error, 1)
	go func() { ready <- probe.Wait(startCtx, h) }()

	select {
	case err := <-ready:
		if err == nil {
			return nil
		}
		if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("not ready within %s: %w", p.cfg.Node.StartTimeout, err)
		}
		return err
	case <-h.Done():
		return fmt.Errorf("process exited before ready: %v%s", h.Err(), tailSuffix(h))
	}
}

// watch marks a Running node Failed when its process exits on its own.
func (p *Provisioner) watch(rec *Record, h Handle, log logr.Logger) {
	<-h.Done()

	rec.mu.Lock()
	if rec.state != StateRunning {
		rec.mu.Unlock()
		return
	}
	rec.state = StateFailed
	rec.err = fmt.Errorf("process exited: %v", h.Err())
	err := rec.err
	rec.mu.Unlock()

	log.Error(err, "node exited unexpectedly", "log", rec.LogPath)
	if stopErr := h.Stop(p.cfg.Node.StopGracePeriod); stopErr != nil {
		log.Error(stopErr, "cleanup after exit failed")
	}
	p.metrics.NodeStopped(rec.Index, 0)

	select {
	case p.exits <- rec:
	default:
	}
}

// Stop stops node index: SIGTERM to its process group, SIGKILL after the
// grace period. Stopping a node that is not running sends no signal and
// returns nil.
func (p *Provisioner) Stop(_ context.Context, index int) error {
	rec := p.Record(index)
	if rec == nil {
		return nil
	}

	rec.mu.Lock()
	switch rec.state {
	case StatePending:
		rec.state = StateStopped
		rec.mu.Unlock()
		return nil
	case StateStopping, StateStopped, StateFailed:
		rec.mu.Unlock()
		return nil
	}
	wasRunning := rec.state == StateRunning
	rec.state = StateStopping
	h := rec.handle
	rec.mu.Unlock()

	log := p.log.WithValues("node", rec.Name)
	log.Info("stopping node")
	start := p.now()

	var err error
	if h != nil {
		err = h.Stop(p.cfg.Node.StopGracePeriod)
	}
	if setErr := rec.setState(StateStopped); setErr != nil {
		err = errors.Join(err, setErr)
	}

	took := p.now().Sub(start)
	if wasRunning {
		p.metrics.NodeStopped(index, took)
	}
	if err != nil {
		return kerrors.Provision(index, fmt.Errorf("stop: %w", err))
	}
	log.Info("node stopped", "took", took.Round(time.Millisecond).String())
	return nil
}

func tailSuffix(h Handle) string {
	lines := h.Tail(failureTailLines)
	if len(lines) == 0 {
		return ""
	}
	return "; last output: " + strings.Join(lines, " | ")
}
