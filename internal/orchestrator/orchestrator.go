// Package orchestrator drives a kubernix run: preparation, ordered node
// startup, the shell or signal wait, and teardown.
//
// Nodes start one after another in ascending index order. Whatever stops the
// run, be it a failed start, a signal or the end of the shell, the nodes that
// were started are stopped last to first and the root lock is released.
package orchestrator

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/kubernix/internal/config"
	"github.com/imamik/kubernix/internal/k8s"
	"github.com/imamik/kubernix/internal/metrics"
	"github.com/imamik/kubernix/internal/network"
	"github.com/imamik/kubernix/internal/node"
	"github.com/imamik/kubernix/internal/provisioning"
	"github.com/imamik/kubernix/internal/provisioning/prepare"
	"github.com/imamik/kubernix/internal/shell"
	"github.com/imamik/kubernix/internal/ui/tui"
)

// NodeProvisioner starts and stops single nodes.
type NodeProvisioner interface {
	Start(ctx context.Context, index int, subnet network.Subnet) (*node.Record, error)
	Stop(ctx context.Context, index int) error
	// Exited delivers nodes whose process ended while Running.
	Exited() <-chan *node.Record
}

// ShellRunner runs the interactive shell until it exits.
type ShellRunner func(ctx context.Context, s *shell.Session) error

// NodeWaiter blocks until the named nodes registered as Ready.
type NodeWaiter func(ctx context.Context, names []string) error

// SignalSource subscribes to termination signals. The returned function
// ends the subscription.
type SignalSource func() (<-chan os.Signal, func())

// Orchestrator runs one bootstrap.
type Orchestrator struct {
	cfg      *config.Config
	alloc    *network.Allocator
	log      logr.Logger
	observer provisioning.Observer
	metrics  *metrics.Recorder
	prov     NodeProvisioner
	phases   []provisioning.Phase
	runShell ShellRunner
	waitFor  NodeWaiter
	signals  SignalSource
	out      io.Writer
	styled   bool

	state   *provisioning.State
	cluster ClusterState

	teardownOnce sync.Once
	teardownErr  error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithProvisioner replaces the node provisioner.
func WithProvisioner(p NodeProvisioner) Option {
	return func(o *Orchestrator) { o.prov = p }
}

// WithPhases replaces the preparation phases.
func WithPhases(phases ...provisioning.Phase) Option {
	return func(o *Orchestrator) { o.phases = phases }
}

// WithShellRunner replaces how the shell session is run.
func WithShellRunner(r ShellRunner) Option {
	return func(o *Orchestrator) { o.runShell = r }
}

// WithNodeWaiter replaces the Kubernetes node registration wait.
func WithNodeWaiter(w NodeWaiter) Option {
	return func(o *Orchestrator) { o.waitFor = w }
}

// WithSignals replaces the termination signal subscription.
func WithSignals(s SignalSource) Option {
	return func(o *Orchestrator) { o.signals = s }
}

// WithOutput sets where the cluster summary is printed.
func WithOutput(w io.Writer, styled bool) Option {
	return func(o *Orchestrator) {
		o.out = w
		o.styled = styled
	}
}

// New creates an orchestrator for a validated configuration with a
// canonical root. Addressing is derived here, so a CIDR too small for the
// node count fails before anything is touched.
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	alloc, err := network.NewAllocator(cfg.CIDR, cfg.Nodes)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:      cfg,
		alloc:    alloc,
		log:      logr.Discard(),
		phases:   prepare.Phases(),
		runShell: func(ctx context.Context, s *shell.Session) error { return s.Run(ctx) },
		signals:  notifySignals,
		out:      os.Stdout,
		styled:   tui.IsInteractiveTTY(),
		state:    provisioning.NewState(alloc),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.metrics == nil && cfg.Metrics.Address != "" {
		o.metrics = metrics.NewRecorder()
	}
	if o.observer == nil {
		o.observer = provisioning.NewLogrObserver(o.log).WithFields(map[string]string{"root": cfg.Root})
	}
	if o.prov == nil {
		o.prov = node.NewProvisioner(cfg, node.WithLogger(o.log), node.WithMetrics(o.metrics))
	}
	if o.waitFor == nil {
		o.waitFor = o.waitForNodes
	}
	return o, nil
}

// Allocator returns the addressing of this run.
func (o *Orchestrator) Allocator() *network.Allocator {
	return o.alloc
}

// State returns the preparation results.
func (o *Orchestrator) State() *provisioning.State {
	return o.state
}

// Cluster returns the running nodes.
func (o *Orchestrator) Cluster() *ClusterState {
	return &o.cluster
}

func notifySignals() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return ch, func() { signal.Stop(ch) }
}

func (o *Orchestrator) waitForNodes(ctx context.Context, names []string) error {
	client, err := k8s.NewClient(o.cfg.AdminKubeconfig())
	if err != nil {
		return err
	}
	interval := o.cfg.Node.Readiness.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return client.WaitForNodesReady(ctx, names, interval, o.cfg.Kube.NodesReadyTimeout)
}
