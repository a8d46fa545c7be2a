package orchestrator

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/network"
	"github.com/imamik/kubernix/internal/node"
	"github.com/imamik/kubernix/internal/util/naming"
)

var (
	errNotReady   = errors.New("not ready within 2m0s")
	errStopFailed = errors.New("send SIGKILL: operation not permitted")
)

// fakeProvisioner records start and stop order.
type fakeProvisioner struct {
	mu      sync.Mutex
	started []int
	stopped []int

	// failAt fails the start of that index, blockAt blocks it until the
	// context is done, stopErrAt fails its stop. Negative disables.
	failAt    int
	blockAt   int
	stopErrAt int
	exits     chan *node.Record
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{failAt: -1, blockAt: -1, stopErrAt: -1, exits: make(chan *node.Record, 1)}
}

func (f *fakeProvisioner) Start(ctx context.Context, index int, subnet network.Subnet) (*node.Record, error) {
	f.mu.Lock()
	f.started = append(f.started, index)
	f.mu.Unlock()

	switch index {
	case f.failAt:
		return nil, kerrors.Provision(index, errNotReady)
	case f.blockAt:
		<-ctx.Done()
		return nil, kerrors.Provision(index, ctx.Err())
	}
	return &node.Record{Index: index, Name: naming.Node(index), Subnet: subnet}, nil
}

func (f *fakeProvisioner) Stop(_ context.Context, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, index)
	if index == f.stopErrAt {
		return kerrors.Provision(index, errStopFailed)
	}
	return nil
}

func (f *fakeProvisioner) Exited() <-chan *node.Record {
	return f.exits
}

func (f *fakeProvisioner) Started() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.started...)
}

func (f *fakeProvisioner) Stopped() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.stopped...)
}

// fakeSignals is a controllable signal source.
type fakeSignals struct {
	ch           chan os.Signal
	unsubscribed bool
}

func newFakeSignals() *fakeSignals {
	return &fakeSignals{ch: make(chan os.Signal)}
}

func (s *fakeSignals) source() (<-chan os.Signal, func()) {
	return s.ch, func() { s.unsubscribed = true }
}

// notifyWriter closes written on the first write.
type notifyWriter struct {
	once    sync.Once
	written chan struct{}
	mu      sync.Mutex
	data    []byte
}

func newNotifyWriter() *notifyWriter {
	return &notifyWriter{written: make(chan struct{})}
}

func (w *notifyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.data = append(w.data, p...)
	w.mu.Unlock()
	w.once.Do(func() { close(w.written) })
	return len(p), nil
}

func (w *notifyWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.data)
}
