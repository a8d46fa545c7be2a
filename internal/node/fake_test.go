package node

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/imamik/kubernix/internal/config"
)

// fakeHandle is an in-memory Handle counting stop signals.
type fakeHandle struct {
	pid   int
	done  chan struct{}
	lines chan struct{}

	mu      sync.Mutex
	stops   int
	exitErr error
	once    sync.Once
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, done: make(chan struct{}), lines: make(chan struct{})}
}

func (h *fakeHandle) PID() int { return h.pid }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }
func (h *fakeHandle) Tail(int) []string { return []string{"last words"} }
func (h *fakeHandle) WaitForLine(*regexp.Regexp) <-chan struct{} { return h.lines }

func (h *fakeHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

func (h *fakeHandle) Stop(time.Duration) error {
	h.mu.Lock()
	h.stops++
	h.mu.Unlock()
	h.exit(nil)
	return nil
}

func (h *fakeHandle) exit(err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.exitErr = err
		h.mu.Unlock()
		close(h.done)
	})
}

func (h *fakeHandle) ready() { close(h.lines) }

func (h *fakeHandle) stopCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stops
}

// fakeLauncher hands out fake handles and records launch specs.
type fakeLauncher struct {
	mu      sync.Mutex
	specs   []LaunchSpec
	handles []*fakeHandle
	err     error
	// onLaunch may drive the handle, for example mark it ready.
	onLaunch func(h *fakeHandle)
	// entered is closed when Launch is called, which then blocks until
	// release is closed. Both nil disables.
	entered chan struct{}
	release chan struct{}
}

func (l *fakeLauncher) Launch(_ context.Context, spec LaunchSpec) (Handle, error) {
	if l.release != nil {
		close(l.entered)
		<-l.release
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	h := newFakeHandle(1000 + spec.Index)
	l.specs = append(l.specs, spec)
	l.handles = append(l.handles, h)
	if l.onLaunch != nil {
		l.onLaunch(h)
	}
	return h, nil
}

var errLaunch = errors.New("launch refused")

// lineProbe is ready as soon as the fake handle emits its ready line.
func lineProbe(_ config.ReadinessConfig, _ TemplateData) (Probe, error) {
	return LogProbe{Pattern: regexp.MustCompile(".")}, nil
}

func (l *fakeLauncher) handle(i int) *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[i]
}
