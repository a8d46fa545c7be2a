package node

import (
	"fmt"
	"sync"
	"time"

	"github.com/imamik/kubernix/internal/network"
)

// Record tracks one node. It is owned by the Provisioner that created it.
type Record struct {
	Index      int
	Name       string
	Subnet     network.Subnet
	Dir        string
	LogPath    string
	Kubeconfig string

	mu        sync.Mutex
	state     State
	handle    Handle
	err       error
	startedAt time.Time
	readyAt   time.Time
}

// State returns the current lifecycle state.
func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PID returns the process ID of the node, or 0 when no process runs.
func (r *Record) PID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle == nil {
		return 0
	}
	return r.handle.PID()
}

// Err returns the cause of a failure.
func (r *Record) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// StartupDuration is the time from launch until ready.
func (r *Record) StartupDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readyAt.IsZero() {
		return 0
	}
	return r.readyAt.Sub(r.startedAt)
}

func (r *Record) setState(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setStateLocked(to)
}

func (r *Record) setStateLocked(to State) error {
	if !CanTransition(r.state, to) {
		return fmt.Errorf("node %d: invalid transition %s -> %s", r.Index, r.state, to)
	}
	r.state = to
	return nil
}

func (r *Record) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if CanTransition(r.state, StateFailed) {
		r.state = StateFailed
		r.err = err
	}
}
