// Package process runs a node's external process in its own process group,
// tees its output into a log file and lets callers wait for output lines.
package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// tailLines is the number of output lines kept in memory.
const tailLines = 200

// drainDelay bounds how long output is read after the process exited.
// Descendants that left the process group may hold the pipes open.
const drainDelay = 500 * time.Millisecond

// Spec describes a process to start.
type Spec struct {
	// Path is the binary, resolved through PATH when not absolute.
	Path string
	Args []string
	// Env is appended to the current environment.
	Env []string
	Dir string
	// LogPath receives stdout and stderr. Empty discards output.
	LogPath string
}

type watcher struct {
	re *regexp.Regexp
	ch chan struct{}
}

// Process is a started process.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu       sync.Mutex
	tail     []string
	watchers []watcher
	err      error
	log      io.WriteCloser

	stopOnce sync.Once
	stopErr  error
	stopping bool
}

// Start launches spec in a new process group.
func Start(spec Spec) (*Process, error) {
	if spec.Path == "" {
		return nil, errors.New("empty command")
	}

	// #nosec G204 - command comes from validated configuration
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	p := &Process{cmd: cmd, done: make(chan struct{})}
	if spec.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		p.log = f
	}

	// Plain pipes instead of cmd.StdoutPipe, so reaping the process does not
	// depend on every holder of the write ends going away.
	pipes, err := newOutputs()
	if err != nil {
		p.closeLog()
		return nil, err
	}
	cmd.Stdout = pipes.writers[0]
	cmd.Stderr = pipes.writers[1]

	if err := cmd.Start(); err != nil {
		pipes.closeAll()
		p.closeLog()
		return nil, fmt.Errorf("start %s: %w", spec.Path, err)
	}
	pipes.closeWriters()

	var g errgroup.Group
	for _, r := range pipes.readers {
		g.Go(func() error { return p.pump(r) })
	}
	drained := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(drained)
	}()

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()

		timer := time.NewTimer(drainDelay)
		select {
		case <-drained:
		case <-timer.C:
			pipes.closeReaders()
			<-drained
		}
		timer.Stop()
		pipes.closeReaders()
		p.closeLog()
		close(p.done)
	}()

	return p, nil
}

// outputs holds the stdout and stderr pipes of a process.
type outputs struct {
	readers []*os.File
	writers []*os.File
	once    sync.Once
}

func newOutputs() (*outputs, error) {
	o := &outputs{}
	for range 2 {
		r, w, err := os.Pipe()
		if err != nil {
			o.closeAll()
			return nil, fmt.Errorf("output pipe: %w", err)
		}
		o.readers = append(o.readers, r)
		o.writers = append(o.writers, w)
	}
	return o, nil
}

func (o *outputs) closeWriters() {
	for _, w := range o.writers {
		_ = w.Close()
	}
}

// closeReaders unblocks pumps still reading from pipes held open elsewhere.
func (o *outputs) closeReaders() {
	o.once.Do(func() {
		for _, r := range o.readers {
			_ = r.Close()
		}
	})
}

func (o *outputs) closeAll() {
	o.closeWriters()
	o.closeReaders()
}

func (p *Process) pump(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.line(scanner.Text())
	}
	return scanner.Err()
}

func (p *Process) line(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.log != nil {
		_, _ = io.WriteString(p.log, text+"\n")
	}
	p.tail = append(p.tail, text)
	if len(p.tail) > tailLines {
		p.tail = p.tail[len(p.tail)-tailLines:]
	}

	kept := p.watchers[:0]
	for _, w := range p.watchers {
		if w.re.MatchString(text) {
			close(w.ch)
			continue
		}
		kept = append(kept, w)
	}
	p.watchers = kept
}

func (p *Process) closeLog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.log != nil {
		_ = p.log.Close()
		p.log = nil
	}
}

// PID returns the process ID, which is also the process group ID.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process exited and its output was drained, or
// the drain gave up after a short delay.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error. It is only meaningful after Done is closed.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// WaitForLine returns a channel that is closed once an output line matches
// re. Lines already in the tail buffer count.
func (p *Process) WaitForLine(re *regexp.Regexp) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan struct{})
	for _, l := range p.tail {
		if re.MatchString(l) {
			close(ch)
			return ch
		}
	}
	p.watchers = append(p.watchers, watcher{re: re, ch: ch})
	return ch
}

// Tail returns up to n of the most recent output lines.
func (p *Process) Tail(n int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > len(p.tail) {
		n = len(p.tail)
	}
	out := make([]string, n)
	copy(out, p.tail[len(p.tail)-n:])
	return out
}

// Signal sends sig to the whole process group.
func (p *Process) Signal(sig syscall.Signal) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	err := syscall.Kill(-p.PID(), sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// Stop sends SIGTERM to the process group and SIGKILL once grace elapsed.
// It waits for the process to exit. Later calls return the first result
// without signalling again.
func (p *Process) Stop(grace time.Duration) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopping = true
		p.mu.Unlock()
		p.stopErr = p.stop(grace)
	})
	return p.stopErr
}

func (p *Process) stop(grace time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send SIGTERM: %w", err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}

	if err := p.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("send SIGKILL: %w", err)
	}
	<-p.done
	return nil
}

// Stopped reports whether Stop was called.
func (p *Process) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopping
}
