package node

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/imamik/kubernix/internal/process"
	"github.com/imamik/kubernix/internal/util/labels"
	"github.com/imamik/kubernix/internal/util/naming"
	"github.com/imamik/kubernix/internal/util/retry"
)

// removeTimeout bounds container removal including retries.
const removeTimeout = 30 * time.Second

// removeRetries covers runtimes that refuse removal while the container is
// still shutting down.
const removeRetries = 3

// Handle is a launched node process.
type Handle interface {
	PID() int
	Done() <-chan struct{}
	Err() error
	WaitForLine(re *regexp.Regexp) <-chan struct{}
	Tail(n int) []string
	Stop(grace time.Duration) error
}

// LaunchSpec is what a Launcher needs to start one node.
type LaunchSpec struct {
	Index   int
	Name    string
	Dir     string
	LogPath string
	Command string
	Args    []string
	Env     []string
}

// Launcher starts node processes.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Handle, error)
}

// HostLauncher runs the node command directly on the host.
type HostLauncher struct{}

// Launch implements Launcher.
func (HostLauncher) Launch(_ context.Context, spec LaunchSpec) (Handle, error) {
	p, err := process.Start(process.Spec{
		Path:    spec.Command,
		Args:    spec.Args,
		Env:     spec.Env,
		Dir:     spec.Dir,
		LogPath: spec.LogPath,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RemoveFunc force-removes a container.
type RemoveFunc func(ctx context.Context, runtime, name string) error

// ListFunc lists the names of all containers matching a label selector.
type ListFunc func(ctx context.Context, runtime, selector string) ([]string, error)

// ContainerLauncher runs the node command inside a container of Runtime.
type ContainerLauncher struct {
	Runtime string
	Image   string
	Root    string
	// Remove defaults to `<runtime> rm --force <name>`.
	Remove RemoveFunc
	// List defaults to `<runtime> ps --all --filter label=<selector>`.
	List ListFunc
}

// RemoveStale removes every container labelled with Root, whatever its
// index. Such containers are left behind by runs that ended without teardown.
// It returns the names it removed.
func (l ContainerLauncher) RemoveStale(ctx context.Context) ([]string, error) {
	list := l.List
	if list == nil {
		list = listContainers
	}
	remove := l.Remove
	if remove == nil {
		remove = removeContainer
	}

	names, err := list(ctx, l.Runtime, labels.SelectorForRoot(l.Root))
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	var (
		removed []string
		errs    []error
	)
	for _, name := range names {
		if err := remove(ctx, l.Runtime, name); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
			continue
		}
		removed = append(removed, name)
	}
	return removed, errors.Join(errs...)
}

// Launch implements Launcher. A stale container of the same name is removed
// first.
func (l ContainerLauncher) Launch(ctx context.Context, spec LaunchSpec) (Handle, error) {
	name := naming.Container(l.Root, spec.Index)
	remove := l.Remove
	if remove == nil {
		remove = removeContainer
	}
	_ = remove(ctx, l.Runtime, name)

	p, err := process.Start(process.Spec{
		Path:    l.Runtime,
		Args:    l.Args(spec),
		Dir:     spec.Dir,
		LogPath: spec.LogPath,
	})
	if err != nil {
		return nil, err
	}
	return &containerHandle{
		Process: p,
		remove: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
			defer cancel()
			return retry.WithExponentialBackoff(ctx, func(ctx context.Context) error {
				return remove(ctx, l.Runtime, name)
			}, retry.WithMaxRetries(removeRetries), retry.WithInitialDelay(200*time.Millisecond), retry.WithMaxDelay(2*time.Second))
		},
	}, nil
}

// Args returns the runtime arguments for spec.
func (l ContainerLauncher) Args(spec LaunchSpec) []string {
	args := []string{
		"run", "--rm",
		"--name", naming.Container(l.Root, spec.Index),
		"--hostname", spec.Name,
		"--privileged",
		"--network", "host",
		"--volume", l.Root + ":" + l.Root,
	}

	lbls := labels.NewLabelBuilder(l.Root).WithNode(spec.Name, spec.Index).Build()
	keys := make([]string, 0, len(lbls))
	for k := range lbls {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, "--label", k+"="+lbls[k])
	}

	for _, kv := range spec.Env {
		args = append(args, "--env", kv)
	}

	args = append(args, l.Image, spec.Command)
	return append(args, spec.Args...)
}

func removeContainer(ctx context.Context, runtime, name string) error {
	// #nosec G204 - runtime comes from validated configuration
	out, err := exec.CommandContext(ctx, runtime, "rm", "--force", name).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if strings.Contains(strings.ToLower(msg), "no such container") {
			return nil
		}
		if msg == "" {
			return err
		}
		return errors.New(msg)
	}
	return nil
}

func listContainers(ctx context.Context, runtime, selector string) ([]string, error) {
	// #nosec G204 - runtime comes from validated configuration
	out, err := exec.CommandContext(ctx, runtime,
		"ps", "--all", "--filter", "label="+selector, "--format", "{{.Names}}").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, errors.New(strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return strings.Fields(string(out)), nil
}

type containerHandle struct {
	*process.Process
	remove func() error

	stopOnce sync.Once
	stopErr  error
}

// Stop stops the runtime process and removes the container. Later calls
// return the first result.
func (h *containerHandle) Stop(grace time.Duration) error {
	h.stopOnce.Do(func() {
		h.stopErr = errors.Join(h.Process.Stop(grace), h.remove())
	})
	return h.stopErr
}
