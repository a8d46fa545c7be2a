package prepare

import (
	"context"
	"fmt"

	"github.com/imamik/kubernix/internal/config"
	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/node"
	"github.com/imamik/kubernix/internal/provisioning"
)

// Containers removes node containers that an earlier run of the same root left
// in the container runtime. It runs after the lock phase so a live run's
// containers are never touched. Single node runs have no containers.
type Containers struct {
	sweep func(ctx context.Context, cfg *config.Config) ([]string, error)
}

// NewContainers creates the containers phase.
func NewContainers() *Containers {
	return &Containers{sweep: removeStaleContainers}
}

func removeStaleContainers(ctx context.Context, cfg *config.Config) ([]string, error) {
	l := node.ContainerLauncher{Runtime: cfg.EffectiveRuntime(), Image: cfg.Node.Image, Root: cfg.Root}
	return l.RemoveStale(ctx)
}

// Name implements the provisioning.Phase interface.
func (p *Containers) Name() string {
	return "containers"
}

// Provision implements the provisioning.Phase interface.
func (p *Containers) Provision(ctx *provisioning.Context) error {
	if ctx.Config.EffectiveRuntime() == "" {
		return nil
	}

	removed, err := p.sweep(ctx, ctx.Config)
	for _, name := range removed {
		provisioning.LogWarning(ctx.Observer, p.Name(), fmt.Sprintf("removed stale container %s", name))
	}
	if err != nil {
		return kerrors.IOErr("remove stale containers", err)
	}
	return nil
}
