package prepare

import (
	"github.com/imamik/kubernix/internal/lock"
	"github.com/imamik/kubernix/internal/provisioning"
)

// Lock takes the advisory lock on the root. The lock is released by the
// orchestrator during teardown.
type Lock struct{}

// NewLock creates the lock phase.
func NewLock() *Lock {
	return &Lock{}
}

// Name implements the provisioning.Phase interface.
func (p *Lock) Name() string {
	return "lock"
}

// Provision implements the provisioning.Phase interface.
func (p *Lock) Provision(ctx *provisioning.Context) error {
	l, err := lock.Acquire(ctx.Config.LockFile())
	if err != nil {
		return err
	}
	ctx.State.Lock = l
	provisioning.LogResourceCreated(ctx.Observer, p.Name(), "lock", l.Path())
	return nil
}
