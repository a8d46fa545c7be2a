package provisioning

import (
	"context"

	"github.com/imamik/kubernix/internal/config"
	"github.com/imamik/kubernix/internal/metrics"
)

// Context wraps all dependencies and state needed for a preparation phase.
type Context struct {
	context.Context
	Config   *config.Config
	State    *State
	Observer Observer
	Metrics  *metrics.Recorder
}

// NewContext creates a new provisioning context.
func NewContext(ctx context.Context, cfg *config.Config, state *State, observer Observer) *Context {
	return &Context{
		Context:  ctx,
		Config:   cfg,
		State:    state,
		Observer: observer,
	}
}
