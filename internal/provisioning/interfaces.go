package provisioning

// Phase defines the interface for a preparation phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the logic of this phase.
	Provision(ctx *Context) error
}

// PhaseFunc adapts a function to the Phase interface.
type PhaseFunc struct {
	PhaseName string
	Fn        func(ctx *Context) error
}

// Name implements Phase.
func (p PhaseFunc) Name() string { return p.PhaseName }

// Provision implements Phase.
func (p PhaseFunc) Provision(ctx *Context) error { return p.Fn(ctx) }
