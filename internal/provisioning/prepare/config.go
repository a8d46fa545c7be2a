package prepare

import (
	"fmt"

	"github.com/imamik/kubernix/internal/provisioning"
)

// Config persists the configuration of this run into the root. A valid
// configuration left by an earlier run is reported and then replaced. A
// malformed one fails the phase and stays untouched.
type Config struct{}

// NewConfig creates the config phase.
func NewConfig() *Config {
	return &Config{}
}

// Name implements the provisioning.Phase interface.
func (p *Config) Name() string {
	return "config"
}

// Provision implements the provisioning.Phase interface.
func (p *Config) Provision(ctx *provisioning.Context) error {
	cfg := ctx.Config

	prior := *cfg
	found, err := prior.TryLoadFile()
	switch {
	case err != nil:
		return fmt.Errorf("persisted configuration %s, remove it to start over: %w", cfg.File(), err)
	case found:
		ctx.State.Resumed = true
		if prior.CIDR != cfg.CIDR || prior.Nodes != cfg.Nodes {
			provisioning.LogWarning(ctx.Observer, p.Name(), fmt.Sprintf(
				"addressing changed from %s with %d node(s), affected certificates are regenerated",
				prior.CIDR, prior.Nodes))
		}
	}

	if err := cfg.ToFile(); err != nil {
		return err
	}
	provisioning.LogResourceCreated(ctx.Observer, p.Name(), "configuration", cfg.File())
	return nil
}
