package prepare

import (
	"github.com/imamik/kubernix/internal/nixenv"
	"github.com/imamik/kubernix/internal/provisioning"
)

// Nix renders the Nix expression for the requested overlay and packages.
// Nothing is written when neither is configured.
type Nix struct{}

// NewNix creates the nix phase.
func NewNix() *Nix {
	return &Nix{}
}

// Name implements the provisioning.Phase interface.
func (p *Nix) Name() string {
	return "nix"
}

// Provision implements the provisioning.Phase interface.
func (p *Nix) Provision(ctx *provisioning.Context) error {
	env := nixenv.Env{Overlay: ctx.Config.Overlay, Packages: ctx.Config.Packages}
	if !env.Enabled() {
		return nil
	}

	path, err := nixenv.Render(ctx.Config.NixDir(), env)
	if err != nil {
		return err
	}
	ctx.State.NixExpr = path
	provisioning.LogResourceCreated(ctx.Observer, p.Name(), "nix expression", path)
	return nil
}
