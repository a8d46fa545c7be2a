package prepare

import (
	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/nixenv"
	"github.com/imamik/kubernix/internal/provisioning"
	"github.com/imamik/kubernix/internal/util/prerequisites"
)

// Prerequisites verifies that the binaries a run needs exist on the host.
type Prerequisites struct {
	check func([]prerequisites.Tool) *prerequisites.CheckResults
}

// NewPrerequisites creates the prerequisites phase.
func NewPrerequisites() *Prerequisites {
	return &Prerequisites{check: prerequisites.Check}
}

// Name implements the provisioning.Phase interface.
func (p *Prerequisites) Name() string {
	return "prerequisites"
}

// Provision implements the provisioning.Phase interface.
func (p *Prerequisites) Provision(ctx *provisioning.Context) error {
	cfg := ctx.Config
	req := prerequisites.Requirements{
		NodeCommand:      cfg.Node.Command,
		ContainerRuntime: cfg.EffectiveRuntime(),
		Nix:              nixenv.Env{Overlay: cfg.Overlay, Packages: cfg.Packages}.Enabled(),
	}
	if !cfg.NoShell {
		sh, err := cfg.ShellOrDefault()
		if err != nil {
			return err
		}
		req.Shell = sh
	}

	results := p.check(prerequisites.ToolsFor(req))
	if results.HasErrors() {
		return kerrors.ConfigErr("prerequisites", results.Error())
	}
	for _, tool := range results.Missing {
		provisioning.LogWarning(ctx.Observer, p.Name(), tool.Name+" not found: "+tool.Description+" unavailable")
	}
	return nil
}
