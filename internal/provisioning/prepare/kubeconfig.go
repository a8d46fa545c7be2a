package prepare

import (
	"errors"

	"github.com/imamik/kubernix/internal/kubeconfig"
	"github.com/imamik/kubernix/internal/provisioning"
)

// Kubeconfig writes the admin kubeconfig and one kubeconfig per node.
type Kubeconfig struct{}

// NewKubeconfig creates the kubeconfig phase.
func NewKubeconfig() *Kubeconfig {
	return &Kubeconfig{}
}

// Name implements the provisioning.Phase interface.
func (p *Kubeconfig) Name() string {
	return "kubeconfig"
}

// Provision implements the provisioning.Phase interface.
func (p *Kubeconfig) Provision(ctx *provisioning.Context) error {
	if ctx.State.PKI == nil {
		return errors.New("certificates not generated")
	}

	cfg := ctx.Config
	files, err := kubeconfig.WriteAll(cfg.KubeconfigDir(), cfg.AdminKubeconfig(), cfg.Kube.APIServer, ctx.State.PKI)
	if err != nil {
		return err
	}

	provisioning.LogResourceCreated(ctx.Observer, p.Name(), "kubeconfig", files.Admin)
	for _, path := range files.Nodes {
		provisioning.LogResourceCreated(ctx.Observer, p.Name(), "kubeconfig", path)
	}
	ctx.State.Kubeconfigs = files
	return nil
}
