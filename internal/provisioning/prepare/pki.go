package prepare

import (
	"errors"
	"os"

	"github.com/imamik/kubernix/internal/pki"
	"github.com/imamik/kubernix/internal/provisioning"
	"github.com/imamik/kubernix/internal/util/naming"
)

// PKI creates the certificate authority and all certificate pairs. Pairs that
// are still valid for the current addressing are reused.
type PKI struct {
	hostname func() (string, error)
	keyBits  int
}

// NewPKI creates the pki phase.
func NewPKI() *PKI {
	return &PKI{hostname: os.Hostname}
}

// Name implements the provisioning.Phase interface.
func (p *PKI) Name() string {
	return "pki"
}

// Provision implements the provisioning.Phase interface.
func (p *PKI) Provision(ctx *provisioning.Context) error {
	alloc := ctx.State.Allocator
	if alloc == nil {
		return errors.New("network allocator not initialized")
	}

	hostname, err := p.hostname()
	if err != nil {
		provisioning.LogWarning(ctx.Observer, p.Name(), "unable to resolve hostname: "+err.Error())
		hostname = ""
	}
	ctx.State.Hostname = hostname

	nodes := make([]pki.NodeIdentity, 0, alloc.Nodes())
	for _, s := range alloc.All() {
		nodes = append(nodes, pki.NodeIdentity{Name: naming.Node(s.Index), Address: s.Address})
	}

	result, err := pki.Generate(ctx, pki.Options{
		Dir:          ctx.Config.PKIDir(),
		Hostname:     hostname,
		APIServiceIP: alloc.APIServiceIP(),
		Nodes:        nodes,
		KeyBits:      p.keyBits,
	})
	if err != nil {
		return err
	}

	for _, pair := range result.Pairs() {
		if pair.Reused {
			provisioning.LogResourceExists(ctx.Observer, p.Name(), "certificate", pair.CertPath)
		} else {
			provisioning.LogResourceCreated(ctx.Observer, p.Name(), "certificate", pair.CertPath)
		}
	}
	ctx.State.PKI = result
	return nil
}
