package orchestrator

import (
	"github.com/imamik/kubernix/internal/ui/tui"
)

// Summary describes the running cluster.
func (o *Orchestrator) Summary() tui.Summary {
	s := tui.Summary{
		Root:         o.cfg.Root,
		CIDR:         o.alloc.CIDR().String(),
		Runtime:      o.cfg.EffectiveRuntime(),
		Kubeconfig:   o.cfg.AdminKubeconfig(),
		APIServiceIP: o.alloc.APIServiceIP().String(),
		DNSServiceIP: o.alloc.DNSServiceIP().String(),
	}
	for _, rec := range o.cluster.Records() {
		s.Nodes = append(s.Nodes, tui.NodeRow{
			Name:    rec.Name,
			Subnet:  rec.Subnet.CIDR.String(),
			Address: rec.Subnet.Address.String(),
			State:   rec.State().String(),
			PID:     rec.PID(),
		})
	}
	return s
}

func (o *Orchestrator) printSummary() {
	if o.out == nil {
		return
	}
	if err := tui.Print(o.out, o.Summary(), o.styled); err != nil {
		o.log.V(1).Info("failed to print summary", "error", err.Error())
	}
}
