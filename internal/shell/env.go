package shell

import (
	"fmt"
	"os"
	"strconv"

	"github.com/imamik/kubernix/internal/config"
	"github.com/imamik/kubernix/internal/network"
)

// Environment variables exported into the shell.
const (
	EnvRoot         = "KUBERNIX_ROOT"
	EnvKubeconfig   = "KUBECONFIG"
	EnvNodes        = "KUBERNIX_NODES"
	EnvAPIServiceIP = "KUBERNIX_API_SERVICE_IP"
	EnvDNSServiceIP = "KUBERNIX_DNS_SERVICE_IP"
	EnvPrompt       = "PS1"
)

// PromptPrefix marks shells spawned by kubernix.
const PromptPrefix = "[kubernix] "

const defaultPrompt = `\w \$ `

// Environment returns the variables describing the cluster to the shell, in a
// stable order. Per node variables are KUBERNIX_NODE_<i>_ADDRESS and
// KUBERNIX_NODE_<i>_SUBNET.
func Environment(cfg *config.Config, alloc *network.Allocator) []string {
	env := []string{
		EnvRoot + "=" + cfg.Root,
		EnvKubeconfig + "=" + cfg.AdminKubeconfig(),
		EnvNodes + "=" + strconv.Itoa(alloc.Nodes()),
	}
	for _, s := range alloc.All() {
		env = append(env,
			fmt.Sprintf("KUBERNIX_NODE_%d_ADDRESS=%s", s.Index, s.Address),
			fmt.Sprintf("KUBERNIX_NODE_%d_SUBNET=%s", s.Index, s.CIDR),
		)
	}
	env = append(env,
		EnvAPIServiceIP+"="+alloc.APIServiceIP().String(),
		EnvDNSServiceIP+"="+alloc.DNSServiceIP().String(),
		EnvPrompt+"="+prompt(os.Getenv(EnvPrompt)),
	)
	return env
}

func prompt(current string) string {
	if current == "" {
		current = defaultPrompt
	}
	return PromptPrefix + current
}
