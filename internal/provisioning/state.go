package provisioning

import (
	"github.com/imamik/kubernix/internal/kubeconfig"
	"github.com/imamik/kubernix/internal/lock"
	"github.com/imamik/kubernix/internal/network"
	"github.com/imamik/kubernix/internal/pki"
)

// State holds the shared results of preparation phases.
// It is progressively populated as each phase completes and is passed
// to subsequent phases that need earlier results.
type State struct {
	// Allocator is set before the pipeline runs.
	Allocator *network.Allocator

	// Hostname of the machine, part of the API server certificate.
	Hostname string

	// Lock guards the root for the duration of the run.
	Lock *lock.RootLock

	// Resumed is true when a persisted configuration was found in the root.
	Resumed bool

	PKI         *pki.PKI
	Kubeconfigs *kubeconfig.Files

	// NixExpr is the rendered Nix expression, empty when not requested.
	NixExpr string
}

// NewState creates a state for allocator.
func NewState(alloc *network.Allocator) *State {
	return &State{Allocator: alloc}
}
