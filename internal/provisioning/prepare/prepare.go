// Package prepare implements the phases that run before any node starts:
// host prerequisites, the root lock, leftover containers, persisted
// configuration, certificates, kubeconfigs and the Nix environment.
package prepare

import "github.com/imamik/kubernix/internal/provisioning"

// Phases returns the preparation phases in execution order.
func Phases() []provisioning.Phase {
	return []provisioning.Phase{
		NewPrerequisites(),
		NewLock(),
		NewContainers(),
		NewConfig(),
		NewPKI(),
		NewKubeconfig(),
		NewNix(),
	}
}
