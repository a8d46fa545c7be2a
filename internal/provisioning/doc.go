// Package provisioning provides the shared types that sequence the
// preparation of a run root before any node is started.
//
// # Subpackages
//
//   - prepare/: host prerequisites, root lock, config persistence,
//     certificates, kubeconfigs and the Nix environment
//
// # Core Types
//
// Context carries configuration, state, observer and metrics.
// Phase defines a preparation step with Name() and Provision() methods.
// State accumulates results from each phase (lock, certificates, kubeconfigs).
package provisioning
