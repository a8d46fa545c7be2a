package config

// Default values.
const (
	DefaultLogLevel         = "info"
	DefaultCIDR             = "10.10.0.0/16"
	DefaultNodes            = 1
	DefaultRoot             = "kubernix-run"
	DefaultContainerRuntime = "podman"
	DefaultNodeCommand      = "kubelet"
	DefaultAPIServer        = "https://127.0.0.1:6443"
	DefaultClusterDomain    = "cluster.local"

	// DefaultNodeImage is the locally built image multi node clusters run
	// the node command in.
	DefaultNodeImage = "localhost/kubernix-node:latest"

	// kubeletHealthzPort is the port the default node command serves /healthz on.
	kubeletHealthzPort = "10248"
)

// DefaultNodeArgs are the argument templates of the default node command.
var DefaultNodeArgs = []string{
	"--kubeconfig={{.Kubeconfig}}",
	"--root-dir={{.Dir}}/kubelet",
	"--pod-cidr={{.Subnet}}",
	"--node-ip={{.Address}}",
	"--hostname-override={{.Name}}",
	"--healthz-bind-address={{.Address}}",
	"--healthz-port=" + kubeletHealthzPort,
	"--fail-swap-on=false",
}

// Default returns a configuration populated with default values.
// Timeout defaults honor the KUBERNIX_TIMEOUT_* environment variables.
func Default() *Config {
	t := LoadTimeouts()
	return &Config{
		LogLevel:         DefaultLogLevel,
		CIDR:             DefaultCIDR,
		Nodes:            DefaultNodes,
		Root:             DefaultRoot,
		ContainerRuntime: DefaultContainerRuntime,
		Node: NodeConfig{
			Command: DefaultNodeCommand,
			Args:    append([]string(nil), DefaultNodeArgs...),
			Image:   DefaultNodeImage,
			Readiness: ReadinessConfig{
				Probe:    ProbeHTTP,
				URL:      "http://{{.Address}}:" + kubeletHealthzPort + "/healthz",
				Interval: t.ProbeInterval,
			},
			StartTimeout:    t.NodeStart,
			StopGracePeriod: t.NodeStopGrace,
		},
		Kube: KubeConfig{
			APIServer:         DefaultAPIServer,
			ClusterDomain:     DefaultClusterDomain,
			NodesReadyTimeout: t.NodesReady,
		},
	}
}

// MultiNode returns true if multi node support is enabled.
func (c *Config) MultiNode() bool {
	return c.Nodes > 1
}

// EffectiveRuntime returns the container runtime nodes run in, or an empty
// string for single node clusters where the configured runtime is ignored.
func (c *Config) EffectiveRuntime() string {
	if !c.MultiNode() {
		return ""
	}
	return c.ContainerRuntime
}
