// Package config defines the kubernix configuration model.
//
// A Config is built once per run from defaults, flags and environment, validated,
// and its root directory canonicalized before any other component sees it. The
// same structure is persisted to the root directory so that a later run against
// the same root can resume with identical settings.
package config

import "time"

// FileName is the name of the persisted configuration inside the root directory.
const FileName = "kubernix.yaml"

// Config holds the kubernix configuration.
type Config struct {
	// LogLevel is one of error, warn, info, debug or trace.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// CIDR is the IPv4 network carved into per-node subnets.
	CIDR string `mapstructure:"cidr" yaml:"cidr"`

	// Nodes is the number of nodes to bootstrap (1-255).
	Nodes int `mapstructure:"nodes" yaml:"nodes"`

	// Root is the directory holding all runtime data of the cluster.
	Root string `mapstructure:"root" yaml:"root"`

	// Overlay is an optional Nix package overlay applied to the environment.
	Overlay string `mapstructure:"overlay" yaml:"overlay,omitempty"`

	// Packages are additional dependencies added to the environment, in order.
	Packages []string `mapstructure:"packages" yaml:"packages,omitempty"`

	// Shell is the executable spawned after bootstrap. Defaults to $SHELL.
	Shell string `mapstructure:"shell" yaml:"shell,omitempty"`

	// ContainerRuntime hosts the nodes when more than one node is requested.
	// It is ignored for single node clusters.
	ContainerRuntime string `mapstructure:"container_runtime" yaml:"container_runtime"`

	// NoShell skips the interactive shell and waits for a termination signal instead.
	NoShell bool `mapstructure:"no_shell" yaml:"no_shell"`

	// Subcommand is the operator action of this invocation, empty for bootstrap.
	// It is never persisted.
	Subcommand string `mapstructure:"-" yaml:"-"`

	// WaitForNodes waits until every node registered as Ready with the API server.
	WaitForNodes bool `mapstructure:"wait_for_nodes" yaml:"wait_for_nodes"`

	Node    NodeConfig    `mapstructure:"node" yaml:"node"`
	Kube    KubeConfig    `mapstructure:"kube" yaml:"kube"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// NodeConfig describes the runtime process started for every node.
type NodeConfig struct {
	// Command is the executable started per node.
	Command string `mapstructure:"command" yaml:"command"`

	// Args are argument templates. See node.TemplateData for the available fields.
	Args []string `mapstructure:"args" yaml:"args,omitempty"`

	// Image is the container image used when nodes run inside the container runtime.
	Image string `mapstructure:"image" yaml:"image,omitempty"`

	Readiness ReadinessConfig `mapstructure:"readiness" yaml:"readiness"`

	// StartTimeout bounds the wait for the readiness signal.
	StartTimeout time.Duration `mapstructure:"start_timeout" yaml:"start_timeout"`

	// StopGracePeriod is the time between SIGTERM and SIGKILL.
	StopGracePeriod time.Duration `mapstructure:"stop_grace_period" yaml:"stop_grace_period"`
}

// Readiness probe types.
const (
	ProbeLog  = "log"
	ProbeHTTP = "http"
	ProbeTCP  = "tcp"
)

// ReadinessConfig selects how a started node signals that it is ready.
type ReadinessConfig struct {
	// Probe is one of log, http or tcp.
	Probe string `mapstructure:"probe" yaml:"probe"`

	// Pattern is the regular expression matched against output lines (log probe).
	Pattern string `mapstructure:"pattern" yaml:"pattern,omitempty"`

	// URL is the health endpoint template (http probe).
	URL string `mapstructure:"url" yaml:"url,omitempty"`

	// Address is the host:port template dialed by the tcp probe.
	Address string `mapstructure:"address" yaml:"address,omitempty"`

	// Interval is the polling interval of the http and tcp probes.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// KubeConfig holds the Kubernetes facing settings of the environment.
type KubeConfig struct {
	// APIServer is the URL written into generated kubeconfigs.
	APIServer string `mapstructure:"api_server" yaml:"api_server"`

	// ClusterDomain is the DNS domain of the cluster.
	ClusterDomain string `mapstructure:"cluster_domain" yaml:"cluster_domain"`

	// NodesReadyTimeout bounds the wait for node registration.
	NodesReadyTimeout time.Duration `mapstructure:"nodes_ready_timeout" yaml:"nodes_ready_timeout"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	// Address is the listen address of the /metrics endpoint. Empty disables it.
	Address string `mapstructure:"address" yaml:"address,omitempty"`
}
