package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/network"
)

// MaxNodes is the largest supported node count.
const MaxNodes = 255

// ValidLogLevels contains the accepted log levels, from least to most verbose.
var ValidLogLevels = []string{"error", "warn", "info", "debug", "trace"}

// ValidProbes contains the accepted readiness probe types.
var ValidProbes = []string{ProbeLog, ProbeHTTP, ProbeTCP}

// Validate checks the configuration for common errors. Every failure is a
// configuration error naming the offending field. Empty lists are normalized
// to nil so a persisted configuration reads back unchanged.
func (c *Config) Validate() error {
	c.normalize()

	if !slices.Contains(ValidLogLevels, c.LogLevel) {
		return kerrors.ConfigErr("log_level", fmt.Errorf("invalid log level %q: must be one of %v", c.LogLevel, ValidLogLevels))
	}

	if _, err := network.ParseIPv4Prefix(c.CIDR); err != nil {
		return kerrors.ConfigErr("cidr", err)
	}

	if c.Nodes < 1 || c.Nodes > MaxNodes {
		return kerrors.ConfigErr("nodes", fmt.Errorf("must be between 1 and %d, got %d", MaxNodes, c.Nodes))
	}

	if strings.TrimSpace(c.Root) == "" {
		return kerrors.ConfigErr("root", errors.New("root directory is required"))
	}

	if c.MultiNode() && strings.TrimSpace(c.ContainerRuntime) == "" {
		return kerrors.ConfigErr("container_runtime", errors.New("a container runtime is required for more than one node"))
	}

	for i, pkg := range c.Packages {
		if strings.TrimSpace(pkg) == "" {
			return kerrors.ConfigErr("packages", fmt.Errorf("package %d has an empty name", i))
		}
	}

	if err := c.validateNode(); err != nil {
		return err
	}

	if err := c.validateKube(); err != nil {
		return err
	}

	return nil
}

// validateNode validates the node runtime settings.
func (c *Config) validateNode() error {
	if strings.TrimSpace(c.Node.Command) == "" {
		return kerrors.ConfigErr("node.command", errors.New("node command is required"))
	}
	if c.Node.StartTimeout <= 0 {
		return kerrors.ConfigErr("node.start_timeout", fmt.Errorf("must be positive, got %v", c.Node.StartTimeout))
	}
	if c.Node.StopGracePeriod <= 0 {
		return kerrors.ConfigErr("node.stop_grace_period", fmt.Errorf("must be positive, got %v", c.Node.StopGracePeriod))
	}

	if c.MultiNode() && strings.TrimSpace(c.Node.Image) == "" {
		return kerrors.ConfigErr("node.image", errors.New("an image is required for more than one node"))
	}

	r := c.Node.Readiness
	switch r.Probe {
	case ProbeLog:
		if r.Pattern == "" {
			return kerrors.ConfigErr("node.readiness.pattern", errors.New("log probe requires a pattern"))
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return kerrors.ConfigErr("node.readiness.pattern", err)
		}
	case ProbeHTTP:
		if r.URL == "" {
			return kerrors.ConfigErr("node.readiness.url", errors.New("http probe requires a url"))
		}
	case ProbeTCP:
		if r.Address == "" {
			return kerrors.ConfigErr("node.readiness.address", errors.New("tcp probe requires an address"))
		}
	default:
		return kerrors.ConfigErr("node.readiness.probe", fmt.Errorf("invalid probe %q: must be one of %v", r.Probe, ValidProbes))
	}

	if r.Probe != ProbeLog && r.Interval <= 0 {
		return kerrors.ConfigErr("node.readiness.interval", fmt.Errorf("must be positive, got %v", r.Interval))
	}

	return nil
}

// validateKube validates the Kubernetes facing settings.
func (c *Config) validateKube() error {
	u, err := url.Parse(c.Kube.APIServer)
	if err != nil {
		return kerrors.ConfigErr("kube.api_server", err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return kerrors.ConfigErr("kube.api_server", fmt.Errorf("must be an https URL, got %q", c.Kube.APIServer))
	}
	if c.Kube.ClusterDomain == "" {
		return kerrors.ConfigErr("kube.cluster_domain", errors.New("cluster domain is required"))
	}
	if c.WaitForNodes && c.Kube.NodesReadyTimeout <= 0 {
		return kerrors.ConfigErr("kube.nodes_ready_timeout", fmt.Errorf("must be positive, got %v", c.Kube.NodesReadyTimeout))
	}
	return nil
}

func (c *Config) normalize() {
	if len(c.Packages) == 0 {
		c.Packages = nil
	}
	if len(c.Node.Args) == 0 {
		c.Node.Args = nil
	}
}
