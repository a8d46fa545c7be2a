package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds the configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	NodeStart       time.Duration // Wait for a node's readiness signal
	NodeStopGrace   time.Duration // Time between SIGTERM and SIGKILL
	ProbeInterval   time.Duration // Polling interval of http/tcp readiness probes
	NodesReady      time.Duration // Wait for Kubernetes node registration
	ProbeMaxRetries int           // Maximum attempts of a single http probe round
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - KUBERNIX_TIMEOUT_NODE_START (default: 2m)
//   - KUBERNIX_TIMEOUT_NODE_STOP_GRACE (default: 10s)
//   - KUBERNIX_TIMEOUT_PROBE_INTERVAL (default: 500ms)
//   - KUBERNIX_TIMEOUT_NODES_READY (default: 5m)
//   - KUBERNIX_PROBE_MAX_RETRIES (default: 3)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		NodeStart:       parseDuration("KUBERNIX_TIMEOUT_NODE_START", 2*time.Minute),
		NodeStopGrace:   parseDuration("KUBERNIX_TIMEOUT_NODE_STOP_GRACE", 10*time.Second),
		ProbeInterval:   parseDuration("KUBERNIX_TIMEOUT_PROBE_INTERVAL", 500*time.Millisecond),
		NodesReady:      parseDuration("KUBERNIX_TIMEOUT_NODES_READY", 5*time.Minute),
		ProbeMaxRetries: parseInt("KUBERNIX_PROBE_MAX_RETRIES", 3),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set, invalid or not positive, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
