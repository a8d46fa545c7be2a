package config

import (
	"testing"
	"time"
)

func clearTimeoutEnvVars(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"KUBERNIX_TIMEOUT_NODE_START",
		"KUBERNIX_TIMEOUT_NODE_STOP_GRACE",
		"KUBERNIX_TIMEOUT_PROBE_INTERVAL",
		"KUBERNIX_TIMEOUT_NODES_READY",
		"KUBERNIX_PROBE_MAX_RETRIES",
	} {
		t.Setenv(v, "")
	}
}

func TestLoadTimeouts_Defaults(t *testing.T) {
	clearTimeoutEnvVars(t)

	timeouts := LoadTimeouts()

	if timeouts.NodeStart != 2*time.Minute {
		t.Errorf("Expected NodeStart default 2m, got %v", timeouts.NodeStart)
	}
	if timeouts.NodeStopGrace != 10*time.Second {
		t.Errorf("Expected NodeStopGrace default 10s, got %v", timeouts.NodeStopGrace)
	}
	if timeouts.ProbeInterval != 500*time.Millisecond {
		t.Errorf("Expected ProbeInterval default 500ms, got %v", timeouts.ProbeInterval)
	}
	if timeouts.NodesReady != 5*time.Minute {
		t.Errorf("Expected NodesReady default 5m, got %v", timeouts.NodesReady)
	}
	if timeouts.ProbeMaxRetries != 3 {
		t.Errorf("Expected ProbeMaxRetries default 3, got %d", timeouts.ProbeMaxRetries)
	}
}

func TestLoadTimeouts_FromEnv(t *testing.T) {
	clearTimeoutEnvVars(t)
	t.Setenv("KUBERNIX_TIMEOUT_NODE_START", "30s")
	t.Setenv("KUBERNIX_TIMEOUT_NODE_STOP_GRACE", "3s")
	t.Setenv("KUBERNIX_PROBE_MAX_RETRIES", "7")

	timeouts := LoadTimeouts()

	if timeouts.NodeStart != 30*time.Second {
		t.Errorf("Expected NodeStart 30s, got %v", timeouts.NodeStart)
	}
	if timeouts.NodeStopGrace != 3*time.Second {
		t.Errorf("Expected NodeStopGrace 3s, got %v", timeouts.NodeStopGrace)
	}
	if timeouts.ProbeMaxRetries != 7 {
		t.Errorf("Expected ProbeMaxRetries 7, got %d", timeouts.ProbeMaxRetries)
	}
}

func TestLoadTimeouts_InvalidValuesFallBack(t *testing.T) {
	clearTimeoutEnvVars(t)
	t.Setenv("KUBERNIX_TIMEOUT_NODE_START", "soon")
	t.Setenv("KUBERNIX_TIMEOUT_NODES_READY", "-1m")
	t.Setenv("KUBERNIX_PROBE_MAX_RETRIES", "many")

	timeouts := LoadTimeouts()

	if timeouts.NodeStart != 2*time.Minute {
		t.Errorf("Expected NodeStart fallback 2m, got %v", timeouts.NodeStart)
	}
	if timeouts.NodesReady != 5*time.Minute {
		t.Errorf("Expected NodesReady fallback 5m, got %v", timeouts.NodesReady)
	}
	if timeouts.ProbeMaxRetries != 3 {
		t.Errorf("Expected ProbeMaxRetries fallback 3, got %d", timeouts.ProbeMaxRetries)
	}
}
