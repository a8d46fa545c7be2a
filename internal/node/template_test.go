package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testData = TemplateData{
	Index:      2,
	Name:       "kubernix-node-2",
	Subnet:     "10.0.0.128/26",
	Address:    "10.0.0.130",
	Gateway:    "10.0.0.129",
	Dir:        "/r/nodes/kubernix-node-2",
	Kubeconfig: "/r/kubeconfig/kubernix-node-2.kubeconfig",
	Runtime:    "podman",
}

func TestExpand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"--plain", "--plain"},
		{"--pod-cidr={{.Subnet}}", "--pod-cidr=10.0.0.128/26"},
		{"http://{{.Address}}:10248/healthz", "http://10.0.0.130:10248/healthz"},
		{"{{.Name}}-{{.Index}}-{{.Runtime}}", "kubernix-node-2-2-podman"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := Expand(tt.in, testData)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpand_Errors(t *testing.T) {
	t.Parallel()
	_, err := Expand("{{.Unknown}}", testData)
	assert.Error(t, err)

	_, err = Expand("{{.Name", testData)
	assert.Error(t, err)

	_, err = ExpandAll([]string{"ok", "{{.Nope}}"}, testData)
	assert.Error(t, err)
}

func TestEnv(t *testing.T) {
	t.Parallel()
	env := Env(testData, "/r")
	assert.Equal(t, []string{
		"KUBERNIX_NODE_INDEX=2",
		"KUBERNIX_NODE_NAME=kubernix-node-2",
		"KUBERNIX_NODE_SUBNET=10.0.0.128/26",
		"KUBERNIX_NODE_ADDRESS=10.0.0.130",
		"KUBERNIX_NODE_GATEWAY=10.0.0.129",
		"KUBERNIX_ROOT=/r",
		"KUBERNIX_CONTAINER_RUNTIME=podman",
		"KUBECONFIG=/r/kubeconfig/kubernix-node-2.kubeconfig",
	}, env)
}
