package node

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

// TemplateData is available to argument and probe templates.
type TemplateData struct {
	Index      int
	Name       string
	Subnet     string
	Address    string
	Gateway    string
	Dir        string
	Kubeconfig string
	Runtime    string
}

// Environment variables passed to every node process.
const (
	EnvNodeIndex        = "KUBERNIX_NODE_INDEX"
	EnvNodeName         = "KUBERNIX_NODE_NAME"
	EnvNodeSubnet       = "KUBERNIX_NODE_SUBNET"
	EnvNodeAddress      = "KUBERNIX_NODE_ADDRESS"
	EnvNodeGateway      = "KUBERNIX_NODE_GATEWAY"
	EnvRoot             = "KUBERNIX_ROOT"
	EnvContainerRuntime = "KUBERNIX_CONTAINER_RUNTIME"
	EnvKubeconfig       = "KUBECONFIG"
)

// Expand renders tmpl with data. Unknown fields are an error.
func Expand(tmpl string, data TemplateData) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}
	t, err := template.New("arg").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", tmpl, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("expand template %q: %w", tmpl, err)
	}
	return b.String(), nil
}

// ExpandAll renders every template in tmpls.
func ExpandAll(tmpls []string, data TemplateData) ([]string, error) {
	out := make([]string, 0, len(tmpls))
	for _, tmpl := range tmpls {
		s, err := Expand(tmpl, data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Env returns the environment of a node process.
func Env(data TemplateData, root string) []string {
	return []string{
		EnvNodeIndex + "=" + strconv.Itoa(data.Index),
		EnvNodeName + "=" + data.Name,
		EnvNodeSubnet + "=" + data.Subnet,
		EnvNodeAddress + "=" + data.Address,
		EnvNodeGateway + "=" + data.Gateway,
		EnvRoot + "=" + root,
		EnvContainerRuntime + "=" + data.Runtime,
		EnvKubeconfig + "=" + data.Kubeconfig,
	}
}
