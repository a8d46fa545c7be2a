// Package prerequisites checks that the binaries a bootstrap run depends on
// are available in PATH before any node is started.
package prerequisites

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool represents a binary that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string
}

// NixShell provides the requested packages inside the interactive shell.
const NixShell = "nix-shell"

// Requirements describes what a run needs from the host.
type Requirements struct {
	// NodeCommand is the binary launched for every node.
	NodeCommand string
	// ContainerRuntime is set for multi-node runs.
	ContainerRuntime string
	// Shell is the interactive shell, empty when no shell is spawned.
	Shell string
	// Nix is set when packages or an overlay were requested.
	Nix bool
}

// ToolsFor returns the tools to check for the given requirements.
// With a container runtime the node command runs inside the image, so only
// the runtime binary must exist on the host.
func ToolsFor(req Requirements) []Tool {
	var tools []Tool
	if req.ContainerRuntime != "" {
		tools = append(tools, Tool{
			Name:        req.ContainerRuntime,
			Required:    true,
			Description: "Container runtime used to isolate nodes",
		})
	} else if req.NodeCommand != "" {
		tools = append(tools, Tool{
			Name:        req.NodeCommand,
			Required:    true,
			Description: "Node process",
		})
	}
	if req.Shell != "" {
		tools = append(tools, Tool{
			Name:        req.Shell,
			Required:    true,
			Description: "Interactive shell",
		})
	}
	if req.Nix {
		tools = append(tools, Tool{
			Name:        NixShell,
			Required:    false,
			Description: "Provides requested packages inside the shell",
		})
	}
	return tools
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool  Tool
	Found bool
	Path  string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.Description))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Found reports whether the named tool was found.
func (r *CheckResults) Found(name string) bool {
	for _, res := range r.Results {
		if res.Tool.Name == name {
			return res.Found
		}
	}
	return false
}

// LookPath resolves a binary name. Replaced in tests.
var LookPath = exec.LookPath

// Check verifies that the specified tools are available.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		path, err := LookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}
