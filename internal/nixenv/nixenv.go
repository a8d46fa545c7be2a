// Package nixenv renders the Nix expression that provides the requested
// packages inside the interactive shell.
package nixenv

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"text/template"

	"github.com/imamik/kubernix/internal/kerrors"
)

// FileName is the rendered expression inside the nix directory.
const FileName = "default.nix"

// attrPath matches a nixpkgs attribute path such as jq or python3Packages.pip.
var attrPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_'-]*(\.[A-Za-z_][A-Za-z0-9_'-]*)*$`)

var expr = template.Must(template.New(FileName).Parse(`# Generated by kubernix. Changes are overwritten on every run.
{ pkgs ? import <nixpkgs> {
{{- if .Overlay }}
    overlays = [ (import {{ .Overlay }}) ];
{{- end }}
  }
}:
pkgs.mkShell {
  buildInputs = with pkgs; [
{{- range .Packages }}
    {{ . }}
{{- end }}
  ];
}
`))

// Env describes the requested environment.
type Env struct {
	Overlay  string
	Packages []string
}

// Enabled reports whether anything beyond the plain shell was requested.
func (e Env) Enabled() bool {
	return e.Overlay != "" || len(e.Packages) > 0
}

// Validate checks package names and the overlay path.
func (e Env) Validate() error {
	for _, pkg := range e.Packages {
		if !attrPath.MatchString(pkg) {
			return kerrors.ConfigErr("packages", fmt.Errorf("invalid package name %q", pkg))
		}
	}
	if e.Overlay != "" {
		if _, err := os.Stat(e.Overlay); err != nil {
			return kerrors.ConfigErr("overlay", err)
		}
	}
	return nil
}

// Render writes the expression into dir and returns its path. The overlay is
// referenced by absolute path.
func Render(dir string, e Env) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}

	data := Env{Packages: e.Packages}
	if e.Overlay != "" {
		abs, err := filepath.Abs(e.Overlay)
		if err != nil {
			return "", kerrors.ConfigErr("overlay", err)
		}
		data.Overlay = abs
	}

	var buf bytes.Buffer
	if err := expr.Execute(&buf, data); err != nil {
		return "", kerrors.IOErr("render nix expression", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", kerrors.IOErr("create nix dir", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", kerrors.IOErr("write nix expression", err)
	}
	return path, nil
}
