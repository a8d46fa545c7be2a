package nixenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/kubernix/internal/kerrors"
)

func TestRender_Packages(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nix")

	path, err := Render(dir, Env{Packages: []string{"jq", "kubectl", "python3Packages.pip"}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "pkgs.mkShell")
	assert.Contains(t, out, "    jq\n    kubectl\n    python3Packages.pip\n")
	assert.NotContains(t, out, "overlays")
}

func TestRender_Overlay(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	overlay := filepath.Join(tmp, "overlay.nix")
	require.NoError(t, os.WriteFile(overlay, []byte("self: super: {}\n"), 0o644))

	path, err := Render(filepath.Join(tmp, "nix"), Env{Overlay: overlay})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "overlays = [ (import "+overlay+") ];")
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		env   Env
		field string
	}{
		{"injection", Env{Packages: []string{"jq ]; evil"}}, "packages"},
		{"leading digit", Env{Packages: []string{"7zip"}}, "packages"},
		{"missing overlay", Env{Overlay: "/does/not/exist.nix"}, "overlay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.env.Validate()
			require.Error(t, err)
			var kerr *kerrors.Error
			require.ErrorAs(t, err, &kerr)
			assert.Equal(t, kerrors.KindConfig, kerr.Kind)
			assert.Equal(t, tt.field, kerr.Field)
		})
	}
}

func TestEnabled(t *testing.T) {
	t.Parallel()
	assert.False(t, Env{}.Enabled())
	assert.True(t, Env{Packages: []string{"jq"}}.Enabled())
	assert.True(t, Env{Overlay: "o.nix"}.Enabled())
}
