package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/imamik/kubernix/internal/kerrors"
)

// CanonicalizeRoot makes the root path absolute, creating the directory when it
// does not exist yet and resolving symbolic links.
func (c *Config) CanonicalizeRoot() error {
	if c.Root == "" {
		return kerrors.IOErr("canonicalize root", fmt.Errorf("root directory is empty"))
	}

	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return kerrors.IOErr("canonicalize root", fmt.Errorf("failed to resolve %s: %w", c.Root, err))
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return kerrors.IOErr("canonicalize root", fmt.Errorf("failed to create %s: %w", abs, err))
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return kerrors.IOErr("canonicalize root", fmt.Errorf("failed to resolve links of %s: %w", abs, err))
	}

	c.Root = resolved
	return nil
}

// File returns the path of the persisted configuration.
func (c *Config) File() string {
	return filepath.Join(c.Root, FileName)
}

// LockFile returns the path of the root directory lock.
func (c *Config) LockFile() string {
	return filepath.Join(c.Root, ".kubernix.lock")
}

// PKIDir returns the directory holding generated certificates.
func (c *Config) PKIDir() string {
	return filepath.Join(c.Root, "pki")
}

// KubeconfigDir returns the directory holding generated kubeconfigs.
func (c *Config) KubeconfigDir() string {
	return filepath.Join(c.Root, "kubeconfig")
}

// AdminKubeconfig returns the path of the administrator kubeconfig.
func (c *Config) AdminKubeconfig() string {
	return filepath.Join(c.KubeconfigDir(), "admin.kubeconfig")
}

// NodesDir returns the directory holding per node runtime data.
func (c *Config) NodesDir() string {
	return filepath.Join(c.Root, "nodes")
}

// NixDir returns the directory holding the rendered Nix environment.
func (c *Config) NixDir() string {
	return filepath.Join(c.Root, "nix")
}
