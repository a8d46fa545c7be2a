package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/kubernix/cmd/kubernix/handlers"
	"github.com/imamik/kubernix/internal/config"
)

// Shell returns the shell command.
//
// The shell command spawns an additional shell into the environment of an
// already bootstrapped root, using the configuration persisted there.
func Shell(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Spawn a new shell into an existing kubernix environment",
		Long: `Spawn a new shell into the environment bootstrapped below --root.

The configuration persisted by the bootstrap run is loaded from the root, so
the shell sees the same nodes, addresses and kubeconfig.

Example:
  kubernix shell --root ./run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Subcommand = cmd.Name()
			return handlers.Shell(cmd.Context(), cfg)
		},
	}
}
