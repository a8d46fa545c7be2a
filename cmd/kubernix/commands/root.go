// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and environment fallbacks. Command execution is delegated to
// handler functions in the handlers package.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/imamik/kubernix/cmd/kubernix/handlers"
	"github.com/imamik/kubernix/internal/config"
)

// EnvPrefix prefixes the environment variable fallback of every flag.
const EnvPrefix = "KUBERNIX_"

// Root returns the root command for the kubernix CLI.
//
// Without a subcommand it bootstraps the cluster. Flags left unset fall back
// to KUBERNIX_<FLAG> environment variables, e.g. KUBERNIX_NODES.
func Root() *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "kubernix",
		Short: "Bootstrap a local multi-node Kubernetes cluster",
		Long: `kubernix bootstraps a local Kubernetes cluster below a root directory.

It carves one subnet per node from the cluster CIDR, generates certificates
and kubeconfigs, starts the nodes one after another and spawns a shell inside
the environment. Leaving the shell stops all nodes again, last to first.

Example:
  kubernix --nodes 3 --cidr 10.10.0.0/16 --root ./run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return applyEnv(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Bootstrap(cmd.Context(), cfg)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&cfg.Root, "root", "r", cfg.Root, "Path where all the runtime data is stored")
	pf.StringVarP(&cfg.LogLevel, "log-level", "l", cfg.LogLevel, "Logging level: error, warn, info, debug or trace")
	pf.StringVarP(&cfg.Shell, "shell", "s", cfg.Shell, "Shell executable to be used, defaults to $SHELL")

	f := cmd.Flags()
	f.StringVarP(&cfg.CIDR, "cidr", "c", cfg.CIDR, "CIDR used for the cluster network")
	f.IntVarP(&cfg.Nodes, "nodes", "n", cfg.Nodes, fmt.Sprintf("Number of nodes to be registered (1-%d)", config.MaxNodes))
	f.StringVarP(&cfg.Overlay, "overlay", "o", cfg.Overlay, "Nix package overlay to be used")
	f.StringSliceVarP(&cfg.Packages, "packages", "p", cfg.Packages, "Additional dependencies to be added to the environment")
	f.StringVarP(&cfg.ContainerRuntime, "container-runtime", "u", cfg.ContainerRuntime, "Container runtime for the nodes, ignored for a single node")
	f.BoolVarP(&cfg.NoShell, "no-shell", "e", cfg.NoShell, "Do not spawn an interactive shell after bootstrap")
	f.StringVar(&cfg.Metrics.Address, "metrics-addr", cfg.Metrics.Address, "Serve Prometheus metrics on this address, e.g. :9090")
	f.BoolVar(&cfg.WaitForNodes, "wait-nodes", cfg.WaitForNodes, "Wait until all nodes registered as Ready with the API server")
	f.StringVar(&cfg.Node.Image, "node-image", cfg.Node.Image, "Container image of multi node clusters")

	cmd.AddCommand(Shell(cfg))
	cmd.AddCommand(Version())

	return cmd
}

// EnvName returns the environment variable consulted for flag name.
func EnvName(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// applyEnv sets every flag not given on the command line from its
// environment variable.
func applyEnv(flags *pflag.FlagSet) error {
	var errs []string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "help" {
			return
		}
		val, ok := os.LookupEnv(EnvName(f.Name))
		if !ok {
			return
		}
		if err := flags.Set(f.Name, val); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", EnvName(f.Name), err))
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}
