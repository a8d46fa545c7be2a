// Package main is the entry point for the kubernix CLI.
//
// kubernix bootstraps a local multi-node Kubernetes cluster below a single
// root directory, drops the operator into a shell inside the environment and
// tears everything down again once the shell exits.
//
// For detailed usage information, run:
//
//	kubernix --help
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/imamik/kubernix/cmd/kubernix/commands"
	"github.com/imamik/kubernix/cmd/kubernix/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(handlers.ExitCode(err))
	}
}
