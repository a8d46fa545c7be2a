package handlers

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/imamik/kubernix/internal/config"
	"github.com/imamik/kubernix/internal/orchestrator"
)

// runOrchestrator is replaced in tests.
var runOrchestrator = func(ctx context.Context, cfg *config.Config, log logr.Logger) error {
	o, err := orchestrator.New(cfg, orchestrator.WithLogger(log))
	if err != nil {
		return err
	}
	return o.Run(ctx)
}

// Bootstrap validates cfg, prepares the root directory and runs the cluster
// until the shell exits or a termination signal arrives.
func Bootstrap(ctx context.Context, cfg *config.Config) error {
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.CanonicalizeRoot(); err != nil {
		return err
	}

	log.V(1).Info("bootstrapping", "root", cfg.Root, "nodes", cfg.Nodes, "cidr", cfg.CIDR,
		"runtime", cfg.EffectiveRuntime())
	return runOrchestrator(ctx, cfg, log)
}
