package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/provisioning"
	"github.com/imamik/kubernix/internal/shell"
	"github.com/imamik/kubernix/internal/util/naming"
)

// Start runs the preparation phases and then starts node 0 to n-1 in order.
// When node k fails, nodes k-1 down to 0 are stopped before its
// ProvisionError is returned. Nodes after k are never started.
func (o *Orchestrator) Start(ctx context.Context) error {
	started := time.Now()

	pctx := provisioning.NewContext(ctx, o.cfg, o.state, o.observer)
	pctx.Metrics = o.metrics
	if err := provisioning.NewPipeline(o.phases...).Run(pctx); err != nil {
		return err
	}

	for i := 0; i < o.cfg.Nodes; i++ {
		subnet, err := o.alloc.Subnet(i)
		if err != nil {
			return o.abortStart(err)
		}

		o.log.Info("starting node", "node", naming.Node(i), "subnet", subnet.CIDR.String())
		rec, err := o.prov.Start(ctx, i, subnet)
		if err != nil {
			var perr *kerrors.ProvisionError
			if !errors.As(err, &perr) {
				err = kerrors.Provision(i, err)
			}
			o.log.Error(err, "node failed, stopping started nodes", "node", naming.Node(i), "started", o.cluster.Len())
			return o.abortStart(err)
		}
		o.cluster.Add(rec)
	}

	if o.cfg.WaitForNodes {
		if err := o.awaitRegistration(ctx); err != nil {
			return err
		}
	}

	o.log.Info("cluster running", "nodes", o.cluster.Len(), "took", time.Since(started).Round(time.Millisecond).String())
	o.printSummary()
	return nil
}

// Run starts the cluster, hands over to the shell or waits for termination,
// and always tears the cluster down before returning.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	sigs, unsubscribe := o.signals()
	defer unsubscribe()

	defer func() {
		if tErr := o.Teardown(context.Background()); tErr != nil {
			err = errors.Join(err, tErr)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.cfg.Metrics.Address != "" {
		go func() {
			if err := o.metrics.Serve(ctx, o.cfg.Metrics.Address, o.log); err != nil {
				o.log.Error(err, "metrics endpoint failed", "address", o.cfg.Metrics.Address)
			}
		}()
	}

	interrupted, err := o.startInterruptible(ctx, sigs)
	if err != nil {
		return err
	}
	if interrupted {
		return nil
	}

	if o.cfg.NoShell {
		return o.waitForTermination(ctx, sigs)
	}
	return o.shell(ctx, sigs)
}

// startInterruptible runs Start and cancels it on the first signal. It
// reports whether a signal arrived, even when Start still succeeded.
func (o *Orchestrator) startInterruptible(ctx context.Context, sigs <-chan os.Signal) (bool, error) {
	startCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	interrupted := make(chan bool, 1)
	go func() {
		select {
		case sig := <-sigs:
			o.log.Info("interrupted during startup", "signal", sig.String())
			cancel()
			interrupted <- true
		case <-done:
			interrupted <- false
		}
	}()

	err := o.Start(startCtx)
	close(done)
	return <-interrupted, err
}

// waitForTermination blocks until a signal, cancellation of ctx, or the exit
// of a running node. A node exit is returned as its ProvisionError.
func (o *Orchestrator) waitForTermination(ctx context.Context, sigs <-chan os.Signal) error {
	o.log.Info("waiting for termination signal")
	select {
	case sig := <-sigs:
		o.log.Info("received signal, shutting down", "signal", sig.String())
		return nil
	case <-ctx.Done():
		return nil
	case rec := <-o.prov.Exited():
		cause := rec.Err()
		if cause == nil {
			cause = errors.New("node exited")
		}
		return kerrors.Provision(rec.Index, cause)
	}
}

// shell runs the interactive shell. SIGINT belongs to the shell, SIGTERM
// ends it. Nodes exiting meanwhile are only reported.
func (o *Orchestrator) shell(ctx context.Context, sigs <-chan os.Signal) error {
	session, err := shell.New(o.cfg, o.alloc, o.state.NixExpr)
	if err != nil {
		return err
	}

	shellCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case sig := <-sigs:
				if sig == syscall.SIGTERM {
					o.log.Info("received signal, closing shell", "signal", sig.String())
					cancel()
					return
				}
			case rec := <-o.prov.Exited():
				o.log.Error(rec.Err(), "node exited while the shell is open", "node", rec.Name)
			case <-shellCtx.Done():
				return
			}
		}
	}()

	o.log.V(1).Info("spawning shell", "shell", session.Path)
	if err := o.runShell(shellCtx, session); err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	return nil
}

// Teardown stops every started node last to first and releases the root
// lock. Only the first call has an effect; later calls return its result.
func (o *Orchestrator) Teardown(_ context.Context) error {
	o.teardownOnce.Do(func() {
		var errs []error
		if err := o.stopStarted(); err != nil {
			errs = append(errs, err)
		}
		if err := o.state.Lock.Release(); err != nil {
			errs = append(errs, err)
		}
		o.teardownErr = errors.Join(errs...)
		if o.teardownErr != nil {
			o.log.Error(o.teardownErr, "teardown incomplete")
			return
		}
		o.log.Info("teardown complete")
	})
	return o.teardownErr
}

// abortStart stops the started nodes and attaches any stop failure to err.
// The records are gone afterwards, so Teardown cannot retry them.
func (o *Orchestrator) abortStart(err error) error {
	if stopErr := o.stopStarted(); stopErr != nil {
		return errors.Join(err, fmt.Errorf("stop started nodes: %w", stopErr))
	}
	return err
}

// stopStarted stops all tracked nodes in reverse start order. Every node is
// attempted even when an earlier stop fails.
func (o *Orchestrator) stopStarted() error {
	var errs []error
	for rec := o.cluster.Pop(); rec != nil; rec = o.cluster.Pop() {
		if err := o.prov.Stop(context.Background(), rec.Index); err != nil {
			o.log.Error(err, "failed to stop node", "node", rec.Name)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) awaitRegistration(ctx context.Context) error {
	names := make([]string, 0, o.cluster.Len())
	for _, rec := range o.cluster.Records() {
		names = append(names, naming.Node(rec.Index))
	}
	o.log.Info("waiting for node registration", "nodes", len(names))
	if err := o.waitFor(ctx, names); err != nil {
		return fmt.Errorf("node registration: %w", err)
	}
	return nil
}
