package node

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/imamik/kubernix/internal/config"
	"github.com/imamik/kubernix/internal/util/netutil"
	"github.com/imamik/kubernix/internal/util/retry"
)

// probeRequestTimeout bounds a single HTTP probe request.
const probeRequestTimeout = 2 * time.Second

// Probe waits until a launched node reports ready.
type Probe interface {
	Wait(ctx context.Context, h Handle) error
}

// LogProbe is ready once an output line matches Pattern.
type LogProbe struct {
	Pattern *regexp.Regexp
}

// Wait implements Probe.
func (p LogProbe) Wait(ctx context.Context, h Handle) error {
	select {
	case <-h.WaitForLine(p.Pattern):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("no output matching %q: %w", p.Pattern, ctx.Err())
	}
}

// HTTPProbe is ready once URL answers with a 2xx status.
type HTTPProbe struct {
	URL      string
	Interval time.Duration
	Client   *http.Client
}

// Wait implements Probe.
func (p HTTPProbe) Wait(ctx context.Context, _ Handle) error {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: probeRequestTimeout}
	}
	err := retry.Poll(ctx, p.Interval, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
		if err != nil {
			return retry.Fatal(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("health check %s: %w", p.URL, err)
	}
	return nil
}

// TCPProbe is ready once Address accepts connections.
type TCPProbe struct {
	Address  string
	Interval time.Duration
}

// Wait implements Probe.
func (p TCPProbe) Wait(ctx context.Context, _ Handle) error {
	return netutil.WaitForAddress(ctx, p.Address, p.Interval)
}

// NewProbe builds the probe described by cfg for the node in data.
func NewProbe(cfg config.ReadinessConfig, data TemplateData) (Probe, error) {
	switch cfg.Probe {
	case config.ProbeLog:
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("readiness pattern: %w", err)
		}
		return LogProbe{Pattern: re}, nil
	case config.ProbeHTTP:
		url, err := Expand(cfg.URL, data)
		if err != nil {
			return nil, err
		}
		return HTTPProbe{URL: url, Interval: cfg.Interval}, nil
	case config.ProbeTCP:
		addr, err := Expand(cfg.Address, data)
		if err != nil {
			return nil, err
		}
		return TCPProbe{Address: addr, Interval: cfg.Interval}, nil
	default:
		return nil, fmt.Errorf("unknown readiness probe %q", cfg.Probe)
	}
}
