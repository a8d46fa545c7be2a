// Package metrics exposes bootstrap metrics for nodes started by kubernix.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kubernix"

// Recorder holds the collectors of one run. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	nodeStartsTotal   *prometheus.CounterVec
	nodeStartDuration *prometheus.HistogramVec
	nodeStopDuration  *prometheus.HistogramVec
	nodesRunning      prometheus.Gauge
	phaseDuration     *prometheus.HistogramVec
}

// NewRecorder creates a recorder backed by its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		nodeStartsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "starts_total",
				Help:      "Total number of node starts by result",
			},
			[]string{"node", "result"},
		),
		nodeStartDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "start_duration_seconds",
				Help:      "Time from launch until a node reported ready",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3min
			},
			[]string{"node"},
		),
		nodeStopDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "node",
				Name:      "stop_duration_seconds",
				Help:      "Time taken to stop a node",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"node"},
		),
		nodesRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cluster",
				Name:      "nodes_running",
				Help:      "Number of nodes currently running",
			},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "bootstrap",
				Name:      "phase_duration_seconds",
				Help:      "Duration of preparation phases",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"phase"},
		),
	}

	r.registry.MustRegister(
		r.nodeStartsTotal,
		r.nodeStartDuration,
		r.nodeStopDuration,
		r.nodesRunning,
		r.phaseDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// NodeStarted records a successful start of node index.
func (r *Recorder) NodeStarted(index int, took time.Duration) {
	if r == nil {
		return
	}
	node := strconv.Itoa(index)
	r.nodeStartsTotal.WithLabelValues(node, "success").Inc()
	r.nodeStartDuration.WithLabelValues(node).Observe(took.Seconds())
	r.nodesRunning.Inc()
}

// NodeFailed records a failed start of node index.
func (r *Recorder) NodeFailed(index int) {
	if r == nil {
		return
	}
	r.nodeStartsTotal.WithLabelValues(strconv.Itoa(index), "failure").Inc()
}

// NodeStopped records that a running node was stopped.
func (r *Recorder) NodeStopped(index int, took time.Duration) {
	if r == nil {
		return
	}
	r.nodeStopDuration.WithLabelValues(strconv.Itoa(index)).Observe(took.Seconds())
	r.nodesRunning.Dec()
}

// PhaseCompleted records the duration of a preparation phase.
func (r *Recorder) PhaseCompleted(phase string, took time.Duration) {
	if r == nil {
		return
	}
	r.phaseDuration.WithLabelValues(phase).Observe(took.Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, log logr.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return r.serve(ctx, ln, log)
}

func (r *Recorder) serve(ctx context.Context, ln net.Listener, log logr.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", "address", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
