package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeMetrics(t *testing.T) {
	t.Parallel()
	r := NewRecorder()

	r.NodeStarted(0, 2*time.Second)
	r.NodeStarted(1, time.Second)
	r.NodeFailed(2)

	counter, err := r.nodeStartsTotal.GetMetricWithLabelValues("0", "success")
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))

	failures, err := r.nodeStartsTotal.GetMetricWithLabelValues("2", "failure")
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(failures))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.nodesRunning))

	r.NodeStopped(1, 100*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(r.nodesRunning))
	assert.Equal(t, 1, testutil.CollectAndCount(r.nodeStopDuration))
}

func TestPhaseCompleted(t *testing.T) {
	t.Parallel()
	r := NewRecorder()
	r.PhaseCompleted("pki", 300*time.Millisecond)
	r.PhaseCompleted("kubeconfig", 10*time.Millisecond)
	assert.Equal(t, 2, testutil.CollectAndCount(r.phaseDuration))
}

func TestNilRecorder(t *testing.T) {
	t.Parallel()
	var r *Recorder
	assert.NotPanics(t, func() {
		r.NodeStarted(0, time.Second)
		r.NodeFailed(0)
		r.NodeStopped(0, time.Second)
		r.PhaseCompleted("lock", time.Second)
	})
}

func TestServe(t *testing.T) {
	t.Parallel()
	r := NewRecorder()
	r.NodeStarted(0, time.Second)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.serve(ctx, ln, logr.Discard()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "kubernix_cluster_nodes_running 1")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
