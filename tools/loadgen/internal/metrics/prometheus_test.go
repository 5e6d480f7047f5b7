package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Record(t *testing.T) {
	c := NewCollector()
	c.Record("warranty_card", 202, true, 100*time.Millisecond, 512)
	c.Record("warranty_card", 429, false, 300*time.Millisecond, 0)
	c.Record("get_job", 200, true, 10*time.Millisecond, 64)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("warranty_card", "202", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("warranty_card", "429", "false")))
	assert.Equal(t, 512.0, testutil.ToFloat64(c.responseBytes.WithLabelValues("warranty_card")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))

	summary := c.Summary()
	card := summary["warranty_card"]
	assert.Equal(t, int64(2), card.Requests)
	assert.Equal(t, int64(1), card.Failures)
	assert.Equal(t, 300*time.Millisecond, card.MaxLatency)
	assert.Equal(t, 200*time.Millisecond, card.AvgLatency())
	assert.Equal(t, time.Duration(0), EndpointSummary{}.AvgLatency())
}

func TestCollector_Gauges(t *testing.T) {
	c := NewCollector()
	done := c.WorkerBusy()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeWorkers))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(c.activeWorkers))

	c.SetPooledJobs(12)
	assert.Equal(t, 12.0, testutil.ToFloat64(c.pooledJobs))
}

func TestCollector_Serve(t *testing.T) {
	c := NewCollector()
	c.Record("preview", 200, true, time.Millisecond, 1)

	srv, err := c.Serve("127.0.0.1:0", "/metrics")
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), MetricRequestsTotal))
}
