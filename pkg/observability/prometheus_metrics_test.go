package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetricsClient_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	client := NewPrometheusMetricsClient("expenses", reg)

	client.RecordCounter("batches_total", 1, map[string]string{"status": "success"})
	client.RecordCounter("batches_total", 2, map[string]string{"status": "success"})
	client.RecordCounter("batches_total", 1, map[string]string{"status": "failure"})
	client.IncrementCounter("schema_runs_total", 1)

	assert.Equal(t, 3.0, testutil.ToFloat64(client.counters["batches_total"].WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(client.counters["batches_total"].WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(client.counters["schema_runs_total"].WithLabelValues()))
}

func TestPrometheusMetricsClient_Timer(t *testing.T) {
	reg := prometheus.NewRegistry()
	client := NewPrometheusMetricsClient("expenses", reg)

	stop := client.StartTimer("insert_duration_seconds", map[string]string{"operation": "insert"})
	stop()
	client.RecordDuration("insert_duration_seconds", 10*time.Millisecond, map[string]string{"operation": "insert"})

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "expenses_insert_duration_seconds", families[0].GetName())
	assert.Equal(t, uint64(2), families[0].GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestNoopMetricsClient(t *testing.T) {
	client := NewNoopMetricsClient()
	assert.NotPanics(t, func() {
		client.IncrementCounter("x", 1)
		client.StartTimer("y", nil)()
	})
}
