package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/developer-mesh/expense-store/pkg/models"
	"github.com/developer-mesh/expense-store/pkg/observability"
)

// newMockProvider returns a Provider whose connections all resolve to one
// sqlmock connection, so expectations set on mock cover every Open.
func newMockProvider(t *testing.T) (*Provider, sqlmock.Sqlmock) {
	t.Helper()

	dsn := "sqlmock_" + uuid.New().String()
	db, mock, err := sqlmock.NewWithDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	cfg := Config{Driver: "sqlmock", DatabaseURL: dsn, InsertPageSize: DefaultInsertPageSize}
	return NewProvider(cfg, observability.NewNoopLogger()), mock
}

// countingConnector records how many connections were requested
type countingConnector struct {
	mu    sync.Mutex
	next  Connector
	calls int
}

func (c *countingConnector) Open(ctx context.Context, connectionString string) (*sqlx.DB, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.next.Open(ctx, connectionString)
}

func (c *countingConnector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// recordingMetrics keeps counter totals by metric name
type recordingMetrics struct {
	observability.NoopMetricsClient
	mu       sync.Mutex
	counters map[string]float64
	labels   map[string]map[string]string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		counters: make(map[string]float64),
		labels:   make(map[string]map[string]string),
	}
}

func (m *recordingMetrics) RecordCounter(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
	m.labels[name] = labels
}

func (m *recordingMetrics) IncrementCounter(name string, value float64) {
	m.RecordCounter(name, value, nil)
}

func lunchExpense(t *testing.T) models.Expense {
	t.Helper()

	e, err := models.NewExpense(
		time.Date(2025, 10, 2, 10, 30, 0, 0, time.UTC),
		"food",
		"Lunch at a local restaurant",
		decimal.RequireFromString("25.50"),
		"credit card",
		"The Bistro",
		nil,
	)
	require.NoError(t, err)
	return e
}

func sampleExpenses(t *testing.T, n int) []models.Expense {
	t.Helper()

	out := make([]models.Expense, 0, n)
	for i := 0; i < n; i++ {
		e := lunchExpense(t)
		e.Date = e.Date.AddDate(0, 0, i)
		e.Amount = decimal.NewFromInt(int64(10 + i))
		out = append(out, e)
	}
	return out
}

// recordSpans routes observability spans to an in-memory recorder for one test
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	observability.SetTracer(provider.Tracer("test"))
	t.Cleanup(func() {
		observability.SetTracer(nil)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}
