package database

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"

	"github.com/developer-mesh/expense-store/pkg/observability"
)

func TestSchemaStatements_AreIdempotent(t *testing.T) {
	require.Len(t, schemaStatements, 5)
	for _, stmt := range schemaStatements {
		assert.Contains(t, stmt, "IF NOT EXISTS", stmt)
	}

	table := schemaStatements[1]
	assert.Contains(t, table, "embedding vector(768)")
	assert.Contains(t, table, "CHECK (amount > 0)")
	assert.Contains(t, table, "created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
	assert.True(t, strings.HasSuffix(schemaStatements[4], "USING hnsw (embedding vector_cosine_ops)"))
}

func TestProvisioner_EnsureSchema(t *testing.T) {
	provider, mock := newMockProvider(t)
	metrics := newRecordingMetrics()

	mock.ExpectBegin()
	for _, stmt := range schemaStatements {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()
	mock.ExpectClose()

	p := NewProvisioner(provider, observability.NewNoopLogger(), metrics)
	result := p.EnsureSchema(context.Background(), "")

	assert.True(t, result.Success())
	assert.Equal(t, "Expenses table created successfully", result.Message)
	assert.Empty(t, result.Errors())
	assert.Equal(t, float64(1), metrics.counters["schema_provision_total"])
	assert.Equal(t, "success", metrics.labels["schema_provision_total"]["status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_EnsureSchemaRollsBackOnDatabaseError(t *testing.T) {
	provider, mock := newMockProvider(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(schemaStatements[0])).
		WillReturnError(&pq.Error{Code: "42501", Message: "permission denied to create extension \"vector\""})
	mock.ExpectRollback()
	mock.ExpectClose()

	p := NewProvisioner(provider, nil, nil)
	result := p.EnsureSchema(context.Background(), "")

	assert.False(t, result.Success())
	assert.Equal(t, "Failed to create expenses table", result.Message)
	require.NotNil(t, result.Failure)
	assert.Equal(t, KindStorage, result.Failure.Kind)
	assert.Equal(t, []string{`Database error: pq: permission denied to create extension "vector"`}, result.Errors())

	var pqErr *pq.Error
	assert.True(t, errors.As(result.Failure, &pqErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_EnsureSchemaConnectionFailure(t *testing.T) {
	provider := NewProvider(Config{Driver: "sqlmock", DatabaseURL: "sqlmock_not_registered"}, nil)

	result := NewProvisioner(provider, nil, nil).EnsureSchema(context.Background(), "")

	assert.False(t, result.Success())
	assert.Equal(t, "Failed to create expenses table", result.Message)
	assert.Equal(t, KindConnection, result.Failure.Kind)
	require.Len(t, result.Errors(), 1)
	assert.True(t, strings.HasPrefix(result.Errors()[0], "Database error: "))
}

func TestProvisioner_EnsureSchemaCommitFailure(t *testing.T) {
	provider, mock := newMockProvider(t)

	mock.ExpectBegin()
	for _, stmt := range schemaStatements {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
	mock.ExpectClose()

	result := NewProvisioner(provider, nil, nil).EnsureSchema(context.Background(), "")

	assert.False(t, result.Success())
	assert.Equal(t, KindStorage, result.Failure.Kind)
	assert.Contains(t, result.Errors()[0], "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_EnsureSchemaSpan(t *testing.T) {
	recorder := recordSpans(t)
	provider := NewProvider(Config{Driver: "sqlmock", DatabaseURL: "sqlmock_not_registered"}, nil)

	result := NewProvisioner(provider, nil, nil).EnsureSchema(observability.WithOperation(context.Background(), "init"), "")
	require.False(t, result.Success())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "schema.ensure", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := spanAttributes(spans[0])
	assert.Equal(t, string(KindConnection), attrs[observability.FailureKindAttributeKey].AsString())
	assert.Equal(t, "init", attrs[observability.OperationAttributeKey].AsString())
}
