package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/developer-mesh/expense-store/pkg/models"
	"github.com/developer-mesh/expense-store/pkg/observability"
)

const (
	schemaCreatedMessage = "Expenses table created successfully"
	schemaFailedMessage  = "Failed to create expenses table"
)

// Index names created by EnsureSchema
const (
	IndexExpensesDate      = "idx_expenses_date"
	IndexExpensesCategory  = "idx_expenses_category"
	IndexExpensesEmbedding = "idx_expenses_embedding"
)

// ExpenseIndexes lists every index EnsureSchema maintains
var ExpenseIndexes = []string{IndexExpensesDate, IndexExpensesCategory, IndexExpensesEmbedding}

// schemaStatements run in order inside one transaction. Each is a no-op
// when its object already exists.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS expenses (
		id SERIAL PRIMARY KEY,
		date TIMESTAMP NOT NULL,
		category VARCHAR(100) NOT NULL,
		description TEXT NOT NULL,
		amount NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
		payment_method VARCHAR(50) NOT NULL,
		vendor VARCHAR(200) NOT NULL,
		embedding vector(%d),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`, models.EmbeddingDimensions),
	`CREATE INDEX IF NOT EXISTS ` + IndexExpensesDate + ` ON expenses (date DESC)`,
	`CREATE INDEX IF NOT EXISTS ` + IndexExpensesCategory + ` ON expenses (category)`,
	// HNSW build parameters are left at the pgvector defaults
	`CREATE INDEX IF NOT EXISTS ` + IndexExpensesEmbedding + ` ON expenses USING hnsw (embedding vector_cosine_ops)`,
}

// Provisioner creates the expenses table, its indexes and the vector extension
type Provisioner struct {
	connector Connector
	logger    observability.Logger
	metrics   observability.MetricsClient
}

// NewProvisioner creates a schema provisioner
func NewProvisioner(connector Connector, logger observability.Logger, metrics observability.MetricsClient) *Provisioner {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &Provisioner{
		connector: connector,
		logger:    logger.WithPrefix("schema"),
		metrics:   metrics,
	}
}

// EnsureSchema idempotently provisions the expenses schema. Database failures
// are rolled back and reported in the result, never returned as errors.
func (p *Provisioner) EnsureSchema(ctx context.Context, connectionString string) SchemaResult {
	ctx, span := observability.StartSpan(ctx, "schema.ensure")
	defer span.End()

	result := p.ensureSchema(ctx, connectionString)
	logger := observability.LoggerFromContext(ctx, p.logger)

	labels := map[string]string{"status": "success", "kind": "none"}
	if !result.Success() {
		labels["status"] = "failure"
		labels["kind"] = string(result.Failure.Kind)
		observability.AddSpanAttributes(ctx, observability.FailureKindAttributeKey.String(string(result.Failure.Kind)))
		observability.RecordError(ctx, result.Failure)
		logger.Error(schemaFailedMessage, map[string]interface{}{
			"kind":   string(result.Failure.Kind),
			"errors": result.Failure.Errors,
		})
	} else {
		logger.Info(schemaCreatedMessage, nil)
	}
	p.metrics.RecordCounter("schema_provision_total", 1, labels)
	return result
}

func (p *Provisioner) ensureSchema(ctx context.Context, connectionString string) SchemaResult {
	db, err := p.connector.Open(ctx, connectionString)
	if err != nil {
		return SchemaResult{Outcome{Message: schemaFailedMessage, Failure: newFailure(ctx, err)}}
	}
	defer closeDB(db, p.logger)

	err = runInTransaction(ctx, db, p.logger, func(tx *sqlx.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SchemaResult{Outcome{Message: schemaFailedMessage, Failure: newFailure(ctx, err)}}
	}
	return SchemaResult{Outcome{Message: schemaCreatedMessage}}
}
