package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/developer-mesh/expense-store/pkg/models"
	"github.com/developer-mesh/expense-store/pkg/observability"
)

const (
	insertFailedMessage = "Failed to insert expenses"

	insertColumns     = "date, category, description, amount, payment_method, vendor, embedding"
	insertColumnCount = 7
)

// BatchWriter inserts expense batches atomically
type BatchWriter struct {
	connector Connector
	pageSize  int
	logger    observability.Logger
	metrics   observability.MetricsClient
}

// NewBatchWriter creates a writer sending at most pageSize rows per INSERT.
// A non-positive pageSize selects DefaultInsertPageSize.
func NewBatchWriter(connector Connector, pageSize int, logger observability.Logger, metrics observability.MetricsClient) *BatchWriter {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &BatchWriter{
		connector: connector,
		pageSize:  Config{InsertPageSize: pageSize}.pageSize(),
		logger:    logger.WithPrefix("writer"),
		metrics:   metrics,
	}
}

// InsertBatch inserts all expenses in one transaction, in input order.
// An empty batch returns ErrEmptyBatch without touching the database. Any
// failure after that rolls the whole batch back and is reported in the result.
func (w *BatchWriter) InsertBatch(ctx context.Context, expenses []models.Expense, connectionString string) (InsertResult, error) {
	if len(expenses) == 0 {
		return InsertResult{}, ErrEmptyBatch
	}

	batchID := uuid.New().String()
	ctx, span := observability.StartSpan(ctx, "expenses.insert_batch",
		observability.BatchIDAttributeKey.String(batchID),
		observability.RowsAttributeKey.Int(len(expenses)),
	)
	defer span.End()

	logger := observability.LoggerFromContext(ctx, w.logger).With(map[string]interface{}{
		"batch_id": batchID,
		"rows":     len(expenses),
	})

	stop := w.metrics.StartTimer("insert_batch_duration_seconds", nil)
	defer stop()

	err := w.insert(ctx, expenses, connectionString, logger)
	if err != nil {
		failure := newFailure(ctx, err)
		observability.AddSpanAttributes(ctx, observability.FailureKindAttributeKey.String(string(failure.Kind)))
		observability.RecordError(ctx, failure)
		logger.Error(insertFailedMessage, map[string]interface{}{
			"kind":   string(failure.Kind),
			"errors": failure.Errors,
		})
		w.metrics.RecordCounter("expense_batches_total", 1, map[string]string{
			"status": "failure",
			"kind":   string(failure.Kind),
		})
		return InsertResult{Outcome: Outcome{Message: insertFailedMessage, Failure: failure}}, nil
	}

	message := fmt.Sprintf("Successfully inserted %d expense(s)", len(expenses))
	logger.Info(message, nil)
	w.metrics.RecordCounter("expense_batches_total", 1, map[string]string{
		"status": "success",
		"kind":   "none",
	})
	w.metrics.IncrementCounter("expense_rows_inserted_total", float64(len(expenses)))
	return InsertResult{Outcome: Outcome{Message: message}, RowsInserted: len(expenses)}, nil
}

func (w *BatchWriter) insert(ctx context.Context, expenses []models.Expense, connectionString string, logger observability.Logger) error {
	db, err := w.connector.Open(ctx, connectionString)
	if err != nil {
		return err
	}
	defer closeDB(db, logger)

	return runInTransaction(ctx, db, logger, func(tx *sqlx.Tx) error {
		for start := 0; start < len(expenses); start += w.pageSize {
			end := start + w.pageSize
			if end > len(expenses) {
				end = len(expenses)
			}
			if err := insertPage(ctx, tx, expenses[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

// insertPage prepares and executes one multi-row INSERT for page
func insertPage(ctx context.Context, tx *sqlx.Tx, page []models.Expense) error {
	stmt, err := tx.PreparexContext(ctx, buildInsertQuery(len(page)))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]interface{}, 0, len(page)*insertColumnCount)
	for _, e := range page {
		args = append(args, expenseArgs(e)...)
	}

	_, err = stmt.ExecContext(ctx, args...)
	return err
}

// buildInsertQuery returns an INSERT with one placeholder group per row
func buildInsertQuery(rows int) string {
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", insertColumnCount), ", ") + ")"
	groups := make([]string, rows)
	for i := range groups {
		groups[i] = group
	}
	query := "INSERT INTO expenses (" + insertColumns + ") VALUES " + strings.Join(groups, ", ")
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

// expenseArgs returns the bind values of one row. A missing embedding is
// stored as NULL.
func expenseArgs(e models.Expense) []interface{} {
	var embedding interface{}
	if e.HasEmbedding() {
		embedding = pgvector.NewVector(e.Embedding)
	}
	return []interface{}{
		e.Date,
		e.Category,
		e.Description,
		e.Amount,
		e.PaymentMethod,
		e.Vendor,
		embedding,
	}
}
