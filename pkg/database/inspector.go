package database

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/developer-mesh/expense-store/pkg/observability"
)

// SchemaStatus reports which parts of the expenses schema exist
type SchemaStatus struct {
	ExtensionInstalled bool            `json:"extension_installed"`
	TableExists        bool            `json:"table_exists"`
	Indexes            map[string]bool `json:"indexes"`
}

// Ready reports whether the extension, the table and every index exist
func (s SchemaStatus) Ready() bool {
	if !s.ExtensionInstalled || !s.TableExists {
		return false
	}
	for _, name := range ExpenseIndexes {
		if !s.Indexes[name] {
			return false
		}
	}
	return true
}

// SchemaInspector checks the catalog for the objects EnsureSchema creates
type SchemaInspector struct {
	connector Connector
	logger    observability.Logger
}

// NewSchemaInspector creates a new schema inspector
func NewSchemaInspector(connector Connector, logger observability.Logger) *SchemaInspector {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &SchemaInspector{
		connector: connector,
		logger:    logger.WithPrefix("inspector"),
	}
}

// Inspect queries the catalog. It only reads and never changes the schema.
func (i *SchemaInspector) Inspect(ctx context.Context, connectionString string) (SchemaStatus, error) {
	status := SchemaStatus{Indexes: make(map[string]bool, len(ExpenseIndexes))}
	for _, name := range ExpenseIndexes {
		status.Indexes[name] = false
	}

	db, err := i.connector.Open(ctx, connectionString)
	if err != nil {
		return status, err
	}
	defer closeDB(db, i.logger)

	err = db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`,
	).Scan(&status.ExtensionInstalled)
	if err != nil {
		return status, fmt.Errorf("failed to check vector extension: %w", err)
	}

	err = db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema()
			AND table_name = 'expenses'
		)`,
	).Scan(&status.TableExists)
	if err != nil {
		return status, fmt.Errorf("failed to check expenses table: %w", err)
	}

	var found []string
	err = db.SelectContext(ctx, &found, `
		SELECT indexname FROM pg_indexes
		WHERE schemaname = current_schema()
		AND tablename = $1
		AND indexname = ANY($2)`,
		"expenses", pq.Array(ExpenseIndexes),
	)
	if err != nil {
		return status, fmt.Errorf("failed to check expenses indexes: %w", err)
	}
	for _, name := range found {
		status.Indexes[name] = true
	}

	i.logger.Debug("Inspected expenses schema", map[string]interface{}{
		"ready": status.Ready(),
	})
	return status, nil
}
