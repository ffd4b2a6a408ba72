package database

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/developer-mesh/expense-store/pkg/observability"

	// Import PostgreSQL driver
	_ "github.com/lib/pq"
)

// sanitizeDSN removes sensitive information from a DSN for safe logging
func sanitizeDSN(dsn string) string {
	// Handle PostgreSQL key=value format
	if strings.Contains(dsn, "password=") {
		parts := strings.Split(dsn, " ")
		sanitized := make([]string, 0, len(parts))
		for _, part := range parts {
			if strings.HasPrefix(part, "password=") {
				sanitized = append(sanitized, "password=***")
			} else {
				sanitized = append(sanitized, part)
			}
		}
		return strings.Join(sanitized, " ")
	}
	// Handle URL format, masking everything between :// and the last @
	if idx := strings.Index(dsn, "://"); idx != -1 {
		if atIdx := strings.LastIndex(dsn, "@"); atIdx > idx {
			return dsn[:idx+3] + "***:***" + dsn[atIdx:]
		}
	}
	return dsn
}

// closeDB releases a connection handle, logging rather than returning failures
func closeDB(db *sqlx.DB, logger observability.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("Failed to close database connection", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// runInTransaction executes fn inside a transaction. The transaction is
// committed when fn returns nil and rolled back otherwise. A panic inside fn
// is recovered, the transaction rolled back and the panic returned as an error.
func runInTransaction(ctx context.Context, db *sqlx.DB, logger observability.Logger, fn func(*sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("Failed to rollback transaction after panic", map[string]interface{}{
					"error": rbErr.Error(),
					"panic": r,
				})
			}
			err = &panicError{value: r}
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("Failed to rollback transaction", map[string]interface{}{
				"error":          rbErr.Error(),
				"original_error": err.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}
