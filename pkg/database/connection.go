package database

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/developer-mesh/expense-store/pkg/observability"
)

// Connector opens a short-lived database connection. The caller owns the
// returned handle and must close it.
type Connector interface {
	Open(ctx context.Context, connectionString string) (*sqlx.DB, error)
}

// Provider opens one connection per call, capped at a single physical
// connection. It never pools across calls or retries.
type Provider struct {
	config Config
	logger observability.Logger
}

// NewProvider creates a provider. The configured DatabaseURL is used when a
// call passes an empty connection string.
func NewProvider(cfg Config, logger observability.Logger) *Provider {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Provider{
		config: cfg,
		logger: logger.WithPrefix("database"),
	}
}

// Open resolves the connection target, connects and pings. Failures are
// returned as *ConnectionError wrapping the driver error.
func (p *Provider) Open(ctx context.Context, connectionString string) (*sqlx.DB, error) {
	dsn := strings.TrimSpace(connectionString)
	if dsn == "" {
		dsn = p.config.DatabaseURL
	}
	if dsn == "" {
		return nil, &ConnectionError{Err: ErrMissingDatabaseURL}
	}

	target := sanitizeDSN(dsn)
	db, err := sqlx.ConnectContext(ctx, p.config.driver(), dsn)
	if err != nil {
		p.logger.Error("Failed to connect to database", map[string]interface{}{
			"target": target,
			"error":  err.Error(),
		})
		return nil, &ConnectionError{Target: target, Err: err}
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	p.logger.Debug("Opened database connection", map[string]interface{}{
		"target": target,
	})
	return db, nil
}
