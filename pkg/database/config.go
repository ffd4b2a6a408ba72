// Package database provides connection handling, schema provisioning and
// batch insertion for the expenses table.
package database

// Config defines what the database package needs - no external imports!
type Config struct {
	// Driver is the database/sql driver name
	Driver string
	// DatabaseURL is used whenever a call does not pass its own connection string
	DatabaseURL string
	// InsertPageSize caps the rows sent in one INSERT statement
	InsertPageSize int
}

// DefaultInsertPageSize is the number of rows per INSERT unless configured
const DefaultInsertPageSize = 100

// maxInsertPageSize keeps a page under PostgreSQL's 65535 bind parameter limit
const maxInsertPageSize = 65535 / insertColumnCount

// NewConfig creates config with sensible defaults
func NewConfig(databaseURL string) Config {
	return Config{
		Driver:         "postgres",
		DatabaseURL:    databaseURL,
		InsertPageSize: DefaultInsertPageSize,
	}
}

func (c Config) driver() string {
	if c.Driver == "" {
		return "postgres"
	}
	return c.Driver
}

func (c Config) pageSize() int {
	switch {
	case c.InsertPageSize <= 0:
		return DefaultInsertPageSize
	case c.InsertPageSize > maxInsertPageSize:
		return maxInsertPageSize
	default:
		return c.InsertPageSize
	}
}
