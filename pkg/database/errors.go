package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/lib/pq"
)

// Common errors
var (
	// ErrInvalidArgument marks a caller precondition violation; no I/O has happened
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyBatch is returned by InsertBatch for an empty expense list
	ErrEmptyBatch = fmt.Errorf("%w: expenses list cannot be empty", ErrInvalidArgument)

	// ErrMissingDatabaseURL is returned when neither the call nor the config names a database
	ErrMissingDatabaseURL = errors.New("no connection string given and no database url configured")
)

// ErrorKind classifies a failed provisioning or insert call
type ErrorKind string

const (
	// KindConnection means the connection could not be opened
	KindConnection ErrorKind = "ConnectionError"
	// KindStorage means the database rejected a statement or the session broke
	KindStorage ErrorKind = "StorageError"
	// KindUnexpected covers failures outside the database layer
	KindUnexpected ErrorKind = "UnexpectedError"
)

// ConnectionError is returned when a connection cannot be opened.
// The driver error is kept as-is and available through Unwrap.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("connection failed: %v", e.Err)
	}
	return fmt.Sprintf("connection to %s failed: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// panicError carries a value recovered inside a transaction
type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic during transaction: %v", e.value)
}

// classify maps an error from a provisioning or insert call to its kind
func classify(err error) ErrorKind {
	var connErr *ConnectionError
	switch {
	// Caller cancellation wins over whatever the driver reported for it
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return KindUnexpected
	case errors.As(err, &connErr):
		return KindConnection
	case isDatabaseError(err):
		return KindStorage
	default:
		return KindUnexpected
	}
}

// isDatabaseError reports whether err originated in the database layer:
// server errors, broken or closed sessions and network failures.
func isDatabaseError(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return true
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// interruptedError ties a driver error to the context cancellation behind it.
// lib/pq reports a canceled statement as SQLSTATE 57014 and database/sql
// returns sql.ErrTxDone once it has rolled back a canceled transaction.
type interruptedError struct {
	err   error
	cause error
}

func (e *interruptedError) Error() string {
	return e.err.Error()
}

func (e *interruptedError) Unwrap() []error {
	return []error{e.err, e.cause}
}

// withContextCause attaches ctx.Err() to err when ctx is already done
func withContextCause(ctx context.Context, err error) error {
	cause := ctx.Err()
	if cause == nil || errors.Is(err, cause) {
		return err
	}
	return &interruptedError{err: err, cause: cause}
}
