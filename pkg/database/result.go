package database

import (
	"context"
	"encoding/json"
	"strings"
)

// Failure describes why a provisioning or insert call did not succeed
type Failure struct {
	Kind   ErrorKind
	Errors []string
	Err    error
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + strings.Join(f.Errors, "; ")
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// newFailure classifies err and renders its single error entry. Errors raised
// after ctx is done count as caller cancellation.
func newFailure(ctx context.Context, err error) *Failure {
	err = withContextCause(ctx, err)
	kind := classify(err)
	prefix := "Database error: "
	if kind == KindUnexpected {
		prefix = "Unexpected error: "
	}
	return &Failure{
		Kind:   kind,
		Errors: []string{prefix + err.Error()},
		Err:    err,
	}
}

// Outcome is the common part of every result. Failure is nil on success.
type Outcome struct {
	Message string
	Failure *Failure
}

// Success reports whether the operation completed
func (o Outcome) Success() bool {
	return o.Failure == nil
}

// Errors returns the error entries of a failed outcome
func (o Outcome) Errors() []string {
	if o.Failure == nil {
		return nil
	}
	return o.Failure.Errors
}

type outcomeJSON struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	Errors       []string `json:"errors,omitempty"`
	RowsInserted *int     `json:"rows_inserted,omitempty"`
}

// SchemaResult is returned by EnsureSchema
type SchemaResult struct {
	Outcome
}

// MarshalJSON renders {success, message, errors?}
func (r SchemaResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(outcomeJSON{
		Success: r.Success(),
		Message: r.Message,
		Errors:  r.Errors(),
	})
}

// InsertResult is returned by InsertBatch
type InsertResult struct {
	Outcome
	RowsInserted int
}

// MarshalJSON renders {success, message, errors?, rows_inserted}
func (r InsertResult) MarshalJSON() ([]byte, error) {
	rows := r.RowsInserted
	return json.Marshal(outcomeJSON{
		Success:      r.Success(),
		Message:      r.Message,
		Errors:       r.Errors(),
		RowsInserted: &rows,
	})
}
