// Package ingest reads expense batches from CSV and JSON files.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/developer-mesh/expense-store/pkg/models"
)

// ErrUnsupportedFormat is returned by LoadFile for unknown file extensions
var ErrUnsupportedFormat = errors.New("unsupported file format")

// requiredColumns must appear in a CSV header, in any order
var requiredColumns = []string{"date", "category", "description", "amount", "payment_method", "vendor"}

// RecordError reports a record that could not be turned into an expense.
// Record numbers start at 1 and do not count the CSV header.
type RecordError struct {
	Record int
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Record, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// LoadFile reads path as CSV or JSON depending on its extension
func LoadFile(path string, r io.Reader) ([]models.Expense, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(r)
	case ".json":
		return LoadJSON(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadCSV reads expenses from CSV with a header row. An optional embedding
// column holds a JSON array of floats; an empty cell means no embedding.
func LoadCSV(r io.Reader) ([]models.Expense, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv input is empty")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("csv header is missing column %q", name)
		}
	}

	var expenses []models.Expense
	for record := 1; ; record++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &RecordError{Record: record, Err: err}
		}

		e, err := parseRow(row, columns)
		if err != nil {
			return nil, &RecordError{Record: record, Err: err}
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

func parseRow(row []string, columns map[string]int) (models.Expense, error) {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	date, err := models.ParseDate(field("date"))
	if err != nil {
		return models.Expense{}, err
	}

	amount, err := decimal.NewFromString(field("amount"))
	if err != nil {
		return models.Expense{}, fmt.Errorf("invalid amount %q", field("amount"))
	}

	var embedding []float32
	if raw := field("embedding"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &embedding); err != nil {
			return models.Expense{}, fmt.Errorf("invalid embedding: %w", err)
		}
		if len(embedding) == 0 {
			embedding = nil
		}
	}

	return models.NewExpense(date, field("category"), field("description"), amount,
		field("payment_method"), field("vendor"), embedding)
}

// LoadJSON reads a JSON array of expense objects
func LoadJSON(r io.Reader) ([]models.Expense, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	expenses := make([]models.Expense, 0, len(raw))
	for i, item := range raw {
		var e models.Expense
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, &RecordError{Record: i + 1, Err: err}
		}
		if err := e.Validate(); err != nil {
			return nil, &RecordError{Record: i + 1, Err: err}
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}
