package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// EmbeddingDimensions is the length of the embedding column. Vector length is
// enforced by the database, not by Validate.
const EmbeddingDimensions = 768

// ErrInvalidExpense is returned when an expense violates a model constraint
var ErrInvalidExpense = errors.New("invalid expense")

// dateLayouts are the accepted textual forms of an expense date, most specific first
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Expense is a single financial expense record.
// Embedding is nil until an embedding producer has filled it in.
type Expense struct {
	Date          time.Time       `json:"date" db:"date" validate:"required"`
	Category      string          `json:"category" db:"category" validate:"required"`
	Description   string          `json:"description" db:"description" validate:"required"`
	Amount        decimal.Decimal `json:"amount" db:"amount" validate:"gt=0"`
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	Vendor        string          `json:"vendor" db:"vendor"`
	Embedding     []float32       `json:"embedding" db:"embedding"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewExpense builds a validated expense. It fails when the amount is not
// strictly positive, the date is zero, or category/description are empty.
func NewExpense(date time.Time, category, description string, amount decimal.Decimal, paymentMethod, vendor string, embedding []float32) (Expense, error) {
	e := Expense{
		Date:          date,
		Category:      category,
		Description:   description,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		Vendor:        vendor,
		Embedding:     embedding,
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// Validate checks the model constraints of an expense
func (e Expense) Validate() error {
	err := validate.Struct(e)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidExpense, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gt":
			msgs = append(msgs, fe.Field()+" must be greater than "+fe.Param())
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidExpense, strings.Join(msgs, "; "))
}

// HasEmbedding reports whether a semantic vector is attached
func (e Expense) HasEmbedding() bool {
	return e.Embedding != nil
}

// ParseDate parses an expense date in any of the accepted layouts.
// Dates without a zone are taken as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

type expenseJSON struct {
	Date          string      `json:"date"`
	Category      string      `json:"category"`
	Description   string      `json:"description"`
	Amount        json.Number `json:"amount"`
	PaymentMethod string      `json:"payment_method"`
	Vendor        string      `json:"vendor"`
	Embedding     []float32   `json:"embedding"`
}

// MarshalJSON writes the date without a zone suffix when it is UTC and the
// amount as a JSON number.
func (e Expense) MarshalJSON() ([]byte, error) {
	date := e.Date.Format(time.RFC3339Nano)
	if e.Date.Location() == time.UTC {
		date = e.Date.Format("2006-01-02T15:04:05")
	}
	return json.Marshal(expenseJSON{
		Date:          date,
		Category:      e.Category,
		Description:   e.Description,
		Amount:        json.Number(e.Amount.String()),
		PaymentMethod: e.PaymentMethod,
		Vendor:        e.Vendor,
		Embedding:     e.Embedding,
	})
}

// UnmarshalJSON decodes an expense. Constraints are not checked here; call
// Validate on the result.
func (e *Expense) UnmarshalJSON(data []byte) error {
	var raw struct {
		expenseJSON
		Amount json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Expense
	if raw.Date != "" {
		d, err := ParseDate(raw.Date)
		if err != nil {
			return err
		}
		out.Date = d
	}
	if len(raw.Amount) > 0 && string(raw.Amount) != "null" {
		if err := out.Amount.UnmarshalJSON(raw.Amount); err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
	}
	out.Category = raw.Category
	out.Description = raw.Description
	out.PaymentMethod = raw.PaymentMethod
	out.Vendor = raw.Vendor
	if len(raw.Embedding) > 0 {
		out.Embedding = raw.Embedding
	}

	*e = out
	return nil
}
