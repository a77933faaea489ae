// Package model holds the types shared by the import pipeline stages.
package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
)

// AmountMode tells whether amounts live in one signed column or in two debit/credit columns.
type AmountMode string

const (
	AmountSingle      AmountMode = "single"
	AmountDebitCredit AmountMode = "debit_credit"
)

// SignConvention describes how expenses are signed in single amount mode.
type SignConvention string

const (
	NegativeExpense SignConvention = "negative_expense"
	PositiveExpense SignConvention = "positive_expense"
)

// Stable per-row error tags.
const (
	RowErrInvalidDate   = "Invalid date"
	RowErrInvalidAmount = "Invalid amount"
)

// Delimiters accepted on a source configuration, in detection order.
var Delimiters = []rune{',', ';', '\t', '|'}

var (
	ErrInvalidDelimiter  = errors.New("invalid delimiter")
	ErrInvalidDateFormat = errors.New("invalid date format")
	ErrInvalidMapping    = errors.New("invalid column mapping")
)

// ColumnMapping holds zero-based column indices. Amount is set in single mode,
// DebitAmount and CreditAmount in debit/credit mode.
type ColumnMapping struct {
	Date         int  `json:"date"`
	Description  int  `json:"description"`
	Amount       *int `json:"amount,omitempty"`
	DebitAmount  *int `json:"debitAmount,omitempty"`
	CreditAmount *int `json:"creditAmount,omitempty"`
}

// SourceConfig is the per-source parsing configuration.
type SourceConfig struct {
	Delimiter      rune
	Encoding       string
	DateFormat     normalizer.DateFormat
	SkipLines      int
	HasHeader      bool
	Mapping        ColumnMapping
	AmountMode     AmountMode
	SignConvention SignConvention
}

// DefaultSourceConfig is used when a source is first seen and detection failed.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		Delimiter:  ';',
		Encoding:   normalizer.EncodingUTF8,
		DateFormat: normalizer.DateDMYSlash,
		HasHeader:  true,
		Mapping: ColumnMapping{
			Date:        0,
			Description: 1,
			Amount:      Index(2),
		},
		AmountMode:     AmountSingle,
		SignConvention: NegativeExpense,
	}
}

// Validate checks the structural invariants of the configuration. Indices beyond a
// row's width are not checked here; they surface as empty cells while parsing.
func (c SourceConfig) Validate() error {
	if !IsDelimiter(c.Delimiter) {
		return fmt.Errorf("%w: %q", ErrInvalidDelimiter, c.Delimiter)
	}
	if !c.DateFormat.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDateFormat, c.DateFormat)
	}
	if c.SkipLines < 0 {
		return fmt.Errorf("%w: negative skip lines", ErrInvalidMapping)
	}

	m := c.Mapping
	indices := []int{m.Date, m.Description}
	switch c.AmountMode {
	case AmountSingle:
		if m.Amount == nil || m.DebitAmount != nil || m.CreditAmount != nil {
			return fmt.Errorf("%w: single mode needs only an amount column", ErrInvalidMapping)
		}
		if c.SignConvention != NegativeExpense && c.SignConvention != PositiveExpense {
			return fmt.Errorf("%w: unknown sign convention %q", ErrInvalidMapping, c.SignConvention)
		}
		indices = append(indices, *m.Amount)
	case AmountDebitCredit:
		if m.Amount != nil || m.DebitAmount == nil || m.CreditAmount == nil {
			return fmt.Errorf("%w: debit/credit mode needs debit and credit columns", ErrInvalidMapping)
		}
		indices = append(indices, *m.DebitAmount, *m.CreditAmount)
	default:
		return fmt.Errorf("%w: unknown amount mode %q", ErrInvalidMapping, c.AmountMode)
	}

	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 {
			return fmt.Errorf("%w: negative column index %d", ErrInvalidMapping, idx)
		}
		if seen[idx] {
			return fmt.Errorf("%w: column %d used twice", ErrInvalidMapping, idx)
		}
		seen[idx] = true
	}
	return nil
}

// IsDelimiter reports whether r is an accepted field separator.
func IsDelimiter(r rune) bool {
	for _, d := range Delimiters {
		if r == d {
			return true
		}
	}
	return false
}

// Index returns a pointer to i, for optional mapping fields.
func Index(i int) *int {
	return &i
}

// Transaction is a normalized row value and the identity used for duplicate checks.
type Transaction struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Key renders the exact-match fingerprint of the transaction.
func (t Transaction) Key() string {
	return t.Date + "|" + t.Description + "|" + decimal.NewFromFloat(t.Amount).String()
}

// ParsedRow is one emitted data row. Exactly one of Value and Error is set.
type ParsedRow struct {
	RowIndex int
	Raw      []string
	Value    *Transaction
	Error    string
}

// OK reports whether the row parsed.
func (r ParsedRow) OK() bool {
	return r.Value != nil
}

// DuplicateMatch flags an input row that collides with a stored transaction, or with an
// earlier row of the same batch when InBatch is set (ExistingID is then uuid.Nil).
type DuplicateMatch struct {
	RowIndex   int
	ExistingID uuid.UUID
	InBatch    bool
	Transaction
}
