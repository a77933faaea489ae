// Package parser reads statement text into raw tables and applies a source
// configuration to them, producing normalized rows or per-row errors.
package parser

import (
	"iter"
	"math"
	"slices"
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
)

// DataRows drops the configured preamble and header from one file's table.
func DataRows(table RawTable, cfg model.SourceConfig) RawTable {
	start := cfg.SkipLines
	if cfg.HasHeader {
		start++
	}
	if start >= len(table) {
		return nil
	}
	return table[start:]
}

// Headers returns the trimmed header row of a table, or nil when the source has none.
func Headers(table RawTable, cfg model.SourceConfig) []string {
	if !cfg.HasHeader || cfg.SkipLines >= len(table) {
		return nil
	}
	headers := make([]string, len(table[cfg.SkipLines]))
	for i, h := range table[cfg.SkipLines] {
		headers[i] = strings.TrimSpace(h)
	}
	return headers
}

// Rows yields one ParsedRow per non-blank data row of every table, in order.
// RowIndex counts emitted rows only, so it is dense across all files.
// The sequence can be ranged over any number of times.
func Rows(tables []RawTable, cfg model.SourceConfig) iter.Seq[model.ParsedRow] {
	return func(yield func(model.ParsedRow) bool) {
		index := 0
		for _, table := range tables {
			for _, raw := range DataRows(table, cfg) {
				if isBlankRow(raw) {
					continue
				}
				row := ParseRow(raw, cfg)
				row.RowIndex = index
				index++
				if !yield(row) {
					return
				}
			}
		}
	}
}

// ParseAll collects Rows into a slice.
func ParseAll(tables []RawTable, cfg model.SourceConfig) []model.ParsedRow {
	return slices.Collect(Rows(tables, cfg))
}

// ParseRow applies cfg to a single raw row. RowIndex is left to the caller.
func ParseRow(raw []string, cfg model.SourceConfig) model.ParsedRow {
	row := model.ParsedRow{Raw: raw}

	date := normalizer.ParseDate(cell(raw, cfg.Mapping.Date), cfg.DateFormat)
	description := cell(raw, cfg.Mapping.Description)
	amount := resolveAmount(raw, cfg)

	switch {
	case date == "":
		row.Error = model.RowErrInvalidDate
	case math.IsNaN(amount):
		row.Error = model.RowErrInvalidAmount
	default:
		row.Value = &model.Transaction{
			Date:        date,
			Description: description,
			Amount:      amount,
		}
	}
	return row
}

func resolveAmount(raw []string, cfg model.SourceConfig) float64 {
	m := cfg.Mapping
	if cfg.AmountMode == model.AmountDebitCredit {
		credit := normalizer.ParseAmount(optionalCell(raw, m.CreditAmount))
		if !math.IsNaN(credit) {
			return credit
		}
		debit := normalizer.ParseAmount(optionalCell(raw, m.DebitAmount))
		if !math.IsNaN(debit) {
			return -debit
		}
		return math.NaN()
	}

	amount := normalizer.ParseAmount(optionalCell(raw, m.Amount))
	if cfg.SignConvention == model.PositiveExpense && !math.IsNaN(amount) {
		amount = -amount
	}
	return amount
}

// cell returns the trimmed cell at idx, or "" when the row is too short.
func cell(raw []string, idx int) string {
	if idx < 0 || idx >= len(raw) {
		return ""
	}
	return strings.TrimSpace(raw[idx])
}

func optionalCell(raw []string, idx *int) string {
	if idx == nil {
		return ""
	}
	return cell(raw, *idx)
}

func isBlankRow(raw []string) bool {
	return len(raw) == 0 || (len(raw) == 1 && strings.TrimSpace(raw[0]) == "")
}
