// Package sniffer infers the layout of a bank statement export: delimiter,
// preamble, header row, date column and format, and how amounts are laid out.
package sniffer

import (
	"errors"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
)

const (
	// DelimiterSampleLines is how many non-blank lines are scored per delimiter.
	DelimiterSampleLines = 10
	// ColumnCountRows is how many rows are scanned for the table width.
	ColumnCountRows = 10
	// SampleSize is how many data rows feed the column role heuristics.
	SampleSize = 20
)

var (
	ErrEmptyFile      = errors.New("file has fewer than two non-blank lines")
	ErrNoDelimiter    = errors.New("could not detect delimiter")
	ErrTooFewRows     = errors.New("not enough data rows to analyze")
	ErrNoDateColumn   = errors.New("could not detect date column")
	ErrNoAmountColumn = errors.New("could not detect amount column")
)

// Detection is the outcome of AutoDetect: a suggested configuration plus what was
// learned along the way, for display next to the editable configuration.
type Detection struct {
	Config      model.SourceConfig
	Headers     []string
	SampleRows  parser.RawTable
	ColumnCount int
	Roles       *ColumnRoles
}

// AutoDetect suggests a SourceConfig for decoded statement text. Any error means
// the caller must fall back to a manual configuration. Encoding is left empty;
// the caller knows how the bytes were decoded.
func AutoDetect(text string) (*Detection, error) {
	content := parser.UnwrapQuotedLines(text)

	lines := parser.NonBlankLines(content, 0)
	if len(lines) < 2 {
		return nil, ErrEmptyFile
	}

	delim, ok := DetectDelimiter(lines[:min(len(lines), DelimiterSampleLines)])
	if !ok {
		return nil, ErrNoDelimiter
	}

	return DetectTable(parser.SplitTable(content, delim), delim)
}

// DetectTable runs preamble, header and column role detection over rows that are
// already split. delim is only recorded in the returned configuration; workbook
// sheets go through here directly so their cell boundaries are kept.
func DetectTable(table parser.RawTable, delim rune) (*Detection, error) {
	if len(table) < 2 {
		return nil, ErrTooFewRows
	}

	skip := DetectSkipLines(table)
	effective := table[skip:]
	if len(effective) < 2 {
		return nil, ErrTooFewRows
	}

	hasHeader := IsHeaderRow(effective[0])
	start := 0
	if hasHeader {
		start = 1
	}
	sample := effective[start:min(len(effective), start+SampleSize)]
	if len(sample) == 0 {
		return nil, ErrTooFewRows
	}

	colCount := 0
	for _, row := range effective[:min(len(effective), ColumnCountRows)] {
		colCount = max(colCount, len(row))
	}

	roles, err := DetectColumns(sample, colCount)
	if err != nil {
		return nil, err
	}

	cfg := model.SourceConfig{
		Delimiter:      delim,
		DateFormat:     roles.DateFormat,
		SkipLines:      skip,
		HasHeader:      hasHeader,
		Mapping:        roles.Mapping(),
		AmountMode:     roles.AmountMode,
		SignConvention: roles.SignConvention,
	}

	det := &Detection{
		Config:      cfg,
		SampleRows:  sample,
		ColumnCount: colCount,
		Roles:       roles,
	}
	if hasHeader {
		det.Headers = parser.Headers(table, cfg)
	}
	return det, nil
}

// DetectSkipLines counts leading preamble rows. The expected width is the most
// frequent row width above one cell; leading rows narrower than it are skipped.
func DetectSkipLines(table parser.RawTable) int {
	freq := make(map[int]int)
	var order []int
	for _, row := range table {
		if len(row) <= 1 {
			continue
		}
		if freq[len(row)] == 0 {
			order = append(order, len(row))
		}
		freq[len(row)]++
	}

	expected, best := 0, 0
	for _, width := range order {
		if freq[width] > best {
			best = freq[width]
			expected = width
		}
	}

	skip := 0
	for _, row := range table {
		if len(row) >= expected {
			break
		}
		skip++
	}
	return skip
}
