package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
)

// PreviewRow is the flat CSV shape of a parsed row.
type PreviewRow struct {
	RowIndex    int    `csv:"row"`
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Error       string `csv:"error"`
	Raw         string `csv:"raw"`
}

// WritePreview writes rows as CSV with a header line, separating fields with delim.
func WritePreview(w io.Writer, rows []model.ParsedRow, delim rune) error {
	out := make([]*PreviewRow, 0, len(rows))
	for _, r := range rows {
		p := &PreviewRow{
			RowIndex: r.RowIndex,
			Error:    r.Error,
			Raw:      strings.Join(r.Raw, string(delim)),
		}
		if r.Value != nil {
			p.Date = r.Value.Date
			p.Description = r.Value.Description
			p.Amount = strconv.FormatFloat(r.Value.Amount, 'f', -1, 64)
		}
		out = append(out, p)
	}

	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := gocsv.MarshalCSV(out, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	return nil
}
