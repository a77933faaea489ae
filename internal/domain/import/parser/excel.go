package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrNoSheet = errors.New("workbook has no sheet")

// Sheet names tried before falling back to the first sheet.
var preferredSheets = []string{
	"transactions", "operations", "opérations", "mouvements", "releve", "relevé",
	"statement", "data", "sheet1", "feuil1",
}

// ReadWorkbook loads the transaction sheet of an XLSX statement as a RawTable, so it
// goes through the same detection and parsing as delimited text.
func ReadWorkbook(r io.Reader) (RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := findTransactionSheet(f.GetSheetList())
	if sheet == "" {
		return nil, ErrNoSheet
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	table := make(RawTable, 0, len(rows))
	for _, row := range rows {
		// excelize returns nil for fully empty rows; the text reader drops those too
		if len(row) == 0 {
			continue
		}
		table = append(table, row)
	}
	return table, nil
}

func findTransactionSheet(sheets []string) string {
	if len(sheets) == 0 {
		return ""
	}
	for _, preferred := range preferredSheets {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, preferred) {
				return sheet
			}
		}
	}
	return sheets[0]
}
