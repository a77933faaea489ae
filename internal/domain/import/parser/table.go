package parser

import (
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strings"
)

// RawTable is the cell grid of one file, split on the source delimiter.
type RawTable [][]string

var lineBreak = regexp.MustCompile(`\r?\n`)

// UnwrapQuotedLines reverses the export convention where every line is wrapped in one
// pair of quotes with inner quotes doubled. It only applies when every non-blank line
// starts and ends with a quote and contains `,""`; otherwise text is returned as is.
func UnwrapQuotedLines(text string) string {
	lines := lineBreak.Split(text, -1)

	nonBlank := 0
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		nonBlank++
		if len(t) < 2 || !strings.HasPrefix(t, `"`) || !strings.HasSuffix(t, `"`) || !strings.Contains(t, `,""`) {
			return text
		}
	}
	if nonBlank == 0 {
		return text
	}

	out := make([]string, len(lines))
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		out[i] = strings.ReplaceAll(t[1:len(t)-1], `""`, `"`)
	}
	return strings.Join(out, "\n")
}

// NonBlankLines returns up to limit non-blank lines of text (all when limit <= 0).
func NonBlankLines(text string, limit int) []string {
	var lines []string
	for _, l := range lineBreak.Split(text, -1) {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
		if limit > 0 && len(lines) == limit {
			break
		}
	}
	return lines
}

// SplitLine splits a single line on delim, honouring quoted fields.
func SplitLine(line string, delim rune) []string {
	table := SplitTable(line, delim)
	if len(table) == 0 {
		return []string{""}
	}
	return table[0]
}

// SplitTable splits text into rows of cells. Empty lines are dropped, rows may have
// different widths, and stray quotes are kept literally. A line the CSV reader cannot
// make sense of is split naively on delim instead of failing the file.
func SplitTable(text string, delim rune) RawTable {
	r := newReader(strings.NewReader(text), delim)

	var table RawTable
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return splitNaive(text, delim)
		}
		table = append(table, record)
	}
	return table
}

// ReadTable unwraps quoted lines and splits the result.
func ReadTable(text string, delim rune) RawTable {
	return SplitTable(UnwrapQuotedLines(text), delim)
}

func newReader(r io.Reader, delim rune) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false
	return reader
}

func splitNaive(text string, delim rune) RawTable {
	var table RawTable
	for _, l := range lineBreak.Split(text, -1) {
		if l == "" {
			continue
		}
		table = append(table, strings.Split(l, string(delim)))
	}
	return table
}
