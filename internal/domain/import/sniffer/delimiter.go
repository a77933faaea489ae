package sniffer

import (
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
)

// DetectDelimiter scores each candidate delimiter over sample lines as
// (share of lines with the first line's width) × (first line's width).
// Candidates splitting the first line into one cell are rejected. Ties keep the
// earlier candidate; ok is false when nothing scores above zero.
func DetectDelimiter(lines []string) (delim rune, ok bool) {
	if len(lines) == 0 {
		return 0, false
	}

	bestScore := 0.0
	for _, candidate := range model.Delimiters {
		first := len(parser.SplitLine(lines[0], candidate))
		if first <= 1 {
			continue
		}

		same := 0
		for _, line := range lines {
			if len(parser.SplitLine(line, candidate)) == first {
				same++
			}
		}

		score := float64(same) / float64(len(lines)) * float64(first)
		if score > bestScore {
			bestScore = score
			delim = candidate
		}
	}
	return delim, bestScore > 0
}

// IsHeaderRow reports whether none of the row's non-blank cells parses as a date
// or an amount. A numeric label such as an account number defeats it.
func IsHeaderRow(row []string) bool {
	for _, c := range row {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if normalizer.IsAmount(c) || normalizer.IsDate(c) {
			return false
		}
	}
	return true
}
