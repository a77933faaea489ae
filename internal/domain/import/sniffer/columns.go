package sniffer

import (
	"math"
	"slices"
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
)

const (
	minDateRate        = 0.8
	minNumericRate     = 0.5
	balanceTolerance   = 0.015
	minBalancePairs    = 2
	minBalanceRate     = 0.8
	minComplementarity = 0.7
)

// ColumnRoles is what DetectColumns learned about each column of the sample.
type ColumnRoles struct {
	DateColumn     int
	DateFormat     normalizer.DateFormat
	DateLike       []int
	Numeric        []int
	Balance        []int
	Candidates     []int
	Description    int
	AmountMode     model.AmountMode
	Amount         int
	Debit          int
	Credit         int
	SignConvention model.SignConvention
}

// Mapping converts the roles into a ColumnMapping honouring the amount mode.
func (r *ColumnRoles) Mapping() model.ColumnMapping {
	m := model.ColumnMapping{Date: r.DateColumn, Description: r.Description}
	if r.AmountMode == model.AmountDebitCredit {
		m.DebitAmount = model.Index(r.Debit)
		m.CreditAmount = model.Index(r.Credit)
	} else {
		m.Amount = model.Index(r.Amount)
	}
	return m
}

// DetectColumns assigns roles over a sample of data rows of width colCount.
// Only a missing date column is fatal; the description falls back to column 0.
func DetectColumns(rows [][]string, colCount int) (*ColumnRoles, error) {
	dateCol, format, ok := detectDateColumn(rows, colCount)
	if !ok {
		return nil, ErrNoDateColumn
	}

	roles := &ColumnRoles{
		DateColumn: dateCol,
		DateFormat: format,
		DateLike:   dateLikeColumns(rows, colCount),
		Numeric:    numericColumns(rows, colCount),
		Amount:     -1,
		Debit:      -1,
		Credit:     -1,
	}
	roles.Balance = balanceColumns(rows, roles.Numeric)

	for _, c := range roles.Numeric {
		if !slices.Contains(roles.Balance, c) && !slices.Contains(roles.DateLike, c) {
			roles.Candidates = append(roles.Candidates, c)
		}
	}

	excluded := append(slices.Clone(roles.Numeric), roles.DateLike...)
	roles.Description = descriptionColumn(rows, colCount, dateCol, excluded)

	if err := roles.detectAmountMode(rows); err != nil {
		return nil, err
	}
	return roles, nil
}

// detectDateColumn picks the (column, format) pair with the best parse rate.
// Columns are the outer loop and formats the inner one; the first best pair wins.
func detectDateColumn(rows [][]string, colCount int) (int, normalizer.DateFormat, bool) {
	bestCol, bestRate := -1, 0.0
	var bestFormat normalizer.DateFormat

	for col := 0; col < colCount; col++ {
		for _, f := range normalizer.DateFormats {
			rate, ok := dateRate(rows, col, f)
			if ok && rate > bestRate {
				bestCol, bestRate, bestFormat = col, rate, f
			}
		}
	}

	if bestCol < 0 || bestRate < minDateRate {
		return -1, "", false
	}
	return bestCol, bestFormat, true
}

func dateLikeColumns(rows [][]string, colCount int) []int {
	var cols []int
	for col := 0; col < colCount; col++ {
		for _, f := range normalizer.DateFormats {
			if rate, ok := dateRate(rows, col, f); ok && rate >= minDateRate {
				cols = append(cols, col)
				break
			}
		}
	}
	return cols
}

func dateRate(rows [][]string, col int, f normalizer.DateFormat) (float64, bool) {
	success, total := 0, 0
	for _, row := range rows {
		c := cellAt(row, col)
		if c == "" {
			continue
		}
		total++
		if normalizer.ParseDate(c, f) != "" {
			success++
		}
	}
	if total == 0 {
		return 0, false
	}
	return float64(success) / float64(total), true
}

// numericColumns keeps columns where at least half the non-blank cells are amounts,
// dropping near-constant ones (account or transit numbers).
func numericColumns(rows [][]string, colCount int) []int {
	var cols []int
	for col := 0; col < colCount; col++ {
		numeric, nonBlank := 0, 0
		distinct := make(map[float64]struct{})
		for _, row := range rows {
			c := cellAt(row, col)
			if c == "" {
				continue
			}
			nonBlank++
			if v := normalizer.ParseAmount(c); !math.IsNaN(v) {
				numeric++
				distinct[v] = struct{}{}
			}
		}
		if nonBlank == 0 || float64(numeric)/float64(nonBlank) < minNumericRate {
			continue
		}
		if len(distinct) <= 1 && nonBlank > 2 {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

func descriptionColumn(rows [][]string, colCount, dateCol int, excluded []int) int {
	best, bestAvg := 0, 0.0
	for col := 0; col < colCount; col++ {
		if col == dateCol || slices.Contains(excluded, col) {
			continue
		}
		total, count := 0, 0
		for _, row := range rows {
			c := cellAt(row, col)
			if c == "" {
				continue
			}
			total += len([]rune(c))
			count++
		}
		if count == 0 {
			continue
		}
		if avg := float64(total) / float64(count); avg > bestAvg {
			best, bestAvg = col, avg
		}
	}
	return best
}

// detectAmountMode chooses between one signed column and a debit/credit pair.
func (r *ColumnRoles) detectAmountMode(rows [][]string) error {
	candidates := r.Candidates
	if len(candidates) == 0 {
		return ErrNoAmountColumn
	}

	if len(candidates) >= 2 {
		for a := 0; a < len(candidates); a++ {
			for b := a + 1; b < len(candidates); b++ {
				if sparseComplementary(rows, candidates[a], candidates[b]) {
					r.AmountMode = model.AmountDebitCredit
					r.Debit, r.Credit = candidates[a], candidates[b]
					r.SignConvention = model.NegativeExpense
					return nil
				}
			}
		}
	}

	r.AmountMode = model.AmountSingle
	r.Amount = candidates[0]
	r.SignConvention = signConvention(rows, r.Amount)
	return nil
}

// signConvention is negative_expense when most non-zero amounts are negative.
func signConvention(rows [][]string, col int) model.SignConvention {
	negative, total := 0, 0
	for _, row := range rows {
		v := normalizer.ParseAmount(cellAt(row, col))
		if math.IsNaN(v) || v == 0 {
			continue
		}
		total++
		if v < 0 {
			negative++
		}
	}
	if total > 0 && float64(negative)/float64(total) > 0.5 {
		return model.NegativeExpense
	}
	return model.PositiveExpense
}

// sparseComplementary reports whether, among rows where either column holds a
// non-zero amount, at least 70% have exactly one of them populated.
func sparseComplementary(rows [][]string, colA, colB int) bool {
	complementary, total := 0, 0
	for _, row := range rows {
		hasA := nonZero(cellAt(row, colA))
		hasB := nonZero(cellAt(row, colB))
		if !hasA && !hasB {
			continue
		}
		total++
		if hasA != hasB {
			complementary++
		}
	}
	return total > 0 && float64(complementary)/float64(total) >= minComplementarity
}

func nonZero(c string) bool {
	v := normalizer.ParseAmount(c)
	return !math.IsNaN(v) && v != 0
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
