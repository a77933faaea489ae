package sniffer

import (
	"math"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
)

// balanceColumns finds running-balance columns among the numeric ones. A column B
// is a balance when consecutive differences track another column
// (B[i]-B[i-1] ≈ ±A[i]) or the netting of two others (≈ C[i]-A[i] or A[i]-C[i]).
func balanceColumns(rows [][]string, numeric []int) []int {
	if len(numeric) < 2 || len(rows) < 3 {
		return nil
	}

	values := make(map[int][]*float64, len(numeric))
	for _, col := range numeric {
		vals := make([]*float64, len(rows))
		for i, row := range rows {
			if v := normalizer.ParseAmount(cellAt(row, col)); !math.IsNaN(v) {
				vals[i] = &v
			}
		}
		values[col] = vals
	}

	var balance []int
	for _, b := range numeric {
		if tracksSingle(values, b, numeric) || tracksPair(values, b, numeric) {
			balance = append(balance, b)
		}
	}
	return balance
}

func tracksSingle(values map[int][]*float64, b int, numeric []int) bool {
	bal := values[b]
	for _, a := range numeric {
		if a == b {
			continue
		}
		amt := values[a]

		matches, tested := 0, 0
		for i := 1; i < len(bal); i++ {
			if bal[i] == nil || bal[i-1] == nil || amt[i] == nil {
				continue
			}
			tested++
			diff := *bal[i] - *bal[i-1]
			if near(diff, *amt[i]) || near(diff, -*amt[i]) {
				matches++
			}
		}
		if balanceConfirmed(matches, tested) {
			return true
		}
	}
	return false
}

// tracksPair treats a missing debit or credit cell as zero.
func tracksPair(values map[int][]*float64, b int, numeric []int) bool {
	bal := values[b]
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			a, c := numeric[i], numeric[j]
			if a == b || c == b {
				continue
			}

			matches, tested := 0, 0
			for k := 1; k < len(bal); k++ {
				if bal[k] == nil || bal[k-1] == nil {
					continue
				}
				tested++
				diff := *bal[k] - *bal[k-1]
				va, vc := orZero(values[a][k]), orZero(values[c][k])
				if near(diff, vc-va) || near(diff, va-vc) {
					matches++
				}
			}
			if balanceConfirmed(matches, tested) {
				return true
			}
		}
	}
	return false
}

func balanceConfirmed(matches, tested int) bool {
	return tested >= minBalancePairs && float64(matches)/float64(tested) >= minBalanceRate
}

func near(a, b float64) bool {
	return math.Abs(a-b) < balanceTolerance
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
