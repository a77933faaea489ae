// Package normalizer turns raw statement cells into canonical values.
// Amounts follow a French/English dual convention, dates are emitted as YYYY-MM-DD.
package normalizer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Currency symbols and any whitespace, including non-breaking and narrow no-break spaces.
	amountNoise = regexp.MustCompile(`[€$£\s\x{00A0}\x{202F}]`)

	// A trailing comma with 1 or 2 digits marks the comma as decimal separator.
	commaDecimal = regexp.MustCompile(`,\d{1,2}$`)

	plainNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// ParseAmount parses a locale-ambiguous amount ("1 234,56", "-1.234,56", "1,234.56").
// It returns NaN when the cell does not hold a number.
func ParseAmount(raw string) float64 {
	cleaned := amountNoise.ReplaceAllString(raw, "")
	if cleaned == "" {
		return math.NaN()
	}

	if commaDecimal.MatchString(cleaned) {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	if !plainNumber.MatchString(cleaned) {
		return math.NaN()
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// IsAmount reports whether raw parses as an amount.
func IsAmount(raw string) bool {
	return !math.IsNaN(ParseAmount(raw))
}
