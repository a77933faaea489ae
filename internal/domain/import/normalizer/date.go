package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var dateSeparators = regexp.MustCompile(`[/.-]`)

// DateFormat is a field-order tag such as "DD/MM/YYYY".
type DateFormat string

const (
	DateDMYSlash DateFormat = "DD/MM/YYYY"
	DateMDYSlash DateFormat = "MM/DD/YYYY"
	DateYMDDash  DateFormat = "YYYY-MM-DD"
	DateYMDSlash DateFormat = "YYYY/MM/DD"
	DateDMYDash  DateFormat = "DD-MM-YYYY"
	DateDMYDot   DateFormat = "DD.MM.YYYY"
	DateYMDFixed DateFormat = "YYYYMMDD"
)

// DateFormats lists the supported tags in detection priority order.
var DateFormats = []DateFormat{
	DateDMYSlash,
	DateMDYSlash,
	DateYMDDash,
	DateYMDSlash,
	DateDMYDash,
	DateDMYDot,
	DateYMDFixed,
}

// Valid reports whether f is a known tag.
func (f DateFormat) Valid() bool {
	for _, known := range DateFormats {
		if f == known {
			return true
		}
	}
	return false
}

// ParseDate parses raw under format and returns "YYYY-MM-DD", or "" on failure.
// Each part is read up to its first non-digit, so a trailing time such as
// "31/12/2023 10:15" or "2023-12-31T00:00:00" is ignored. Month and day ranges
// are checked (1-12, 1-31); calendar validity is not.
// Two-digit years above 50 land in the 1900s, the rest in the 2000s.
func ParseDate(raw string, format DateFormat) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return ""
	}

	var day, month, year string
	if format == DateYMDFixed {
		digits := leadingDigits(cleaned)
		if len(digits) != 8 {
			return ""
		}
		year, month, day = digits[:4], digits[4:6], digits[6:]
	} else {
		parts := dateSeparators.Split(cleaned, -1)
		if len(parts) != 3 {
			return ""
		}
		switch format {
		case DateMDYSlash:
			month, day, year = parts[0], parts[1], parts[2]
		case DateYMDDash, DateYMDSlash:
			year, month, day = parts[0], parts[1], parts[2]
		default:
			day, month, year = parts[0], parts[1], parts[2]
		}
	}

	y, okY := leadingInt(year)
	m, okM := leadingInt(month)
	d, okD := leadingInt(day)
	if !okY || !okM || !okD {
		return ""
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return ""
	}
	if y < 100 {
		if y > 50 {
			y += 1900
		} else {
			y += 2000
		}
	}

	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

// IsDate reports whether raw parses under any supported format.
func IsDate(raw string) bool {
	for _, f := range DateFormats {
		if ParseDate(raw, f) != "" {
			return true
		}
	}
	return false
}

// leadingInt reads the digit run at the start of s, after leading spaces.
// It fails only when there is no such run.
func leadingInt(s string) (int, bool) {
	digits := leadingDigits(strings.TrimLeft(s, " \t"))
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}
