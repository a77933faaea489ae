// Package money formats report totals in a currency. Amounts are held in
// integer minor units through go-money; conversion from decimals rounds half
// away from zero.
package money

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a currency code is unknown
const DefaultCurrency = "EUR"

// Money is an amount in one currency
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units.
func New(minor int64, currencyCode string) *Money {
	return &Money{m: money.New(minor, normalizeCode(currencyCode))}
}

// NewFromDecimal converts amount to minor units of currencyCode.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	code := normalizeCode(currencyCode)
	fraction := money.GetCurrency(code).Fraction
	minor := amount.Shift(int32(fraction)).Round(0).IntPart()
	return New(minor, code)
}

// Sum adds amounts in currencyCode.
func Sum(currencyCode string, amounts ...decimal.Decimal) *Money {
	return NewFromDecimal(decimal.Sum(decimal.Zero, amounts...), currencyCode)
}

// Display formats with the currency's symbol and separators (e.g. "1.234,56 €").
func (m *Money) Display() string {
	return m.m.Display()
}

func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if money.GetCurrency(code) == nil {
		return DefaultCurrency
	}
	return code
}
