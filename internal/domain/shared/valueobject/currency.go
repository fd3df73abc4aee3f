// Package valueobject holds small immutable values shared by the billing contexts.
package valueobject

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultCurrency is used when a tenant or plan does not name one
const DefaultCurrency = "USD"

// MoneyScale is the number of decimal places money is rounded to
const MoneyScale = 2

// NormalizeCurrency upper-cases and validates an ISO 4217 code.
// An empty code yields DefaultCurrency.
func NormalizeCurrency(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, true
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", false
	}
	return unit.String(), true
}

// RoundMoney rounds half away from zero to MoneyScale places
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}
