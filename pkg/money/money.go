// Package money provides exact decimal arithmetic for account balances and
// transaction amounts, plus per-currency scale lookup via the ISO registry.
package money

import (
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultScale is the minor-unit scale used when a currency code is unknown.
const DefaultScale int32 = 2

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code is a known ISO 4217 currency code.
func ValidCode(code string) bool {
	return gomoney.GetCurrency(NormalizeCode(code)) != nil
}

// Scale returns the minor-unit scale for a currency code (2 for EUR, 0 for
// JPY, ...). Unknown codes fall back to DefaultScale.
func Scale(code string) int32 {
	if cur := gomoney.GetCurrency(NormalizeCode(code)); cur != nil {
		return int32(cur.Fraction)
	}
	return DefaultScale
}

// Round rounds d to the currency's minor-unit scale, half away from zero.
// Balance deltas are rounded exactly once per account per commit; callers
// must not round intermediate effects.
func Round(d decimal.Decimal, code string) decimal.Decimal {
	return d.Round(Scale(code))
}

// Parse parses a decimal amount from its string form.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
