package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidCurrency indicates a malformed currency code.
var ErrInvalidCurrency = errors.New("invalid currency code")

// Scale is the number of fractional digits carried by every stored amount.
const Scale = 6

// One is the rate applied to movements that do not cross currencies.
var One = decimal.NewFromInt(1)

// NormalizeCurrency validates an ISO-4217 style currency code and returns its
// canonical uppercase form.
func NormalizeCurrency(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return c, nil
}

// Quantize truncates an amount to the ledger scale.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(Scale)
}

// ParseAmount converts a client-supplied amount string into a ledger amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return Quantize(d), nil
}
