package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices are rendered as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type Currency string

const (
	CurrencyMAD Currency = "MAD"
	CurrencyEUR Currency = "EUR"
)

// ParseCurrency accepts MAD or EUR (case-insensitive). An empty value means MAD.
func ParseCurrency(s string) (Currency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(CurrencyMAD):
		return CurrencyMAD, nil
	case string(CurrencyEUR):
		return CurrencyEUR, nil
	default:
		return "", Invalid("currency", fmt.Sprintf("unsupported currency %q", s))
	}
}

// Lower returns the ISO code in the lowercase form payment processors expect.
func (c Currency) Lower() string {
	return strings.ToLower(string(c))
}

// ToMinorUnits converts an amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
