package enums

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 code, lowercase as the payment processor expects.
// Amounts are always carried in the currency's minor unit.
type Currency string

const (
	CurrencyUSD Currency = "usd"
	CurrencyCAD Currency = "cad"
	CurrencyEUR Currency = "eur"
)

// minorUnits maps each supported currency to its minor units per major unit.
var minorUnits = map[Currency]int64{
	CurrencyUSD: 100,
	CurrencyCAD: 100,
	CurrencyEUR: 100,
}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool {
	_, ok := minorUnits[c]
	return ok
}

// MinorUnits returns how many minor units make one major unit, or 0 for an
// unsupported currency.
func (c Currency) MinorUnits() int64 {
	return minorUnits[c]
}

// ParseCurrency accepts any casing and surrounding whitespace.
func ParseCurrency(value string) (Currency, error) {
	c := Currency(strings.ToLower(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid currency %q", value)
	}
	return c, nil
}
