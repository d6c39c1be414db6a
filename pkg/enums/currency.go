package enums

import "strings"

// Currency is an ISO-4217 (or crypto ticker) code. Rate tables are open-ended so
// only the codes the checkout seeds are named here.
type Currency string

const (
	CurrencyNGN Currency = "NGN"
	CurrencyUSD Currency = "USD"
	CurrencyGHS Currency = "GHS"
)

// BaseCurrencies are always present in a checkout's working rate table.
var BaseCurrencies = []Currency{CurrencyUSD, CurrencyNGN, CurrencyGHS}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// Normalize upper-cases and trims the code.
func (c Currency) Normalize() Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(string(c))))
}

// Equal compares two codes case-insensitively.
func (c Currency) Equal(other Currency) bool {
	return strings.EqualFold(strings.TrimSpace(string(c)), strings.TrimSpace(string(other)))
}

// IsZero reports whether no currency was supplied.
func (c Currency) IsZero() bool {
	return strings.TrimSpace(string(c)) == ""
}

var currencySymbols = map[Currency]string{
	CurrencyNGN: "₦",
	CurrencyUSD: "$",
	CurrencyGHS: "₵",
}

// Symbol returns the display symbol, falling back to the code itself.
func (c Currency) Symbol() string {
	if sym, ok := currencySymbols[c.Normalize()]; ok {
		return sym
	}
	return string(c.Normalize())
}
