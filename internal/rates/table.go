package rates

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

// BaseCurrency is the currency every rate is quoted against.
const BaseCurrency = enums.CurrencyUSD

// Table maps a currency code to units of that currency per one unit of BaseCurrency.
type Table map[string]decimal.Decimal

// Rate returns the rate for code.
func (t Table) Rate(code enums.Currency) (decimal.Decimal, bool) {
	rate, ok := t[string(code.Normalize())]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

// Convert moves amount from one currency to another through the base currency.
func (t Table) Convert(amount decimal.Decimal, from, to enums.Currency) (decimal.Decimal, error) {
	if from.Equal(to) {
		return amount, nil
	}
	fromRate, ok := t.Rate(from)
	if !ok {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeRatesCalculation, fmt.Sprintf("no rate for %s", from))
	}
	toRate, ok := t.Rate(to)
	if !ok {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeRatesCalculation, fmt.Sprintf("no rate for %s", to))
	}
	return amount.Div(fromRate).Mul(toRate).Round(2), nil
}

// Subset returns a working table holding only the requested codes. Every code must be known.
func (t Table) Subset(codes ...enums.Currency) (Table, error) {
	out := make(Table, len(codes))
	for _, code := range codes {
		if code.IsZero() {
			continue
		}
		if err := out.Extend(t, code); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Extend copies code's rate from src into t.
func (t Table) Extend(src Table, code enums.Currency) error {
	rate, ok := src.Rate(code)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeRates, fmt.Sprintf("no rate for %s", code.Normalize()))
	}
	t[string(code.Normalize())] = rate
	return nil
}

// Model returns the table in its persisted form.
func (t Table) Model() models.RateTable {
	out := make(models.RateTable, len(t))
	for code, rate := range t {
		out[code] = rate
	}
	return out
}

// FromModel rebuilds a table from an order's stored snapshot.
func FromModel(stored models.RateTable) Table {
	out := make(Table, len(stored))
	for code, rate := range stored {
		out[code] = rate
	}
	return out
}
