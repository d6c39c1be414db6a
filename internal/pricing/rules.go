// Package pricing evaluates brand and product price rules.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// Rule adjusts a running price. The set of implementations is closed to this package.
type Rule interface {
	Apply(price decimal.Decimal) decimal.Decimal
	rule()
}

// PercentIncrease raises the price by Percent of the running price.
type PercentIncrease struct{ Percent decimal.Decimal }

// PercentDecrease lowers the price by Percent of the running price.
type PercentDecrease struct{ Percent decimal.Decimal }

// FixedIncrease adds Amount to the running price.
type FixedIncrease struct{ Amount decimal.Decimal }

// FixedDecrease subtracts Amount from the running price.
type FixedDecrease struct{ Amount decimal.Decimal }

func (r PercentIncrease) Apply(price decimal.Decimal) decimal.Decimal {
	return price.Add(price.Mul(r.Percent).Div(hundred))
}

func (r PercentDecrease) Apply(price decimal.Decimal) decimal.Decimal {
	return price.Sub(price.Mul(r.Percent).Div(hundred))
}

func (r FixedIncrease) Apply(price decimal.Decimal) decimal.Decimal {
	return price.Add(r.Amount)
}

func (r FixedDecrease) Apply(price decimal.Decimal) decimal.Decimal {
	return price.Sub(r.Amount)
}

func (PercentIncrease) rule() {}
func (PercentDecrease) rule() {}
func (FixedIncrease) rule()   {}
func (FixedDecrease) rule()   {}

// ParseRule converts a stored price rule into its evaluable form.
func ParseRule(stored models.PriceRule) (Rule, error) {
	if stored.Value.IsNegative() {
		return nil, fmt.Errorf("price rule %q: negative value %s", stored.Label, stored.Value)
	}
	switch {
	case stored.AdjustmentType == enums.AdjustmentTypePercentage && stored.Direction == enums.AdjustmentDirectionIncrease:
		return PercentIncrease{Percent: stored.Value}, nil
	case stored.AdjustmentType == enums.AdjustmentTypePercentage && stored.Direction == enums.AdjustmentDirectionDecrease:
		return PercentDecrease{Percent: stored.Value}, nil
	case stored.AdjustmentType == enums.AdjustmentTypeFixed && stored.Direction == enums.AdjustmentDirectionIncrease:
		return FixedIncrease{Amount: stored.Value}, nil
	case stored.AdjustmentType == enums.AdjustmentTypeFixed && stored.Direction == enums.AdjustmentDirectionDecrease:
		return FixedDecrease{Amount: stored.Value}, nil
	}
	return nil, fmt.Errorf("price rule %q: unsupported %s/%s", stored.Label, stored.AdjustmentType, stored.Direction)
}

// ParseRules parses every stored rule, failing on the first invalid one.
func ParseRules(stored models.PriceRules) ([]Rule, error) {
	rules := make([]Rule, 0, len(stored))
	for _, s := range stored {
		r, err := ParseRule(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// CalculateFinalPrice applies rules in order and clamps the result at zero.
func CalculateFinalPrice(base decimal.Decimal, rules []Rule) decimal.Decimal {
	price := base
	for _, r := range rules {
		price = r.Apply(price)
	}
	if price.IsNegative() {
		return decimal.Zero
	}
	return price.Round(2)
}

// Mille returns the reward points earned on amount at rate points per thousand.
func Mille(amount, rate decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || !rate.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(rate).Div(decimal.NewFromInt(1000)).Round(4)
}

// Commission returns rate percent of amount, rounded to minor units.
func Commission(amount, rate decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || !rate.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(rate).Div(hundred).Round(2)
}
