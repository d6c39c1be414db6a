package payments

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

type chargeBand struct {
	upTo   decimal.Decimal
	charge decimal.Decimal
}

var (
	bandLow  = decimal.NewFromInt(5000)
	bandMid  = decimal.NewFromInt(50000)
	maxValue = decimal.Decimal{}

	transferCharges = map[enums.Gateway][]chargeBand{
		enums.GatewayPaystack: {
			{upTo: bandLow, charge: decimal.NewFromInt(10)},
			{upTo: bandMid, charge: decimal.NewFromInt(25)},
			{upTo: maxValue, charge: decimal.NewFromInt(50)},
		},
		enums.GatewayFlutterwave: {
			{upTo: bandLow, charge: decimal.RequireFromString("10.75")},
			{upTo: bandMid, charge: decimal.RequireFromString("26.88")},
			{upTo: maxValue, charge: decimal.RequireFromString("53.75")},
		},
	}
)

// TransferCharges returns the gateway fee for paying amount out to a bank. Only NGN transfers carry a fee.
func TransferCharges(gateway enums.Gateway, currency enums.Currency, amount decimal.Decimal) decimal.Decimal {
	if !currency.Equal(enums.CurrencyNGN) || !amount.IsPositive() {
		return decimal.Zero
	}
	for _, band := range transferCharges[gateway] {
		if band.upTo.IsZero() || amount.LessThanOrEqual(band.upTo) {
			return band.charge
		}
	}
	return decimal.Zero
}
