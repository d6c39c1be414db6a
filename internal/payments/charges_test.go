package payments

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

func TestTransferCharges(t *testing.T) {
	cases := []struct {
		gateway  enums.Gateway
		currency enums.Currency
		amount   string
		want     string
	}{
		{enums.GatewayPaystack, enums.CurrencyNGN, "5000", "10"},
		{enums.GatewayPaystack, enums.CurrencyNGN, "5000.01", "25"},
		{enums.GatewayPaystack, enums.CurrencyNGN, "50000", "25"},
		{enums.GatewayPaystack, enums.CurrencyNGN, "50001", "50"},
		{enums.GatewayFlutterwave, enums.CurrencyNGN, "100", "10.75"},
		{enums.GatewayFlutterwave, "ngn", "20000", "26.88"},
		{enums.GatewayFlutterwave, enums.CurrencyNGN, "900000", "53.75"},
		{enums.GatewayPaystack, enums.CurrencyUSD, "100", "0"},
		{enums.GatewayWallet, enums.CurrencyNGN, "100", "0"},
		{enums.GatewayPaystack, enums.CurrencyNGN, "0", "0"},
	}
	for _, tc := range cases {
		got := TransferCharges(tc.gateway, tc.currency, decimal.RequireFromString(tc.amount))
		assert.Equal(t, tc.want, got.String(), "%s %s %s", tc.gateway, tc.currency, tc.amount)
	}
}
