package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusProcessed, true},
		{OrderStatusProcessed, OrderStatusCompleted, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusCancelled, OrderStatusRefunded, true},
		{OrderStatusProcessed, OrderStatusPaid, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusRefunded, OrderStatusPending, false},
		{OrderStatusProcessing, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusCompleted, true},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
	for _, s := range []OrderStatus{OrderStatusCompleted, OrderStatusRefunded, OrderStatusFailed, OrderStatusAbandoned} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	if OrderStatusProcessed.IsTerminal() {
		t.Fatalf("processed orders still settle")
	}
}

func TestParsersRejectUnknownValues(t *testing.T) {
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatalf("expected unknown order status to fail")
	}
	if _, err := ParseGateway("cash"); err == nil {
		t.Fatalf("expected unknown gateway to fail")
	}
	if _, err := ParseTrnxType("gift"); err == nil {
		t.Fatalf("expected unknown transaction type to fail")
	}
	g, err := ParseGateway("flutterwave")
	if err != nil || !g.IsExternal() {
		t.Fatalf("expected flutterwave to parse as external, got %q %v", g, err)
	}
	if GatewayWallet.IsExternal() {
		t.Fatalf("wallet is not an external gateway")
	}
}

func TestPaymentStatusFromGateway(t *testing.T) {
	cases := map[string]struct {
		want PaymentStatus
		ok   bool
	}{
		"success":    {PaymentStatusCompleted, true},
		"SUCCESSFUL": {PaymentStatusCompleted, true},
		" failed ":   {PaymentStatusFailed, true},
		"reversed":   {PaymentStatusReversed, true},
		"pending":    {"", false},
		"otp":        {"", false},
	}
	for raw, tc := range cases {
		got, ok := PaymentStatusFromGateway(raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%q: got (%q, %v) want (%q, %v)", raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCurrencyHelpers(t *testing.T) {
	if Currency(" ngn ").Normalize() != CurrencyNGN {
		t.Fatalf("normalize should upper-case and trim")
	}
	if !Currency("usd").Equal(CurrencyUSD) {
		t.Fatalf("currency comparison should ignore case")
	}
	if CurrencyNGN.Symbol() != "₦" {
		t.Fatalf("unexpected NGN symbol %q", CurrencyNGN.Symbol())
	}
	if Currency("btc").Symbol() != "BTC" {
		t.Fatalf("unknown symbols fall back to the code")
	}
	if !TrnxTypeWithdrawal.MovesToBank() || TrnxTypeCommission.MovesToBank() {
		t.Fatalf("only payouts and withdrawals move money to a bank")
	}
}
