package enums

import "testing"

func TestParseCurrencyNormalizes(t *testing.T) {
	got, err := ParseCurrency("  USD ")
	if err != nil {
		t.Fatalf("ParseCurrency: %v", err)
	}
	if got != CurrencyUSD {
		t.Fatalf("expected usd, got %q", got)
	}
	if got.MinorUnits() != 100 {
		t.Fatalf("expected 100 minor units, got %d", got.MinorUnits())
	}
	if _, err := ParseCurrency("doge"); err == nil {
		t.Fatal("expected unknown currency to fail")
	}
	if Currency("doge").MinorUnits() != 0 {
		t.Fatal("expected 0 minor units for unknown currency")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, status := range OrderStatuses() {
		want := status == OrderStatusCompleted || status == OrderStatusCancelled
		if status.IsTerminal() != want {
			t.Fatalf("%s: terminal = %v", status, status.IsTerminal())
		}
	}
	if _, err := ParseOrderStatus("Completed"); err == nil {
		t.Fatal("expected statuses to be case sensitive")
	}
}

func TestStockPolicyValidate(t *testing.T) {
	cases := []struct {
		policy StockPolicy
		ok     bool
		text   string
	}{
		{policy: Tracked(3), ok: true, text: "tracked(3)"},
		{policy: Tracked(-1), ok: false, text: "tracked(-1)"},
		{policy: Unlimited(), ok: true, text: "unlimited"},
		{policy: Hidden(), ok: true, text: "hidden"},
		{policy: StockPolicy{Kind: "seasonal"}, ok: false, text: "seasonal"},
	}
	for _, tc := range cases {
		err := tc.policy.Validate()
		if (err == nil) != tc.ok {
			t.Fatalf("%s: unexpected validate result %v", tc.text, err)
		}
		if tc.policy.String() != tc.text {
			t.Fatalf("expected %q, got %q", tc.text, tc.policy.String())
		}
	}
}
