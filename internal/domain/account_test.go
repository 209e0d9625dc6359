package domain

import (
	"errors"
	"testing"
)

func TestAccount_CheckPostable(t *testing.T) {
	usd := MustCurrency("USD")
	eur := MustCurrency("EUR")

	tests := []struct {
		name        string
		status      AccountStatus
		currency    Currency
		expectError error
	}{
		{name: "open account same currency", status: AccountStatusOpen, currency: usd},
		{name: "frozen account", status: AccountStatusFrozen, currency: usd, expectError: ErrAccountNotOpen},
		{name: "closed account", status: AccountStatusClosed, currency: usd, expectError: ErrAccountNotOpen},
		{name: "currency mismatch", status: AccountStatusOpen, currency: eur, expectError: ErrCurrencyMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &Account{ID: "acc-1", Currency: tt.currency, Status: tt.status}
			money, err := NewMoney(10, usd)
			if err != nil {
				t.Fatalf("NewMoney: %v", err)
			}

			err = acc.CheckPostable(money)

			if tt.expectError == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.expectError != nil && !errors.Is(err, tt.expectError) {
				t.Errorf("expected %v, got %v", tt.expectError, err)
			}
		})
	}
}

func TestParseAccountStatus(t *testing.T) {
	for _, s := range []string{"OPEN", "FROZEN", "CLOSED"} {
		got, err := ParseAccountStatus(s)
		if err != nil {
			t.Fatalf("ParseAccountStatus(%q): %v", s, err)
		}
		if string(got) != s {
			t.Errorf("expected %s, got %s", s, got)
		}
	}

	if _, err := ParseAccountStatus("open"); err == nil {
		t.Error("expected error for lowercase status")
	}
}
