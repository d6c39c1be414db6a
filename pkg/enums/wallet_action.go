package enums

import "fmt"

// WalletAction is the direction of a wallet mutation.
type WalletAction string

const (
	WalletActionDebit  WalletAction = "debit"
	WalletActionCredit WalletAction = "credit"
)

var validWalletActions = []WalletAction{
	WalletActionDebit,
	WalletActionCredit,
}

// String implements fmt.Stringer.
func (a WalletAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known WalletAction.
func (a WalletAction) IsValid() bool {
	for _, candidate := range validWalletActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseWalletAction converts raw input into a WalletAction.
func ParseWalletAction(value string) (WalletAction, error) {
	for _, candidate := range validWalletActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet action %q", value)
}
