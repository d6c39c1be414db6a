package enums

import "fmt"

// TrnxType describes the business reason behind a payment.
type TrnxType string

const (
	TrnxTypePurchase   TrnxType = "purchase"
	TrnxTypePayout     TrnxType = "payout"
	TrnxTypeWithdrawal TrnxType = "withdrawal"
	TrnxTypeCommission TrnxType = "commission"
	TrnxTypeFunding    TrnxType = "funding"
	TrnxTypeRefund     TrnxType = "refund"
	TrnxTypeShare      TrnxType = "share"
	TrnxTypeCrypto     TrnxType = "crypto"
)

var validTrnxTypes = []TrnxType{
	TrnxTypePurchase,
	TrnxTypePayout,
	TrnxTypeWithdrawal,
	TrnxTypeCommission,
	TrnxTypeFunding,
	TrnxTypeRefund,
	TrnxTypeShare,
	TrnxTypeCrypto,
}

// String implements fmt.Stringer.
func (t TrnxType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TrnxType.
func (t TrnxType) IsValid() bool {
	for _, candidate := range validTrnxTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// MovesToBank reports whether the transaction pays money out to a bank account.
func (t TrnxType) MovesToBank() bool {
	return t == TrnxTypePayout || t == TrnxTypeWithdrawal
}

// ParseTrnxType converts raw input into a TrnxType.
func ParseTrnxType(value string) (TrnxType, error) {
	for _, candidate := range validTrnxTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
