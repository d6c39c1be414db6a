package models

import (
	"database/sql/driver"
	"strings"
)

// BankDetails is the payout destination snapshot for a brand owner or withdrawal.
type BankDetails struct {
	AccountNumber string `bson:"account_number" json:"accountNumber"`
	AccountName   string `bson:"account_name" json:"accountName"`
	BankCode      string `bson:"bank_code" json:"bankCode"`
	BankName      string `bson:"bank_name,omitempty" json:"bankName,omitempty"`
	RecipientCode string `bson:"recipient_code,omitempty" json:"recipientCode,omitempty"`
}

// Complete reports whether a transfer recipient can be created from the details.
func (b BankDetails) Complete() bool {
	return strings.TrimSpace(b.AccountNumber) != "" &&
		strings.TrimSpace(b.AccountName) != "" &&
		strings.TrimSpace(b.BankCode) != ""
}

func (BankDetails) GormDataType() string { return "json" }

func (b BankDetails) Value() (driver.Value, error) {
	return jsonValue(b)
}

func (b *BankDetails) Scan(src any) error {
	return jsonScan(src, b)
}
