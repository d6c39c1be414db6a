package models

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// Transaction is the immutable journal row written for every wallet mutation.
type Transaction struct {
	ID            string             `gorm:"column:id;primaryKey" bson:"_id" json:"id"`
	WalletID      string             `gorm:"column:wallet_id" bson:"wallet_id" json:"walletId"`
	UserID        string             `gorm:"column:user_id" bson:"user_id" json:"userId"`
	Action        enums.WalletAction `gorm:"column:action" bson:"action" json:"action"`
	Amount        decimal.Decimal    `gorm:"column:amount;type:numeric" bson:"amount" json:"amount"`
	ShareDelta    decimal.Decimal    `gorm:"column:share_delta;type:numeric" bson:"share_delta" json:"shareDelta"`
	BalanceBefore decimal.Decimal    `gorm:"column:balance_before;type:numeric" bson:"balance_before" json:"balanceBefore"`
	BalanceAfter  decimal.Decimal    `gorm:"column:balance_after;type:numeric" bson:"balance_after" json:"balanceAfter"`
	Currency      enums.Currency     `gorm:"column:currency" bson:"currency" json:"currency"`
	Reference     string             `gorm:"column:reference" bson:"reference" json:"reference,omitempty"`

	Audit `gorm:"embedded" bson:",inline"`
}

func (t *Transaction) DocumentID() string { return t.ID }
