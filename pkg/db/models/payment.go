package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// Payment is a purchase debit, a wallet credit, or a bank payout.
type Payment struct {
	ID                  string              `gorm:"column:id;primaryKey" bson:"_id" json:"id"`
	ReferenceID         string              `gorm:"column:reference_id" bson:"reference_id" json:"referenceId"`
	UserID              string              `gorm:"column:user_id" bson:"user_id" json:"userId"`
	BrandID             string              `gorm:"column:brand_id" bson:"brand_id" json:"brandId"`
	WalletID            string              `gorm:"column:wallet_id" bson:"wallet_id" json:"walletId"`
	Amount              decimal.Decimal     `gorm:"column:amount;type:numeric" bson:"amount" json:"amount"`
	Charges             decimal.Decimal     `gorm:"column:charges;type:numeric" bson:"charges" json:"charges"`
	Currency            enums.Currency      `gorm:"column:currency" bson:"currency" json:"currency"`
	CurrencySymbol      string              `gorm:"column:currency_symbol" bson:"currency_symbol" json:"currencySymbol"`
	Gateway             enums.Gateway       `gorm:"column:gateway" bson:"gateway" json:"gateway"`
	TrnxType            enums.TrnxType      `gorm:"column:trnx_type" bson:"trnx_type" json:"trnxType"`
	Type                enums.PaymentType   `gorm:"column:type" bson:"type" json:"type"`
	Status              enums.PaymentStatus `gorm:"column:status" bson:"status" json:"status"`
	ShareRate           decimal.Decimal     `gorm:"column:share_rate;type:numeric" bson:"share_rate" json:"shareRate"`
	Description         string              `gorm:"column:description" bson:"description" json:"description,omitempty"`
	BankPaymentInfo     BankDetails         `gorm:"column:bank_payment_info" bson:"bank_payment_info" json:"bankPaymentInfo"`
	Fulfilled           bool                `gorm:"column:fulfilled" bson:"fulfilled" json:"fulfilled"`
	FulfillmentDate     *time.Time          `gorm:"column:fulfillment_date" bson:"fulfillment_date,omitempty" json:"fulfillmentDate,omitempty"`
	TransferID          string              `gorm:"column:transfer_id" bson:"transfer_id" json:"transferId,omitempty"`
	TransferCode        string              `gorm:"column:transfer_code" bson:"transfer_code" json:"transferCode,omitempty"`
	TransferReferenceID string              `gorm:"column:transfer_reference_id" bson:"transfer_reference_id" json:"transferReferenceId,omitempty"`
	FailureReason       string              `gorm:"column:failure_reason" bson:"failure_reason" json:"failureReason,omitempty"`
	Others              JSONMap             `gorm:"column:others" bson:"others,omitempty" json:"others,omitempty"`

	ProcessingLock `gorm:"embedded" bson:",inline"`
	Audit          `gorm:"embedded" bson:",inline"`
}

func (p *Payment) DocumentID() string { return p.ID }

// Total is the amount moved including gateway charges.
func (p *Payment) Total() decimal.Decimal {
	return p.Amount.Add(p.Charges)
}
