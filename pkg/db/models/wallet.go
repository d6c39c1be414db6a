package models

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// Wallet is a secondary wallet, unique per (user, brand, currency, identifier).
type Wallet struct {
	ID         string          `gorm:"column:id;primaryKey" bson:"_id" json:"id"`
	UserID     string          `gorm:"column:user_id" bson:"user_id" json:"userId"`
	BrandID    string          `gorm:"column:brand_id" bson:"brand_id" json:"brandId"`
	Identifier string          `gorm:"column:identifier" bson:"identifier" json:"identifier"`
	Currency   enums.Currency  `gorm:"column:currency" bson:"currency" json:"currency"`
	Balance    decimal.Decimal `gorm:"column:value;type:numeric" bson:"value" json:"value"`
	ShareValue decimal.Decimal `gorm:"column:share_value;type:numeric" bson:"share_value" json:"shareValue"`
	Version    int64           `gorm:"column:version" bson:"version" json:"-"`

	Audit `gorm:"embedded" bson:",inline"`
}

func (w *Wallet) DocumentID() string { return w.ID }
