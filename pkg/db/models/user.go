package models

import (
	"database/sql/driver"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// User is a buyer or brand owner. The primary wallet lives on the user document.
type User struct {
	ID              string         `gorm:"column:id;primaryKey" bson:"_id" json:"id"`
	BrandID         string         `gorm:"column:brand_id" bson:"brand_id" json:"brandId"`
	Email           string         `gorm:"column:email" bson:"email" json:"email"`
	Name            string         `gorm:"column:name" bson:"name" json:"name"`
	DefaultCurrency enums.Currency `gorm:"column:default_currency" bson:"default_currency" json:"defaultCurrency"`
	Wallet          UserWallet     `gorm:"column:wallet" bson:"wallet" json:"wallet"`
	WalletVersion   int64          `gorm:"column:wallet_version" bson:"wallet_version" json:"-"`

	Audit `gorm:"embedded" bson:",inline"`
}

func (u *User) DocumentID() string { return u.ID }

// UserWallet is the balance pair embedded on a user document.
type UserWallet struct {
	ID         string          `bson:"id" json:"id"`
	Balance    decimal.Decimal `bson:"value" json:"value"`
	ShareValue decimal.Decimal `bson:"share_value" json:"shareValue"`
	Currency   enums.Currency  `bson:"currency" json:"currency"`
}

func (UserWallet) GormDataType() string { return "json" }

func (w UserWallet) Value() (driver.Value, error) {
	return jsonValue(w)
}

func (w *UserWallet) Scan(src any) error {
	return jsonScan(src, w)
}
