package models

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// Commission is one priced leg of the brand hierarchy split. Owner wallet and bank
// details are captured when the order is priced and never re-resolved.
type Commission struct {
	Tier             enums.CommissionTier `bson:"tier" json:"tier"`
	BrandID          string               `bson:"brand_id" json:"brandId"`
	Rate             decimal.Decimal      `bson:"rate" json:"rate"`
	Amount           decimal.Decimal      `bson:"amount" json:"amount"`
	Currency         enums.Currency       `bson:"currency" json:"currency"`
	OwnerUserID      string               `bson:"owner_user_id" json:"ownerUserId"`
	WalletID         string               `bson:"wallet_id" json:"walletId"`
	OwnerCurrency    enums.Currency       `bson:"owner_currency" json:"ownerCurrency"`
	Bank             BankDetails          `bson:"bank" json:"bank"`
	CommissionStatus bool                 `bson:"commission_status" json:"commissionStatus"`
	PaymentID        string               `bson:"payment_id,omitempty" json:"paymentId,omitempty"`
	Gateway          enums.Gateway        `bson:"gateway,omitempty" json:"gateway,omitempty"`
	SettledAt        *time.Time           `bson:"settled_at,omitempty" json:"settledAt,omitempty"`
	Failure          string               `bson:"failure,omitempty" json:"failure,omitempty"`
}

// IsZero reports whether the leg was never assigned to a brand.
func (c Commission) IsZero() bool {
	return c.BrandID == ""
}

func (Commission) GormDataType() string { return "json" }

func (c Commission) Value() (driver.Value, error) {
	return jsonValue(c)
}

func (c *Commission) Scan(src any) error {
	return jsonScan(src, c)
}
