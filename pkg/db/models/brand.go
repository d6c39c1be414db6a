package models

import (
	"github.com/shopspring/decimal"
)

// Brand is a tenant storefront. ParentID links it into the ownership hierarchy;
// the root ancestor is the master brand.
type Brand struct {
	ID              string          `gorm:"column:id;primaryKey" bson:"_id" json:"id"`
	Name            string          `gorm:"column:name" bson:"name" json:"name"`
	ParentID        string          `gorm:"column:parent_id" bson:"parent_id" json:"parentId,omitempty"`
	OwnerID         string          `gorm:"column:owner_id" bson:"owner_id" json:"ownerId"`
	ShareValue      decimal.Decimal `gorm:"column:share_value;type:numeric" bson:"share_value" json:"shareValue"`
	SalesCommission decimal.Decimal `gorm:"column:sales_commission;type:numeric" bson:"sales_commission" json:"salesCommission"`
	MilleRate       decimal.Decimal `gorm:"column:mille_rate;type:numeric" bson:"mille_rate" json:"milleRate"`
	PriceRules      PriceRules      `gorm:"column:price_rules" bson:"price_rules" json:"priceRules"`
	Bank            BankDetails     `gorm:"column:bank" bson:"bank" json:"bank"`
	Domain          string          `gorm:"column:domain" bson:"domain" json:"domain,omitempty"`

	Audit `gorm:"embedded" bson:",inline"`
}

func (b *Brand) DocumentID() string { return b.ID }
