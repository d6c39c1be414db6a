package models

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// Product is a catalog entry owned by a brand and resold by its descendants.
type Product struct {
	ID             string            `gorm:"column:id;primaryKey" bson:"_id" json:"id"`
	BrandID        string            `gorm:"column:brand_id" bson:"brand_id" json:"brandId"`
	Name           string            `gorm:"column:name" bson:"name" json:"name"`
	Type           enums.ProductType `gorm:"column:type" bson:"type" json:"type"`
	Price          decimal.Decimal   `gorm:"column:price;type:numeric" bson:"price" json:"price"`
	Currency       enums.Currency    `gorm:"column:currency" bson:"currency" json:"currency"`
	FulfilmentType string            `gorm:"column:fulfilment_type" bson:"fulfilment_type" json:"fulfilmentType"`
	Partner        string            `gorm:"column:partner" bson:"partner" json:"partner,omitempty"`
	PartnerCode    string            `gorm:"column:partner_code" bson:"partner_code" json:"partnerCode,omitempty"`
	PriceRules     PriceRules        `gorm:"column:price_rules" bson:"price_rules" json:"priceRules"`
	Active         bool              `gorm:"column:active" bson:"active" json:"active"`

	Audit `gorm:"embedded" bson:",inline"`
}

func (p *Product) DocumentID() string { return p.ID }
