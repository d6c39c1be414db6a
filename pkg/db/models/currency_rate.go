package models

import (
	"github.com/shopspring/decimal"
)

// CurrencyRate is one row of the rate table. ID is the currency code.
type CurrencyRate struct {
	ID     string          `gorm:"column:id;primaryKey" bson:"_id" json:"id"`
	Code   string          `gorm:"column:code" bson:"code" json:"code"`
	Rate   decimal.Decimal `gorm:"column:rate;type:numeric" bson:"rate" json:"rate"`
	Symbol string          `gorm:"column:symbol" bson:"symbol" json:"symbol"`
	Crypto bool            `gorm:"column:crypto" bson:"crypto" json:"crypto"`
	Source string          `gorm:"column:source" bson:"source" json:"source"`

	Audit `gorm:"embedded" bson:",inline"`
}

func (c *CurrencyRate) DocumentID() string { return c.ID }
