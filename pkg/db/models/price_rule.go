package models

import (
	"database/sql/driver"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// PriceRule is the stored form of a price adjustment.
type PriceRule struct {
	Label          string                    `bson:"label,omitempty" json:"label,omitempty"`
	AdjustmentType enums.AdjustmentType      `bson:"adjustment_type" json:"adjustmentType"`
	Direction      enums.AdjustmentDirection `bson:"direction" json:"direction"`
	Value          decimal.Decimal           `bson:"value" json:"value"`
}

// PriceRules is stored as a json column.
type PriceRules []PriceRule

func (PriceRules) GormDataType() string { return "json" }

func (r PriceRules) Value() (driver.Value, error) {
	if r == nil {
		return jsonValue([]PriceRule{})
	}
	return jsonValue([]PriceRule(r))
}

func (r *PriceRules) Scan(src any) error {
	var out []PriceRule
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*r = out
	return nil
}
