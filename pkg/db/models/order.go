package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// Order is one cart line of a checkout.
type Order struct {
	ID              string            `gorm:"column:id;primaryKey" bson:"_id" json:"id"`
	ReferenceID     string            `gorm:"column:reference_id" bson:"reference_id" json:"referenceId"`
	Status          enums.OrderStatus `gorm:"column:status" bson:"status" json:"status"`
	ProductID       string            `gorm:"column:product_id" bson:"product_id" json:"productId"`
	ProductName     string            `gorm:"column:product_name" bson:"product_name" json:"productName"`
	BrandID         string            `gorm:"column:brand_id" bson:"brand_id" json:"brandId"`
	UserID          string            `gorm:"column:user_id" bson:"user_id" json:"userId"`
	Amount          decimal.Decimal   `gorm:"column:amount;type:numeric" bson:"amount" json:"amount"`
	UnitPrice       decimal.Decimal   `gorm:"column:unit_price;type:numeric" bson:"unit_price" json:"unitPrice"`
	OrderCurrency   enums.Currency    `gorm:"column:order_currency" bson:"order_currency" json:"orderCurrency"`
	Quantity        int               `gorm:"column:quantity" bson:"quantity" json:"quantity"`
	Type            enums.ProductType `gorm:"column:type" bson:"type" json:"type"`
	FulfillID       string            `gorm:"column:fulfill_id" bson:"fulfill_id" json:"fulfillId"`
	FulfillResponse JSONMap           `gorm:"column:fulfill_response" bson:"fulfill_response,omitempty" json:"fulfillResponse,omitempty"`
	Tokens          pq.StringArray    `gorm:"column:tokens;type:text[]" bson:"tokens" json:"tokens"`
	Partner         string            `gorm:"column:partner" bson:"partner" json:"partner,omitempty"`
	PaymentID       string            `gorm:"column:payment_id" bson:"payment_id" json:"paymentId"`
	Mille           decimal.Decimal   `gorm:"column:mille;type:numeric" bson:"mille" json:"mille"`
	MilleCredited   bool              `gorm:"column:mille_credited" bson:"mille_credited" json:"milleCredited"`

	ProductBrandCommission       Commission `gorm:"column:product_brand_commission" bson:"product_brand_commission" json:"productBrandCommission"`
	ProductParentBrandCommission Commission `gorm:"column:product_parent_brand_commission" bson:"product_parent_brand_commission" json:"productParentBrandCommission"`
	OrderBrandCommission         Commission `gorm:"column:order_brand_commission" bson:"order_brand_commission" json:"orderBrandCommission"`
	OrderParentBrandCommission   Commission `gorm:"column:order_parent_brand_commission" bson:"order_parent_brand_commission" json:"orderParentBrandCommission"`
	MasterCommission             Commission `gorm:"column:master_commission" bson:"master_commission" json:"masterCommission"`

	SettlementDate      *time.Time `gorm:"column:settlement_date" bson:"settlement_date,omitempty" json:"settlementDate,omitempty"`
	SettlementReference string     `gorm:"column:settlement_reference" bson:"settlement_reference" json:"settlementReference,omitempty"`
	Rates               RateTable  `gorm:"column:rates" bson:"rates" json:"rates,omitempty"`

	ProcessingLock `gorm:"embedded" bson:",inline"`
	Audit          `gorm:"embedded" bson:",inline"`
}

func (o *Order) DocumentID() string { return o.ID }

// CommissionLeg pairs a tier with the order's leg for that tier.
type CommissionLeg struct {
	Tier       enums.CommissionTier
	Commission *Commission
}

// CommissionLegs returns every leg in settlement order.
func (o *Order) CommissionLegs() []CommissionLeg {
	return []CommissionLeg{
		{Tier: enums.CommissionTierProductBrand, Commission: &o.ProductBrandCommission},
		{Tier: enums.CommissionTierProductParentBrand, Commission: &o.ProductParentBrandCommission},
		{Tier: enums.CommissionTierOrderBrand, Commission: &o.OrderBrandCommission},
		{Tier: enums.CommissionTierOrderParentBrand, Commission: &o.OrderParentBrandCommission},
		{Tier: enums.CommissionTierMaster, Commission: &o.MasterCommission},
	}
}

// CommissionColumn maps a tier to its storage field name.
func CommissionColumn(tier enums.CommissionTier) string {
	return string(tier) + "_commission"
}
