package orders

import (
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// CartLine is one product in a checkout.
type CartLine struct {
	ProductID string         `json:"productId" validate:"required"`
	Quantity  int            `json:"quantity" validate:"required,min=1"`
	Details   map[string]any `json:"details,omitempty"`
}

// CheckoutInput is a buyer's cart submission. ReferenceID is optional on the first
// submission and groups every line and the aggregate payment.
type CheckoutInput struct {
	UserID      string
	BrandID     string
	ReferenceID string
	Currency    enums.Currency
	Gateway     enums.Gateway
	Cart        []CartLine
}

// FailedItem is a cart line that could not be priced.
type FailedItem struct {
	ProductID string `json:"productId"`
	Reason    string `json:"reason"`
}

// CheckoutResult is the outcome of a checkout. Code is the payment status of the checkout.
type CheckoutResult struct {
	Success     bool            `json:"success"`
	Code        string          `json:"code"`
	Msg         string          `json:"msg"`
	ReferenceID string          `json:"referenceId"`
	Orders      []models.Order  `json:"orders"`
	Payment     *models.Payment `json:"payment,omitempty"`
	FailedItems []FailedItem    `json:"failedItems"`
}

// FulfillReport summarizes one fulfillment pass.
type FulfillReport struct {
	Attempted int `json:"attempted"`
	Fulfilled int `json:"fulfilled"`
	Refunded  int `json:"refunded"`
	Skipped   int `json:"skipped"`
}

// RefundResult is the outcome of CancelAndRefund.
type RefundResult struct {
	Order    *models.Order   `json:"order"`
	Payment  *models.Payment `json:"payment,omitempty"`
	Refunded bool            `json:"refunded"`
}

// SettleReport summarizes one settlement pass.
type SettleReport struct {
	Orders    int `json:"orders"`
	Completed int `json:"completed"`
	Legs      int `json:"legs"`
}

// OrderList is a page of orders.
type OrderList struct {
	Orders []models.Order `json:"orders"`
	Meta   docstore.Meta  `json:"meta"`
}
