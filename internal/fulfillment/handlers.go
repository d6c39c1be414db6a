package fulfillment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/brandpay-backend/pkg/enums"
)

// DigitalHandler issues one access token per unit and completes delivery immediately.
type DigitalHandler struct{}

func (DigitalHandler) Fulfill(_ context.Context, req Request) (Outcome, error) {
	qty := req.Order.Quantity
	if qty <= 0 {
		qty = 1
	}
	tokens := make([]string, 0, qty)
	for i := 0; i < qty; i++ {
		tokens = append(tokens, strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16]))
	}
	return Outcome{
		Status:    enums.OrderStatusProcessed,
		FulfillID: "dg-" + req.Order.ID,
		Tokens:    tokens,
		Response:  map[string]any{"issued": len(tokens)},
	}, nil
}

// ManualHandler hands the order to the brand for offline delivery.
type ManualHandler struct{}

func (ManualHandler) Fulfill(_ context.Context, req Request) (Outcome, error) {
	brand := ""
	if req.Brand != nil {
		brand = req.Brand.ID
	}
	return Outcome{
		Status:    enums.OrderStatusProcessing,
		FulfillID: fmt.Sprintf("manual-%s", req.Order.ID),
		Response:  map[string]any{"assignedBrand": brand},
	}, nil
}

// NewDefaultRouter registers the built-in handlers. partner may be nil when no VTU
// partner is configured, in which case utility products have no handler.
func NewDefaultRouter(partner Handler) *Router {
	r := NewRouter()
	r.Register(DigitalHandler{}, enums.ProductTypeDigital)
	r.Register(ManualHandler{}, enums.ProductTypeCourse, enums.ProductTypePhysical, enums.ProductTypePackage)
	if partner != nil {
		r.Register(partner, enums.ProductTypeData, enums.ProductTypeAirtime, enums.ProductTypeTV, enums.ProductTypeElectric)
	}
	return r
}
