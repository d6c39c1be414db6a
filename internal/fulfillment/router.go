// Package fulfillment delivers paid order lines through a handler chosen by product type.
package fulfillment

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

// StatusInvalid is returned by a handler when the order can never be fulfilled and must be refunded.
const StatusInvalid enums.OrderStatus = "invalid"

// Request carries everything a handler needs to deliver one order line.
type Request struct {
	Product *models.Product
	Order   *models.Order
	Brand   *models.Brand
	User    *models.User
}

// Outcome is what a handler reports back for persistence on the order.
type Outcome struct {
	Status    enums.OrderStatus
	FulfillID string
	Tokens    []string
	Response  map[string]any
	Partner   string
}

// Invalid reports whether the order must be cancelled and refunded.
func (o Outcome) Invalid() bool {
	return o.Status == StatusInvalid
}

// Handler delivers one product type.
type Handler interface {
	Fulfill(ctx context.Context, req Request) (Outcome, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (Outcome, error)

func (f HandlerFunc) Fulfill(ctx context.Context, req Request) (Outcome, error) {
	return f(ctx, req)
}

// Router dispatches requests by product type.
type Router struct {
	mu       sync.RWMutex
	handlers map[enums.ProductType]Handler
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{handlers: map[enums.ProductType]Handler{}}
}

// Register binds h to each product type, replacing any previous binding.
func (r *Router) Register(h Handler, types ...enums.ProductType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		r.handlers[t] = h
	}
}

// Fulfill dispatches req to the handler registered for the product's type.
func (r *Router) Fulfill(ctx context.Context, req Request) (Outcome, error) {
	if req.Product == nil || req.Order == nil {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeMissingFields, "product and order are required")
	}
	productType := req.Product.Type
	if productType == "" {
		productType = req.Order.Type
	}

	r.mu.RLock()
	h, ok := r.handlers[productType]
	r.mu.RUnlock()
	if !ok {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeInvalidInput, fmt.Sprintf("no fulfillment handler for %q", productType))
	}

	out, err := h.Fulfill(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	if out.Status != StatusInvalid && !out.Status.IsValid() {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeUnexpected, fmt.Sprintf("handler returned unknown status %q", out.Status))
	}
	return out, nil
}
