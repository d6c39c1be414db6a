package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/brandpay-backend/api/middleware"
	"github.com/angelmondragon/brandpay-backend/api/responses"
	"github.com/angelmondragon/brandpay-backend/api/validators"
	internalorders "github.com/angelmondragon/brandpay-backend/internal/orders"
	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
)

// OrderService is the slice of the order engine the HTTP layer calls.
type OrderService interface {
	CreateOrUpdateOrder(ctx context.Context, in internalorders.CheckoutInput) (*internalorders.CheckoutResult, error)
	Cancel(ctx context.Context, userID, orderID string) (internalorders.RefundResult, error)
	ConfirmPayment(ctx context.Context, reference string) ([]models.Order, error)
	GetByReference(ctx context.Context, userID, reference string) ([]models.Order, error)
	List(ctx context.Context, userID string, status enums.OrderStatus, page docstore.Page) (*internalorders.OrderList, error)
}

type checkoutRequest struct {
	ReferenceID string                    `json:"referenceId"`
	BrandID     string                    `json:"brandId"`
	Currency    string                    `json:"currency"`
	Gateway     string                    `json:"gateway"`
	Cart        []internalorders.CartLine `json:"cart" validate:"dive"`
}

// Checkout prices the caller's cart and charges it. A checkout that saved orders but
// could not take payment still answers 201 with success=false.
func Checkout(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		brandID := strings.TrimSpace(req.BrandID)
		if brandID == "" {
			brandID = middleware.BrandIDFromContext(r.Context())
		}
		gateway := enums.GatewayWallet
		if raw := strings.TrimSpace(req.Gateway); raw != "" {
			parsed, err := enums.ParseGateway(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "invalid gateway"))
				return
			}
			gateway = parsed
		}

		result, err := svc.CreateOrUpdateOrder(r.Context(), internalorders.CheckoutInput{
			UserID:      userID,
			BrandID:     brandID,
			ReferenceID: strings.TrimSpace(req.ReferenceID),
			Currency:    enums.Currency(req.Currency).Normalize(),
			Gateway:     gateway,
			Cart:        req.Cart,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteResult(w, http.StatusCreated, result.Success, result.Code, result.Msg, result)
	}
}

// ListOrders returns the caller's orders, newest first.
func ListOrders(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		limit, err := validators.ParseQueryInt(r, "limit", docstore.DefaultLimit, 1, docstore.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var status enums.OrderStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "invalid status"))
				return
			}
			status = parsed
		}

		list, err := svc.List(r.Context(), userID, status, docstore.Page{Limit: limit, Page: page})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OrderDetail returns every order recorded under a checkout reference.
func OrderDetail(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMissingFields, "reference is required"))
			return
		}
		orders, err := svc.GetByReference(r.Context(), middleware.UserIDFromContext(r.Context()), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

// CancelOrder cancels one of the caller's paid orders and refunds it to their wallet.
func CancelOrder(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := strings.TrimSpace(chi.URLParam(r, "id"))
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMissingFields, "order id is required"))
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID)
		}
		result, err := svc.Cancel(ctx, middleware.UserIDFromContext(ctx), orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
