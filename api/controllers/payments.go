package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/brandpay-backend/api/middleware"
	"github.com/angelmondragon/brandpay-backend/api/responses"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
)

// VerifyPayment re-queries the gateway for a checkout the caller owns and returns its
// orders, paid and fulfilled when the charge cleared.
func VerifyPayment(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMissingFields, "reference is required"))
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithReference(ctx, reference)
		}
		if _, err := svc.GetByReference(ctx, middleware.UserIDFromContext(ctx), reference); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		orders, err := svc.ConfirmPayment(ctx, reference)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}
