package controllers

import (
	"net/http"

	"github.com/robojust/storefront-backend/api/middleware"
	"github.com/robojust/storefront-backend/api/responses"
	"github.com/robojust/storefront-backend/api/validators"
	"github.com/robojust/storefront-backend/internal/payments"
	pkgerrors "github.com/robojust/storefront-backend/pkg/errors"
	"github.com/robojust/storefront-backend/pkg/logger"
)

// PaymentsCreateOrder snapshots the cart into an order and opens a gateway
// payment intent for it.
func PaymentsCreateOrder(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var req payments.CreateOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp, err := svc.CreateOrder(ctx, middleware.UserIDFromContext(ctx), req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// PaymentsVerify checks the checkout callback signature and reports the
// recorded order status.
func PaymentsVerify(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var req payments.VerifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp, err := svc.VerifyPayment(ctx, middleware.UserIDFromContext(ctx), req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
