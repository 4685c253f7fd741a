package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/urbankart/storefront/internal/api/middleware"
	"github.com/urbankart/storefront/internal/errors"
	"github.com/urbankart/storefront/internal/models"
	service "github.com/urbankart/storefront/internal/services"
	"github.com/urbankart/storefront/internal/utils"
	"github.com/urbankart/storefront/internal/utils/response"
)

type PaymentHandler struct {
	paymentService service.PaymentService
	validator      *validator.Validate
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, validator: validator.New()}
}

// CreateGatewayOrder registers a pending online order with Razorpay and
// returns the gateway order ID the checkout widget needs. Calling it again
// for the same order returns the previously registered ID.
func (h *PaymentHandler) CreateGatewayOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		var req models.CreateGatewayOrderRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		resp, err := h.paymentService.CreateGatewayOrder(r.Context(), claims, &req)
		if err != nil {
			logger.Error("Failed to create gateway order", slog.String("orderId", req.OrderID.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Gateway order created",
			slog.String("orderId", req.OrderID.String()),
			slog.String("razorpayOrderId", resp.RazorpayOrderID))
		response.Success(w, http.StatusOK, resp)
	}
}

// VerifyPayment checks the gateway signature for a completed checkout and,
// on success, commits stock and marks the order paid.
func (h *PaymentHandler) VerifyPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		var req models.VerifyPaymentRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		order, err := h.paymentService.VerifyPayment(r.Context(), claims, &req)
		if err != nil {
			logger.Error("Payment verification failed",
				slog.String("razorpayOrderId", req.RazorpayOrderID),
				slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Payment verified",
			slog.String("orderId", order.ID.String()),
			slog.String("razorpayPaymentId", req.RazorpayPaymentID))
		response.Success(w, http.StatusOK, order)
	}
}
