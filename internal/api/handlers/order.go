package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/urbankart/storefront/internal/api/middleware"
	"github.com/urbankart/storefront/internal/errors"
	"github.com/urbankart/storefront/internal/models"
	service "github.com/urbankart/storefront/internal/services"
	"github.com/urbankart/storefront/internal/utils"
	"github.com/urbankart/storefront/internal/utils/response"
)

type OrderHandler struct {
	orderService service.OrderService
	validator    *validator.Validate
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService, validator: validator.New()}
}

// CreateOrder places an order from the caller's current cart. COD orders are
// confirmed immediately; online orders come back pending with
// paymentRequired set so the client can start the gateway flow.
func (h *OrderHandler) CreateOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		var req models.CreateOrderRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		resp, err := h.orderService.CreateOrder(r.Context(), claims, &req)
		if err != nil {
			logger.Error("Failed to create order", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Order created",
			slog.String("orderId", resp.Order.ID.String()),
			slog.String("paymentMethod", string(resp.Order.PaymentMethod)),
			slog.Bool("paymentRequired", resp.PaymentRequired))
		response.Success(w, http.StatusCreated, resp)
	}
}

func (h *OrderHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		id, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, errors.BadRequestError("Invalid order ID"))

			return
		}

		order, err := h.orderService.GetOrderByID(r.Context(), claims, id)
		if err != nil {
			logger.Error("Failed to get order", slog.String("orderId", id.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, order)
	}
}

func (h *OrderHandler) ListOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.UnauthorizedError("Authentication required"))

			return
		}

		page, size := parsePagination(r)

		orders, total, err := h.orderService.ListOrdersByUser(r.Context(), claims.UserID, page, size)
		if err != nil {
			logger.Error("Failed to list orders", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, models.PaginatedResponse{
			Data:     orders,
			Total:    total,
			Page:     page,
			PageSize: size,
		})
	}
}

// ListAllOrders returns every order in the system, newest first. Admin only.
func (h *OrderHandler) ListAllOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		page, size := parsePagination(r)

		orders, total, err := h.orderService.ListAllOrders(r.Context(), page, size)
		if err != nil {
			logger.Error("Failed to list all orders", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, models.PaginatedResponse{
			Data:     orders,
			Total:    total,
			Page:     page,
			PageSize: size,
		})
	}
}

func (h *OrderHandler) UpdateOrderStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		id, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, errors.BadRequestError("Invalid order ID"))

			return
		}

		var req models.UpdateOrderStatusRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		order, err := h.orderService.UpdateOrderStatus(r.Context(), id, req.Status)
		if err != nil {
			logger.Error("Failed to update order status", slog.String("orderId", id.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Order status updated", slog.String("orderId", id.String()), slog.String("status", string(req.Status)))
		response.Success(w, http.StatusOK, order)
	}
}

func (h *OrderHandler) UpdatePaymentStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		id, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, errors.BadRequestError("Invalid order ID"))

			return
		}

		var req models.UpdatePaymentStatusRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		order, err := h.orderService.UpdatePaymentStatus(r.Context(), id, req.Status)
		if err != nil {
			logger.Error("Failed to update payment status", slog.String("orderId", id.String()), slog.Any("error", err))
			response.Error(w, err)

			return
		}

		logger.Info("Payment status updated", slog.String("orderId", id.String()), slog.String("status", string(req.Status)))
		response.Success(w, http.StatusOK, order)
	}
}

func parsePagination(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	size, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))

	if page < 1 {
		page = 1
	}

	if size < 1 || size > 100 {
		size = 20
	}

	return page, size
}
