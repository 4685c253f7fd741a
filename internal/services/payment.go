package service

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/urbankart/storefront/internal/api/middleware"
	"github.com/urbankart/storefront/internal/config"
	"github.com/urbankart/storefront/internal/errors"
	"github.com/urbankart/storefront/internal/metrics"
	"github.com/urbankart/storefront/internal/models"
	repository "github.com/urbankart/storefront/internal/repositories"
	"github.com/urbankart/storefront/pkg/razorpay"
)

type PaymentService interface {
	CreateGatewayOrder(ctx context.Context, claims *models.Claims, req *models.CreateGatewayOrderRequest) (*models.CreateGatewayOrderResponse, error)
	VerifyPayment(ctx context.Context, claims *models.Claims, req *models.VerifyPaymentRequest) (*models.Order, error)
}

type paymentService struct {
	orderRepo    repository.OrderRepository
	productRepo  repository.ProductRepository
	cartService  CartService
	notification NotificationService
	gateway      razorpay.Client
	cfg          *config.Razorpay
}

func NewPaymentService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	cartService CartService,
	notification NotificationService,
	gateway razorpay.Client,
	cfg *config.Razorpay,
) PaymentService {
	return &paymentService{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		cartService:  cartService,
		notification: notification,
		gateway:      gateway,
		cfg:          cfg,
	}
}

// CreateGatewayOrder opens the payment-gateway side of a pending Online
// order. Idempotent per order: a stored gateway order id is reused instead of
// opening a second one, so re-invocation can never double-charge.
func (s *paymentService) CreateGatewayOrder(ctx context.Context, claims *models.Claims, req *models.CreateGatewayOrderRequest) (*models.CreateGatewayOrderResponse, error) {

	order, err := s.loadOwnedOrder(ctx, claims, req.OrderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentMethod != models.PaymentMethodOnline {
		return nil, errors.BadRequestError("Order is not an online-payment order")
	}

	if order.PaymentStatus != models.PaymentStatusPending {
		return nil, errors.BadRequestError("Order payment is already settled")
	}

	if order.RazorpayOrderID != "" {
		return s.gatewayOrderResponse(order), nil
	}

	amountPaise := int64(math.Round(order.TotalAmount * 100))

	gatewayOrderID, err := s.gateway.CreateOrder(amountPaise, s.cfg.Currency, order.ID.String())
	if err != nil {
		return nil, errors.ThirdPartyError("Failed to create gateway order").WithError(err)
	}

	if err := s.orderRepo.SetRazorpayOrderID(ctx, order.ID, gatewayOrderID); err != nil {
		return nil, errors.DatabaseError("Failed to store gateway order id").WithError(err)
	}

	order.RazorpayOrderID = gatewayOrderID

	return s.gatewayOrderResponse(order), nil
}

func (s *paymentService) gatewayOrderResponse(order *models.Order) *models.CreateGatewayOrderResponse {
	return &models.CreateGatewayOrderResponse{
		RazorpayOrderID: order.RazorpayOrderID,
		Amount:          order.TotalAmount,
		Currency:        s.cfg.Currency,
	}
}

// VerifyPayment drives the Online order through its terminal payment state.
//
// Signature mismatch: paymentStatus becomes Failed, nothing else moves.
// Signature match: the same all-or-nothing conditional decrement batch as COD
// runs now. If stock vanished between order creation and verification, all
// applied decrements are rolled back and the order stays Pending for manual
// reconciliation: the payment is real, the goods are not, and that conflict
// is not resolvable in-band.
//
// Concurrent verifications of one order are serialized by the conditional
// MarkPaid claim; the loser rolls its own decrements back and reports
// success, so stock moves exactly once.
func (s *paymentService) VerifyPayment(ctx context.Context, claims *models.Claims, req *models.VerifyPaymentRequest) (*models.Order, error) {

	logger := middleware.LoggerFromContext(ctx)

	order, err := s.orderRepo.GetOrderByRazorpayOrderID(ctx, req.RazorpayOrderID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Order not found for gateway order id").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve order").WithError(err)
	}

	if order.UserID != claims.UserID && !claims.IsAdmin() {
		return nil, errors.ForbiddenError("You don't have permission to access this order")
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		// Duplicate callback after a completed verification; report success
		// without touching stock or cart again.
		return order, nil
	}

	if !s.gateway.VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {

		if err := s.orderRepo.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusFailed); err != nil {
			logger.Error("Failed to persist failed payment status", slog.String("orderId", order.ID.String()), slog.Any("error", err))
		}

		order.PaymentStatus = models.PaymentStatusFailed
		metrics.PaymentVerification("failed")

		return nil, errors.PaymentVerificationFailedError("Payment signature verification failed")
	}

	if err := commitStock(ctx, s.productRepo, order.Items); err != nil {
		logger.Error("Paid order could not commit stock",
			slog.String("orderId", order.ID.String()),
			slog.Any("error", err))

		return nil, err
	}

	if err := s.orderRepo.MarkPaid(ctx, order.ID, req.RazorpayPaymentID); err != nil {
		rollbackStock(ctx, s.productRepo, order.Items, len(order.Items))

		if stdErrors.Is(err, repository.ErrOrderAlreadySettled) {
			// A concurrent verification claimed the order between our status
			// read and the MarkPaid claim. Its decrements stand, ours are
			// undone, so stock still moved exactly once for this order.
			logger.Info("Duplicate payment verification lost the claim race", slog.String("orderId", order.ID.String()))

			order.PaymentStatus = models.PaymentStatusPaid
			order.OrderStatus = models.OrderStatusConfirmed
			order.RazorpayPaymentID = req.RazorpayPaymentID

			return order, nil
		}

		return nil, errors.DatabaseError("Failed to mark order paid").WithError(err)
	}

	order.PaymentStatus = models.PaymentStatusPaid
	order.OrderStatus = models.OrderStatusConfirmed
	order.RazorpayPaymentID = req.RazorpayPaymentID
	metrics.PaymentVerification("success")

	if _, err := s.cartService.Clear(ctx, order.UserID); err != nil {
		logger.Error("Failed to clear cart after payment", slog.String("orderId", order.ID.String()), slog.Any("error", err))
	}

	if err := s.notification.SendOrderConfirmation(ctx, order, claims.Email, claims.Name); err != nil {
		logger.Warn("Order confirmation notification failed", slog.String("orderId", order.ID.String()), slog.Any("error", err))
	}

	return order, nil
}

func (s *paymentService) loadOwnedOrder(ctx context.Context, claims *models.Claims, id uuid.UUID) (*models.Order, error) {

	order, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Order not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve order").WithError(err)
	}

	if order.UserID != claims.UserID && !claims.IsAdmin() {
		return nil, errors.ForbiddenError("You don't have permission to access this order")
	}

	return order, nil
}

