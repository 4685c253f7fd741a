package service

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/urbankart/storefront/internal/api/middleware"
	"github.com/urbankart/storefront/internal/errors"
	"github.com/urbankart/storefront/internal/metrics"
	"github.com/urbankart/storefront/internal/models"
	repository "github.com/urbankart/storefront/internal/repositories"
)

type OrderService interface {
	CreateOrder(ctx context.Context, claims *models.Claims, req *models.CreateOrderRequest) (*models.CreateOrderResponse, error)
	GetOrderByID(ctx context.Context, claims *models.Claims, id uuid.UUID) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]models.Order, int, error)
	ListAllOrders(ctx context.Context, page, size int) ([]models.Order, int, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (*models.Order, error)
}

type orderService struct {
	orderRepo    repository.OrderRepository
	cartRepo     repository.CartRepository
	productRepo  repository.ProductRepository
	cartService  CartService
	notification NotificationService
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	cartService CartService,
	notification NotificationService,
) OrderService {
	return &orderService{
		orderRepo:    orderRepo,
		cartRepo:     cartRepo,
		productRepo:  productRepo,
		cartService:  cartService,
		notification: notification,
	}
}

// CreateOrder freezes the cart into an immutable order.
//
// COD commits stock immediately: every line goes through the conditional
// decrement, and a failure on any line rolls back the lines already applied
// before surfacing InsufficientStock. Online orders commit nothing here;
// stock and cart are only touched by a successful payment verification.
func (s *orderService) CreateOrder(ctx context.Context, claims *models.Claims, req *models.CreateOrderRequest) (*models.CreateOrderResponse, error) {

	logger := middleware.LoggerFromContext(ctx)

	cart, err := s.cartRepo.GetCartByUserID(ctx, claims.UserID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, errors.EmptyCartError("Cannot create order with empty cart")
		}

		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	if len(cart.Items) == 0 {
		return nil, errors.EmptyCartError("Cannot create order with empty cart")
	}

	order := buildOrder(claims.UserID, cart, req)

	if req.PaymentMethod == models.PaymentMethodCOD {

		if err := commitStock(ctx, s.productRepo, order.Items); err != nil {
			return nil, err
		}

		// COD needs no payment step, so the order is confirmed right away.
		order.OrderStatus = models.OrderStatusConfirmed

		if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
			rollbackStock(ctx, s.productRepo, order.Items, len(order.Items))

			return nil, errors.DatabaseError("Failed to create order").WithError(err)
		}

		s.finalizeOrder(ctx, claims, order)
		metrics.OrderCreated(string(order.PaymentMethod))

		return &models.CreateOrderResponse{Order: order, PaymentRequired: false}, nil
	}

	// Online: the order is persisted Pending/Pending and stock stays free for
	// other buyers until verification succeeds. Abandoned attempts therefore
	// never strand inventory.
	if err := s.validateStock(ctx, order.Items); err != nil {
		return nil, err
	}

	if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		return nil, errors.DatabaseError("Failed to create order").WithError(err)
	}

	logger.Info("Online order created, awaiting payment", slog.String("orderId", order.ID.String()))
	metrics.OrderCreated(string(order.PaymentMethod))

	return &models.CreateOrderResponse{Order: order, PaymentRequired: true}, nil
}

func buildOrder(userID uuid.UUID, cart *models.Cart, req *models.CreateOrderRequest) *models.Order {

	order := &models.Order{
		ID:            uuid.New(),
		UserID:        userID,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: models.PaymentStatusPending,
		OrderStatus:   models.OrderStatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	// Denormalized copy, not a link: later address edits never touch orders.
	address := req.ShippingAddress
	order.ShippingAddress = &address

	var total float64

	items := make([]models.OrderItem, 0, len(cart.Items))

	for _, line := range cart.Items {
		items = append(items, models.OrderItem{
			ID:              uuid.New(),
			OrderID:         order.ID,
			ProductID:       line.ProductID,
			Title:           line.Title,
			Image:           line.Image,
			Slug:            line.Slug,
			UnitPrice:       line.UnitPrice,
			OriginalPrice:   line.OriginalPrice,
			DiscountPercent: line.DiscountPercent,
			Quantity:        line.Quantity,
			Size:            line.Size,
			Color:           line.Color,
			CreatedAt:       time.Now(),
		})

		total += line.LineTotal()
	}

	order.Items = items
	order.TotalAmount = total

	return order
}

// validateStock is the read-only pre-check used for Online orders. It cannot
// reserve anything; the authoritative check happens at commit time.
func (s *orderService) validateStock(ctx context.Context, items []models.OrderItem) error {

	for _, item := range items {

		product, err := s.productRepo.GetProductByID(ctx, item.ProductID)
		if err != nil {
			if stdErrors.Is(err, sql.ErrNoRows) {
				return errors.NotFoundError("Product not found: " + item.Title).WithError(err)
			}

			return errors.DatabaseError("Failed to retrieve product").WithError(err)
		}

		if product.Stock < item.Quantity {
			return errors.InsufficientStockError(product.Name)
		}
	}

	return nil
}

// finalizeOrder clears the cart and fires the confirmation. Both are
// best-effort relative to the already-committed order: the order stands even
// if either fails.
func (s *orderService) finalizeOrder(ctx context.Context, claims *models.Claims, order *models.Order) {

	logger := middleware.LoggerFromContext(ctx)

	if _, err := s.cartService.Clear(ctx, claims.UserID); err != nil {
		logger.Error("Failed to clear cart after order", slog.String("orderId", order.ID.String()), slog.Any("error", err))
	}

	if err := s.notification.SendOrderConfirmation(ctx, order, claims.Email, claims.Name); err != nil {
		logger.Warn("Order confirmation notification failed", slog.String("orderId", order.ID.String()), slog.Any("error", err))
	}
}

func (s *orderService) GetOrderByID(ctx context.Context, claims *models.Claims, id uuid.UUID) (*models.Order, error) {

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

func (s *orderService) ListOrdersByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]models.Order, int, error) {

	page, size = normalizePage(page, size)

	orders, total, err := s.orderRepo.ListOrdersByUser(ctx, userID, page, size)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to fetch orders").WithError(err)
	}

	return orders, total, nil
}

func (s *orderService) ListAllOrders(ctx context.Context, page, size int) ([]models.Order, int, error) {

	page, size = normalizePage(page, size)

	orders, total, err := s.orderRepo.ListAllOrders(ctx, page, size)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to fetch orders").WithError(err)
	}

	return orders, total, nil
}

// UpdateOrderStatus is the administrative transition. Cancelled does not
// restock: compensation after commitment is a manual, out-of-band decision.
func (s *orderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {

	order, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Order not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve order").WithError(err)
	}

	if err := s.orderRepo.UpdateOrderStatus(ctx, id, status); err != nil {
		return nil, errors.DatabaseError("Failed to update order status").WithError(err)
	}

	order.OrderStatus = status

	return order, nil
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (*models.Order, error) {

	order, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Order not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve order").WithError(err)
	}

	if err := s.orderRepo.UpdatePaymentStatus(ctx, id, status); err != nil {
		return nil, errors.DatabaseError("Failed to update payment status").WithError(err)
	}

	order.PaymentStatus = status

	return order, nil
}

func normalizePage(page, size int) (int, int) {

	if page < 1 {
		page = 1
	}

	if size < 1 || size > 100 {
		size = 10
	}

	return page, size
}
