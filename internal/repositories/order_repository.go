package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/urbankart/storefront/internal/models"
	"github.com/urbankart/storefront/internal/utils"
)

// ErrOrderAlreadySettled is returned when a conditional MarkPaid matches no
// row because a concurrent verification already settled the payment.
var ErrOrderAlreadySettled = errors.New("order payment already settled")

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]models.Order, int, error)
	ListAllOrders(ctx context.Context, page, size int) ([]models.Order, int, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error
	SetRazorpayOrderID(ctx context.Context, id uuid.UUID, razorpayOrderID string) error
	MarkPaid(ctx context.Context, id uuid.UUID, razorpayPaymentID string) error
}

type orderRepository struct {
	DB *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepository {
	return &orderRepository{DB: db}
}

// CreateOrder inserts the order and its line items in one transaction so a
// partially written order can never be observed.
func (r *orderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	shippingAddress, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer tx.Rollback()

	query := `
		INSERT INTO orders (id, user_id, total_amount, shipping_address, payment_method, payment_status, order_status, razorpay_order_id, razorpay_payment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`

	_, err = tx.ExecContext(dbCtx, query,
		order.ID, order.UserID, order.TotalAmount, shippingAddress,
		order.PaymentMethod, order.PaymentStatus, order.OrderStatus,
		order.RazorpayOrderID, order.RazorpayPaymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, title, image, slug, unit_price, original_price, discount_percent, quantity, size, color, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
	`

	for _, item := range order.Items {
		_, err := tx.ExecContext(dbCtx, itemQuery,
			item.ID, order.ID, item.ProductID, item.Title, item.Image, item.Slug,
			item.UnitPrice, item.OriginalPrice, item.DiscountPercent,
			item.Quantity, item.Size, item.Color,
		)
		if err != nil {
			return fmt.Errorf("failed to insert an order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, total_amount, shipping_address, payment_method, payment_status, order_status, razorpay_order_id, razorpay_payment_id, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	return r.scanOrder(dbCtx, r.DB.QueryRowContext(dbCtx, query, id))
}

func (r *orderRepository) GetOrderByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, total_amount, shipping_address, payment_method, payment_status, order_status, razorpay_order_id, razorpay_payment_id, created_at, updated_at
		FROM orders
		WHERE razorpay_order_id = $1
	`

	return r.scanOrder(dbCtx, r.DB.QueryRowContext(dbCtx, query, razorpayOrderID))
}

func (r *orderRepository) scanOrder(ctx context.Context, row *sql.Row) (*models.Order, error) {

	order := &models.Order{}

	var addressJSON []byte

	err := row.Scan(
		&order.ID, &order.UserID, &order.TotalAmount, &addressJSON,
		&order.PaymentMethod, &order.PaymentStatus, &order.OrderStatus,
		&order.RazorpayOrderID, &order.RazorpayPaymentID,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to get the order: %w", err)
	}

	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
	}

	items, err := r.fetchOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	order.Items = items

	return order, nil
}

func (r *orderRepository) fetchOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {

	query := `
		SELECT id, product_id, title, image, slug, unit_price, original_price, discount_percent, quantity, size, color, created_at
		FROM order_items
		WHERE order_id = $1
	`

	rows, err := r.DB.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get the order items: %w", err)
	}

	defer rows.Close()

	var items []models.OrderItem

	for rows.Next() {

		var item models.OrderItem

		err := rows.Scan(
			&item.ID, &item.ProductID, &item.Title, &item.Image, &item.Slug,
			&item.UnitPrice, &item.OriginalPrice, &item.DiscountPercent,
			&item.Quantity, &item.Size, &item.Color, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		item.OrderID = orderID

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *orderRepository) ListOrdersByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]models.Order, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	countQuery := `SELECT COUNT(*) FROM orders WHERE user_id = $1`

	if err := r.DB.QueryRowContext(dbCtx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * size

	query := `
		SELECT id, user_id, total_amount, shipping_address, payment_method, payment_status, order_status, razorpay_order_id, razorpay_payment_id, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	return r.listOrders(dbCtx, query, total, userID, size, offset)
}

func (r *orderRepository) ListAllOrders(ctx context.Context, page, size int) ([]models.Order, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	countQuery := `SELECT COUNT(*) FROM orders`

	if err := r.DB.QueryRowContext(dbCtx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * size

	query := `
		SELECT id, user_id, total_amount, shipping_address, payment_method, payment_status, order_status, razorpay_order_id, razorpay_payment_id, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	return r.listOrders(dbCtx, query, total, size, offset)
}

func (r *orderRepository) listOrders(ctx context.Context, query string, total int, args ...any) ([]models.Order, int, error) {

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	defer rows.Close()

	var orders []models.Order

	for rows.Next() {

		var order models.Order

		var addressJSON []byte

		err := rows.Scan(
			&order.ID, &order.UserID, &order.TotalAmount, &addressJSON,
			&order.PaymentMethod, &order.PaymentStatus, &order.OrderStatus,
			&order.RazorpayOrderID, &order.RazorpayPaymentID,
			&order.CreatedAt, &order.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan the orders: %w", err)
		}

		if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal shipping address: %w", err)
		}

		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range orders {
		items, err := r.fetchOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}

		orders[i].Items = items
	}

	return orders, total, nil
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	return r.execStatusWrite(ctx, `UPDATE orders SET order_status = $1, updated_at = $2 WHERE id = $3`, status, time.Now(), id)
}

func (r *orderRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error {
	return r.execStatusWrite(ctx, `UPDATE orders SET payment_status = $1, updated_at = $2 WHERE id = $3`, status, time.Now(), id)
}

func (r *orderRepository) SetRazorpayOrderID(ctx context.Context, id uuid.UUID, razorpayOrderID string) error {
	return r.execStatusWrite(ctx, `UPDATE orders SET razorpay_order_id = $1, updated_at = $2 WHERE id = $3`, razorpayOrderID, time.Now(), id)
}

// MarkPaid records the successful verification outcome in one statement. The
// payment_status guard makes it a claim: of two concurrent verifications only
// one matches the row, the other gets ErrOrderAlreadySettled. Callers always
// hold a freshly loaded order, so zero rows never means a missing one.
func (r *orderRepository) MarkPaid(ctx context.Context, id uuid.UUID, razorpayPaymentID string) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE orders
		SET payment_status = $1, order_status = $2, razorpay_payment_id = $3, updated_at = $4
		WHERE id = $5 AND payment_status <> $1
	`

	result, err := r.DB.ExecContext(dbCtx, query, models.PaymentStatusPaid, models.OrderStatusConfirmed, razorpayPaymentID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark the order paid: %w", err)
	}

	updatedRows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get updated rows: %w", err)
	}

	if updatedRows == 0 {
		return ErrOrderAlreadySettled
	}

	return nil
}

func (r *orderRepository) execStatusWrite(ctx context.Context, query string, args ...any) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	result, err := r.DB.ExecContext(dbCtx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update the order: %w", err)
	}

	updatedRows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get updated rows: %w", err)
	}

	if updatedRows == 0 {
		return sql.ErrNoRows
	}

	return nil
}
