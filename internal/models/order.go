package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

type PaymentStatus string

type PaymentMethod string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"

	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"

	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
)

type Address struct {
	Name    string `json:"name" validate:"required"`
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Zip     string `json:"zip" validate:"required"`
	Country string `json:"country" validate:"required"`
	Phone   string `json:"phone" validate:"required,min=7,max=15"`
}

// OrderItem is the immutable, order-scoped copy of a cart line, frozen at
// order creation time.
type OrderItem struct {
	ID              uuid.UUID `json:"id"`
	OrderID         uuid.UUID `json:"order_id"`
	ProductID       uuid.UUID `json:"product_id"`
	Title           string    `json:"title"`
	Image           string    `json:"image"`
	Slug            string    `json:"slug"`
	UnitPrice       float64   `json:"unit_price"`
	OriginalPrice   float64   `json:"original_price"`
	DiscountPercent int       `json:"discount_percent"`
	Quantity        int       `json:"quantity"`
	Size            string    `json:"size,omitempty"`
	Color           string    `json:"color,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type Order struct {
	ID                uuid.UUID     `json:"id"`
	UserID            uuid.UUID     `json:"user_id"`
	Items             []OrderItem   `json:"items"`
	TotalAmount       float64       `json:"total_amount"`
	ShippingAddress   *Address      `json:"shipping_address"`
	PaymentMethod     PaymentMethod `json:"payment_method"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	OrderStatus       OrderStatus   `json:"order_status"`
	RazorpayOrderID   string        `json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID string        `json:"razorpay_payment_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

type CreateOrderRequest struct {
	ShippingAddress Address       `json:"shipping_address" validate:"required"`
	PaymentMethod   PaymentMethod `json:"payment_method" validate:"required,oneof=cod online"`
}

// CreateOrderResponse tells the caller whether a payment step is still
// required (Online orders) before stock is committed.
type CreateOrderResponse struct {
	Order           *Order `json:"order"`
	PaymentRequired bool   `json:"payment_required"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

type UpdatePaymentStatusRequest struct {
	Status PaymentStatus `json:"status" validate:"required,oneof=pending paid failed"`
}

type CreateGatewayOrderRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

type CreateGatewayOrderResponse struct {
	RazorpayOrderID string  `json:"razorpay_order_id"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}
