package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem carries a price snapshot taken at add time. The cart keeps working
// even if the product price changes afterwards.
type CartItem struct {
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
}

// Key identifies a cart line. Two lines never share a key.
func (i CartItem) Key() string {
	return i.ProductID.String() + "|" + i.Size + "|" + i.Color
}

func (i CartItem) LineTotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

type Cart struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Items       []CartItem `json:"items"`
	TotalAmount float64    `json:"total_amount"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// FindItem returns the index of the line with the given key, or -1.
func (c *Cart) FindItem(key string) int {
	for i := range c.Items {
		if c.Items[i].Key() == key {
			return i
		}
	}

	return -1
}

func (c *Cart) RecalculateTotal() {
	var total float64
	for _, item := range c.Items {
		total += item.LineTotal()
	}

	c.TotalAmount = total
}

type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"   validate:"required,min=1"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
}

type UpdateQuantityRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
}

type RemoveItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
}

// SyncCartRequest replaces the server cart wholesale with the client's local
// items. Used when a guest cart migrates into an authenticated cart.
type SyncCartRequest struct {
	Items []CartItem `json:"items" validate:"required"`
}
