package models

import (
	"time"

	"github.com/google/uuid"
)

// SizeStock is per-size inventory for sized products. Stock on the product
// itself stays the authoritative global count.
type SizeStock struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

type Product struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Slug            string      `json:"slug"`
	Description     string      `json:"description"`
	Image           string      `json:"image"`
	Price           float64     `json:"price"`
	OriginalPrice   float64     `json:"original_price"`
	DiscountPercent int         `json:"discount_percent"`
	Stock           int         `json:"stock"`
	Sizes           []SizeStock `json:"sizes,omitempty"`
	Status          string      `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type CreateProductRequest struct {
	Name            string      `json:"name" validate:"required,min=3,max=200"`
	Slug            string      `json:"slug" validate:"required,min=3,max=200"`
	Description     string      `json:"description,omitempty"`
	Image           string      `json:"image,omitempty"`
	Price           float64     `json:"price" validate:"required,gt=0"`
	OriginalPrice   float64     `json:"original_price" validate:"omitempty,gt=0"`
	DiscountPercent int         `json:"discount_percent" validate:"omitempty,gte=0,lte=100"`
	Stock           int         `json:"stock" validate:"gte=0"`
	Sizes           []SizeStock `json:"sizes,omitempty"`
}

type UpdateProductRequest struct {
	Name            *string      `json:"name,omitempty" validate:"omitempty,min=3,max=200"`
	Description     *string      `json:"description,omitempty"`
	Image           *string      `json:"image,omitempty"`
	Price           *float64     `json:"price,omitempty" validate:"omitempty,gt=0"`
	OriginalPrice   *float64     `json:"original_price,omitempty" validate:"omitempty,gt=0"`
	DiscountPercent *int         `json:"discount_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	Stock           *int         `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Sizes           *[]SizeStock `json:"sizes,omitempty"`
	Status          *string      `json:"status,omitempty" validate:"omitempty,oneof=active inactive discontinued"`
}
