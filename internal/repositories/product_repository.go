package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/urbankart/storefront/internal/models"
	"github.com/urbankart/storefront/internal/utils"
)

// ErrInsufficientStock is returned when a conditional decrement matches no
// row, meaning current stock is below the requested quantity.
var ErrInsufficientStock = errors.New("insufficient stock")

type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	ListProducts(ctx context.Context, page, size int) ([]*models.Product, int, error)
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error
	RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type productRepository struct {
	DB *sql.DB
}

func NewProductRepo(db *sql.DB) ProductRepository {
	return &productRepository{DB: db}
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	sizesJSON, err := json.Marshal(product.Sizes)
	if err != nil {
		return fmt.Errorf("failed to marshal product sizes: %w", err)
	}

	query := `
		INSERT INTO products (id, name, slug, description, image, price, original_price, discount_percent, stock, sizes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query,
		product.ID, product.Name, product.Slug, product.Description, product.Image,
		product.Price, product.OriginalPrice, product.DiscountPercent,
		product.Stock, sizesJSON, product.Status,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
}

func (r *productRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	product := &models.Product{}

	query := `
		SELECT id, name, slug, description, image, price, original_price, discount_percent, stock, sizes, status, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var sizesJSON []byte

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(
		&product.ID, &product.Name, &product.Slug, &product.Description, &product.Image,
		&product.Price, &product.OriginalPrice, &product.DiscountPercent,
		&product.Stock, &sizesJSON, &product.Status, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	if len(sizesJSON) > 0 {
		if err := json.Unmarshal(sizesJSON, &product.Sizes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product sizes: %w", err)
		}
	}

	return product, nil
}

func (r *productRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	sizesJSON, err := json.Marshal(product.Sizes)
	if err != nil {
		return fmt.Errorf("failed to marshal product sizes: %w", err)
	}

	query := `
		UPDATE products
		SET name = $1, description = $2, image = $3, price = $4, original_price = $5, discount_percent = $6, stock = $7, sizes = $8, status = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query,
		product.Name, product.Description, product.Image,
		product.Price, product.OriginalPrice, product.DiscountPercent,
		product.Stock, sizesJSON, product.Status, product.ID,
	).Scan(&product.UpdatedAt)
}

func (r *productRepository) ListProducts(ctx context.Context, page, size int) ([]*models.Product, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	countQuery := `SELECT COUNT(*) FROM products`

	if err := r.DB.QueryRowContext(dbCtx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * size

	query := `
		SELECT id, name, slug, description, image, price, original_price, discount_percent, stock, sizes, status, created_at, updated_at
		FROM products
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.DB.QueryContext(dbCtx, query, size, offset)
	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	var products []*models.Product

	for rows.Next() {
		product := &models.Product{}

		var sizesJSON []byte

		err := rows.Scan(
			&product.ID, &product.Name, &product.Slug, &product.Description, &product.Image,
			&product.Price, &product.OriginalPrice, &product.DiscountPercent,
			&product.Stock, &sizesJSON, &product.Status, &product.CreatedAt, &product.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}

		if len(sizesJSON) > 0 {
			if err := json.Unmarshal(sizesJSON, &product.Sizes); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal product sizes: %w", err)
			}
		}

		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// DecrementStock applies a single conditional statement so that two racing
// callers can never drive stock negative. Zero rows affected means stock was
// below the requested quantity and nothing was written.
func (r *productRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`

	result, err := r.DB.ExecContext(dbCtx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return ErrInsufficientStock
	}

	return nil
}

// RestoreStock undoes a previously applied decrement. Only used to roll back
// partial batches; never exposed as a business operation.
func (r *productRepository) RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.DB.ExecContext(dbCtx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
