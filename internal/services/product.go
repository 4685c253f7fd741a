package service

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/urbankart/storefront/internal/api/middleware"
	"github.com/urbankart/storefront/internal/cache"
	"github.com/urbankart/storefront/internal/config"
	"github.com/urbankart/storefront/internal/errors"
	"github.com/urbankart/storefront/internal/models"
	repository "github.com/urbankart/storefront/internal/repositories"
)

type ProductService interface {
	CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *models.UpdateProductRequest) (*models.Product, error)
	ListProducts(ctx context.Context, page, pageSize int) ([]*models.Product, int, error)
}

type productService struct {
	repo      repository.ProductRepository
	cache     cache.Cache
	cfg       *config.CacheConfig
	sanitizer *bluemonday.Policy
}

func NewProductService(repo repository.ProductRepository, productCache cache.Cache, cacheCfg *config.CacheConfig) ProductService {
	return &productService{
		repo:      repo,
		cache:     productCache,
		cfg:       cacheCfg,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *productService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {

	product := &models.Product{
		ID:              uuid.New(),
		Name:            s.sanitizer.Sanitize(req.Name),
		Slug:            req.Slug,
		Description:     s.sanitizer.Sanitize(req.Description),
		Image:           req.Image,
		Price:           req.Price,
		OriginalPrice:   req.OriginalPrice,
		DiscountPercent: req.DiscountPercent,
		Stock:           req.Stock,
		Sizes:           req.Sizes,
		Status:          "active",
	}

	if product.OriginalPrice == 0 {
		product.OriginalPrice = product.Price
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, errors.DatabaseError("Failed to create product").WithError(err)
	}

	return product, nil
}

// GetProductByID serves catalog reads through the cache. Stock-sensitive
// flows (cart, order) read the repository directly so checks see live stock.
func (s *productService) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {

	logger := middleware.LoggerFromContext(ctx)

	key := cache.Key(cache.ProductKeyPrefix, id.String())

	product := &models.Product{}

	found, err := s.cache.Get(ctx, key, product)
	if err != nil {
		logger.Warn("Product cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	if found {
		return product, nil
	}

	product, err = s.repo.GetProductByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Product not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve product").WithError(err)
	}

	if err := s.cache.Set(ctx, key, product, s.cfg.ProductTTL); err != nil {
		logger.Warn("Product cache write failed", slog.String("key", key), slog.Any("error", err))
	}

	return product, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, req *models.UpdateProductRequest) (*models.Product, error) {

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Product not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve product").WithError(err)
	}

	if req.Name != nil {
		product.Name = s.sanitizer.Sanitize(*req.Name)
	}

	if req.Description != nil {
		product.Description = s.sanitizer.Sanitize(*req.Description)
	}

	if req.Image != nil {
		product.Image = *req.Image
	}

	if req.Price != nil {
		product.Price = *req.Price
	}

	if req.OriginalPrice != nil {
		product.OriginalPrice = *req.OriginalPrice
	}

	if req.DiscountPercent != nil {
		product.DiscountPercent = *req.DiscountPercent
	}

	if req.Stock != nil {
		product.Stock = *req.Stock
	}

	if req.Sizes != nil {
		product.Sizes = *req.Sizes
	}

	if req.Status != nil {
		product.Status = *req.Status
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, errors.DatabaseError("Failed to update product").WithError(err)
	}

	if err := s.cache.Delete(ctx, cache.Key(cache.ProductKeyPrefix, id.String())); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Product cache invalidation failed", slog.Any("error", err))
	}

	return product, nil
}

func (s *productService) ListProducts(ctx context.Context, page, pageSize int) ([]*models.Product, int, error) {

	if page < 1 {
		page = 1
	}

	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	products, total, err := s.repo.ListProducts(ctx, page, pageSize)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to fetch products").WithError(err)
	}

	return products, total, nil
}
