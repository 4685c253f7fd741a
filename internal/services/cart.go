package service

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/urbankart/storefront/internal/errors"
	"github.com/urbankart/storefront/internal/models"
	repository "github.com/urbankart/storefront/internal/repositories"
)

type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, req *models.AddItemRequest) (*models.Cart, error)
	UpdateQuantity(ctx context.Context, userID uuid.UUID, req *models.UpdateQuantityRequest) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, req *models.RemoveItemRequest) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	ReplaceItems(ctx context.Context, userID uuid.UUID, items []models.CartItem) (*models.Cart, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) CartService {
	return &cartService{cartRepo: cartRepo, productRepo: productRepo}
}

// GetCart lazily creates an empty cart on first access.
func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return s.getOrCreateCart(ctx, userID)
}

func (s *cartService) getOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {

	cart, err := s.cartRepo.GetCartByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}

	if !stdErrors.Is(err, sql.ErrNoRows) {
		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	cart = &models.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Items:     []models.CartItem{},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.cartRepo.CreateCart(ctx, cart); err != nil {
		return nil, errors.DatabaseError("Failed to create cart").WithError(err)
	}

	return cart, nil
}

// AddItem merges into an existing line or appends a new one with a price
// snapshot taken from the product right now. The stock check runs against the
// resulting line quantity, not just the delta.
func (s *cartService) AddItem(ctx context.Context, userID uuid.UUID, req *models.AddItemRequest) (*models.Cart, error) {

	product, err := s.productRepo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Product not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve product").WithError(err)
	}

	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	line := models.CartItem{
		ProductID: req.ProductID,
		Size:      req.Size,
		Color:     req.Color,
	}

	idx := cart.FindItem(line.Key())

	requestedQuantity := req.Quantity
	if idx >= 0 {
		requestedQuantity += cart.Items[idx].Quantity
	}

	if product.Stock < requestedQuantity {
		return nil, errors.InsufficientStockError(product.Name)
	}

	if idx >= 0 {
		cart.Items[idx].Quantity = requestedQuantity
	} else {
		cart.Items = append(cart.Items, models.CartItem{
			ProductID:       product.ID,
			Title:           product.Name,
			Image:           product.Image,
			Slug:            product.Slug,
			UnitPrice:       product.Price,
			OriginalPrice:   product.OriginalPrice,
			DiscountPercent: product.DiscountPercent,
			Quantity:        req.Quantity,
			Size:            req.Size,
			Color:           req.Color,
		})
	}

	return s.persist(ctx, cart)
}

// UpdateQuantity replaces a line's quantity. A quantity below one behaves
// exactly like RemoveItem.
func (s *cartService) UpdateQuantity(ctx context.Context, userID uuid.UUID, req *models.UpdateQuantityRequest) (*models.Cart, error) {

	if req.Quantity < 1 {
		return s.RemoveItem(ctx, userID, &models.RemoveItemRequest{
			ProductID: req.ProductID,
			Size:      req.Size,
			Color:     req.Color,
		})
	}

	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	line := models.CartItem{ProductID: req.ProductID, Size: req.Size, Color: req.Color}

	idx := cart.FindItem(line.Key())
	if idx < 0 {
		return nil, errors.NotFoundError("Item not found in the cart")
	}

	// Re-validate against live stock so a stale cart cannot oversell later.
	product, err := s.productRepo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Product not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve product").WithError(err)
	}

	if product.Stock < req.Quantity {
		return nil, errors.InsufficientStockError(product.Name)
	}

	cart.Items[idx].Quantity = req.Quantity

	return s.persist(ctx, cart)
}

// RemoveItem is idempotent: removing an absent line is a no-op success.
func (s *cartService) RemoveItem(ctx context.Context, userID uuid.UUID, req *models.RemoveItemRequest) (*models.Cart, error) {

	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	line := models.CartItem{ProductID: req.ProductID, Size: req.Size, Color: req.Color}

	idx := cart.FindItem(line.Key())
	if idx < 0 {
		return cart, nil
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)

	return s.persist(ctx, cart)
}

func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {

	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.Items = []models.CartItem{}

	return s.persist(ctx, cart)
}

// ReplaceItems overwrites the server cart wholesale with the client-supplied
// set: the migration path for a guest cart after login. Last write wins,
// no quantity merge with whatever the server held before. Invalid lines are
// dropped and quantities are clamped to live stock rather than failing the
// sync.
func (s *cartService) ReplaceItems(ctx context.Context, userID uuid.UUID, items []models.CartItem) (*models.Cart, error) {

	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	replacement := make([]models.CartItem, 0, len(items))
	seen := make(map[string]int)

	for _, item := range items {

		if item.ProductID == uuid.Nil || item.Quantity < 1 {
			continue
		}

		product, err := s.productRepo.GetProductByID(ctx, item.ProductID)
		if err != nil {
			if stdErrors.Is(err, sql.ErrNoRows) {
				continue
			}

			return nil, errors.DatabaseError("Failed to retrieve product").WithError(err)
		}

		if product.Stock < 1 {
			continue
		}

		if item.Quantity > product.Stock {
			item.Quantity = product.Stock
		}

		// Snapshot fields come from the client copy, but identity fields are
		// refreshed from the catalog so a stale local cart cannot rename a
		// product or point at a dead image.
		item.Title = product.Name
		item.Image = product.Image
		item.Slug = product.Slug

		if idx, dup := seen[item.Key()]; dup {
			replacement[idx].Quantity = min(replacement[idx].Quantity+item.Quantity, product.Stock)

			continue
		}

		seen[item.Key()] = len(replacement)
		replacement = append(replacement, item)
	}

	cart.Items = replacement

	return s.persist(ctx, cart)
}

func (s *cartService) persist(ctx context.Context, cart *models.Cart) (*models.Cart, error) {

	cart.UpdatedAt = time.Now()
	cart.RecalculateTotal()

	if err := s.cartRepo.UpdateCart(ctx, cart); err != nil {
		return nil, errors.DatabaseError("Failed to update cart").WithError(err)
	}

	return cart, nil
}
