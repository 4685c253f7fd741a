package service

import (
	"context"
	stdErrors "errors"
	"log/slog"

	"github.com/urbankart/storefront/internal/api/middleware"
	"github.com/urbankart/storefront/internal/errors"
	"github.com/urbankart/storefront/internal/metrics"
	"github.com/urbankart/storefront/internal/models"
	repository "github.com/urbankart/storefront/internal/repositories"
)

// commitStock applies the conditional decrement across all order lines as one
// all-or-nothing batch: on the first failing line every already-applied line
// is restored before the error surfaces. This is the only path that commits
// inventory to an order.
func commitStock(ctx context.Context, repo repository.ProductRepository, items []models.OrderItem) error {

	for i, item := range items {

		err := repo.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err == nil {
			continue
		}

		rollbackStock(ctx, repo, items, i)

		if stdErrors.Is(err, repository.ErrInsufficientStock) {
			metrics.StockConflict()

			return errors.InsufficientStockError(item.Title)
		}

		return errors.DatabaseError("Failed to commit inventory").WithError(err)
	}

	return nil
}

func rollbackStock(ctx context.Context, repo repository.ProductRepository, items []models.OrderItem, applied int) {

	logger := middleware.LoggerFromContext(ctx)

	for j := range applied {
		if err := repo.RestoreStock(ctx, items[j].ProductID, items[j].Quantity); err != nil {
			// Nothing left to do in-band; flag loudly for reconciliation.
			logger.Error("Stock rollback failed",
				slog.String("productId", items[j].ProductID.String()),
				slog.Int("quantity", items[j].Quantity),
				slog.Any("error", err))
		}
	}
}
