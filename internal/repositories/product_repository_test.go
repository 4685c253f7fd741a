package repository_test

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbankart/storefront/internal/models"
	repository "github.com/urbankart/storefront/internal/repositories"
)

func TestNewProductRepo(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewProductRepo(db)
	assert.NotNil(t, repo)
}

func TestProductRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewProductRepo(db)
	ctx := t.Context()

	productColumns := []string{
		"id", "name", "slug", "description", "image", "price", "original_price",
		"discount_percent", "stock", "sizes", "status", "created_at", "updated_at",
	}

	t.Run("GetProductByID", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			// Arrange
			id := uuid.New()
			now := time.Now()
			sizesJSON, _ := json.Marshal([]models.SizeStock{{Size: "L", Stock: 3}})

			mock.ExpectQuery("SELECT (.+) FROM products").
				WithArgs(id).
				WillReturnRows(sqlmock.NewRows(productColumns).
					AddRow(id, "Hoodie", "hoodie", "Warm", "img.jpg", 1499.0, 1999.0, 25, 10, sizesJSON, "active", now, now))

			// Act
			product, err := repo.GetProductByID(ctx, id)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, id, product.ID)
			assert.Equal(t, 10, product.Stock)
			require.Len(t, product.Sizes, 1)
			assert.Equal(t, "L", product.Sizes[0].Size)
			require.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("Not Found", func(t *testing.T) {
			// Arrange
			id := uuid.New()

			mock.ExpectQuery("SELECT (.+) FROM products").
				WithArgs(id).
				WillReturnError(sql.ErrNoRows)

			// Act
			product, err := repo.GetProductByID(ctx, id)

			// Assert
			assert.Nil(t, product)
			assert.ErrorIs(t, err, sql.ErrNoRows)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	})

	t.Run("DecrementStock", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			// Arrange
			id := uuid.New()

			mock.ExpectExec("UPDATE products").
				WithArgs(id, 2).
				WillReturnResult(sqlmock.NewResult(0, 1))

			// Act
			err := repo.DecrementStock(ctx, id, 2)

			// Assert
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("Zero Rows Means Insufficient Stock", func(t *testing.T) {
			// Arrange
			id := uuid.New()

			mock.ExpectExec("UPDATE products").
				WithArgs(id, 5).
				WillReturnResult(sqlmock.NewResult(0, 0))

			// Act
			err := repo.DecrementStock(ctx, id, 5)

			// Assert
			assert.ErrorIs(t, err, repository.ErrInsufficientStock)
			require.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("Exec Error", func(t *testing.T) {
			// Arrange
			id := uuid.New()
			dbError := errors.New("connection reset")

			mock.ExpectExec("UPDATE products").
				WithArgs(id, 1).
				WillReturnError(dbError)

			// Act
			err := repo.DecrementStock(ctx, id, 1)

			// Assert
			assert.ErrorIs(t, err, dbError)
			assert.NotErrorIs(t, err, repository.ErrInsufficientStock)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	})

	t.Run("RestoreStock", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			// Arrange
			id := uuid.New()

			mock.ExpectExec("UPDATE products").
				WithArgs(id, 2).
				WillReturnResult(sqlmock.NewResult(0, 1))

			// Act
			err := repo.RestoreStock(ctx, id, 2)

			// Assert
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("Missing Product", func(t *testing.T) {
			// Arrange
			id := uuid.New()

			mock.ExpectExec("UPDATE products").
				WithArgs(id, 2).
				WillReturnResult(sqlmock.NewResult(0, 0))

			// Act
			err := repo.RestoreStock(ctx, id, 2)

			// Assert
			assert.ErrorIs(t, err, sql.ErrNoRows)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	})

	t.Run("ListProducts", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			// Arrange
			now := time.Now()

			mock.ExpectQuery("SELECT COUNT").
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

			mock.ExpectQuery("SELECT (.+) FROM products").
				WithArgs(2, 0).
				WillReturnRows(sqlmock.NewRows(productColumns).
					AddRow(uuid.New(), "Hoodie", "hoodie", "", "", 1499.0, 1999.0, 25, 10, []byte(nil), "active", now, now).
					AddRow(uuid.New(), "Joggers", "joggers", "", "", 999.0, 999.0, 0, 4, []byte(nil), "active", now, now))

			// Act
			products, total, err := repo.ListProducts(ctx, 1, 2)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, 2, total)
			assert.Len(t, products, 2)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	})
}
