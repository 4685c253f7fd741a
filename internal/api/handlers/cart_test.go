package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/urbankart/storefront/internal/api/handlers"
	appErrors "github.com/urbankart/storefront/internal/errors"
	"github.com/urbankart/storefront/internal/models"
	"github.com/urbankart/storefront/internal/testutils"
	"github.com/urbankart/storefront/internal/utils/response"
)

func setupCartTest() (*MockCartService, *handlers.CartHandler) {
	mockService := new(MockCartService)
	handler := handlers.NewCartHandler(mockService)

	return mockService, handler
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) *response.APIResponse {
	t.Helper()

	var resp response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	return &resp
}

func TestGetCartHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("Success - Returns Cart", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()
		cart := &models.Cart{ID: uuid.New(), UserID: userID}

		mockService.On("GetCart", mock.Anything, userID).Return(cart, nil).Once()

		req := testutils.CreateTestRequestWithContext(http.MethodGet, "/api/v1/cart", nil, userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.GetCart().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		assert.NotNil(t, resp.Data)
		mockService.AssertExpectations(t)
	})

	t.Run("Failure - Missing Claims", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()

		req := testutils.CreateTestRequestWithoutContext(http.MethodGet, "/api/v1/cart", nil, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.GetCart().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		resp := decodeResponse(t, rec)
		assert.False(t, resp.Success)
		assert.Equal(t, appErrors.ErrCodeUnauthorized, resp.Error.Code)
		mockService.AssertNotCalled(t, "GetCart")
	})

	t.Run("Failure - Service Error", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()

		mockService.On("GetCart", mock.Anything, userID).
			Return(nil, appErrors.DatabaseError("Failed to load cart").WithError(assert.AnError)).Once()

		req := testutils.CreateTestRequestWithContext(http.MethodGet, "/api/v1/cart", nil, userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.GetCart().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		resp := decodeResponse(t, rec)
		assert.False(t, resp.Success)
		mockService.AssertExpectations(t)
	})
}

func TestAddItemHandler(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()

	t.Run("Success - Item Added", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()
		cart := &models.Cart{
			ID:     uuid.New(),
			UserID: userID,
			Items:  []models.CartItem{{ProductID: productID, Quantity: 2, UnitPrice: 1499}},
		}

		mockService.On("AddItem", mock.Anything, userID, mock.MatchedBy(func(req *models.AddItemRequest) bool {
			return req.ProductID == productID && req.Quantity == 2 && req.Size == "M"
		})).Return(cart, nil).Once()

		body, _ := json.Marshal(models.AddItemRequest{ProductID: productID, Quantity: 2, Size: "M"})
		req := testutils.CreateTestRequestWithContext(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(body), userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.AddItem().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		mockService.AssertExpectations(t)
	})

	t.Run("Failure - Invalid Body", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()

		req := testutils.CreateTestRequestWithContext(http.MethodPost, "/api/v1/cart/items", bytes.NewReader([]byte(`{not json`)), userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.AddItem().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "AddItem")
	})

	t.Run("Failure - Validation Error", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()

		// quantity below min=1
		body, _ := json.Marshal(models.AddItemRequest{ProductID: productID, Quantity: 0})
		req := testutils.CreateTestRequestWithContext(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(body), userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.AddItem().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		resp := decodeResponse(t, rec)
		assert.False(t, resp.Success)
		assert.Equal(t, appErrors.ErrCodeValidation, resp.Error.Code)
		mockService.AssertNotCalled(t, "AddItem")
	})

	t.Run("Failure - Insufficient Stock", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()

		mockService.On("AddItem", mock.Anything, userID, mock.Anything).
			Return(nil, appErrors.InsufficientStockError("Oversized Hoodie")).Once()

		body, _ := json.Marshal(models.AddItemRequest{ProductID: productID, Quantity: 99})
		req := testutils.CreateTestRequestWithContext(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(body), userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.AddItem().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusConflict, rec.Code)

		resp := decodeResponse(t, rec)
		assert.Equal(t, appErrors.ErrCodeInsufficientStock, resp.Error.Code)
		mockService.AssertExpectations(t)
	})
}

func TestUpdateQuantityHandler(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()

	t.Run("Success - Quantity Updated", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()
		cart := &models.Cart{ID: uuid.New(), UserID: userID}

		mockService.On("UpdateQuantity", mock.Anything, userID, mock.MatchedBy(func(req *models.UpdateQuantityRequest) bool {
			return req.ProductID == productID && req.Quantity == 5
		})).Return(cart, nil).Once()

		body, _ := json.Marshal(models.UpdateQuantityRequest{ProductID: productID, Quantity: 5})
		req := testutils.CreateTestRequestWithContext(http.MethodPut, "/api/v1/cart/items", bytes.NewReader(body), userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.UpdateQuantity().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Failure - Line Not Found", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()

		mockService.On("UpdateQuantity", mock.Anything, userID, mock.Anything).
			Return(nil, appErrors.NotFoundError("Cart item not found")).Once()

		body, _ := json.Marshal(models.UpdateQuantityRequest{ProductID: productID, Quantity: 3})
		req := testutils.CreateTestRequestWithContext(http.MethodPut, "/api/v1/cart/items", bytes.NewReader(body), userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.UpdateQuantity().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusNotFound, rec.Code)
		mockService.AssertExpectations(t)
	})
}

func TestRemoveItemHandler(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()

	t.Run("Success - Item Removed", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()
		cart := &models.Cart{ID: uuid.New(), UserID: userID, Items: []models.CartItem{}}

		mockService.On("RemoveItem", mock.Anything, userID, mock.MatchedBy(func(req *models.RemoveItemRequest) bool {
			return req.ProductID == productID && req.Color == "black"
		})).Return(cart, nil).Once()

		body, _ := json.Marshal(models.RemoveItemRequest{ProductID: productID, Color: "black"})
		req := testutils.CreateTestRequestWithContext(http.MethodDelete, "/api/v1/cart/items", bytes.NewReader(body), userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.RemoveItem().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Failure - Missing Claims", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()

		body, _ := json.Marshal(models.RemoveItemRequest{ProductID: productID})
		req := testutils.CreateTestRequestWithoutContext(http.MethodDelete, "/api/v1/cart/items", bytes.NewReader(body), nil)
		rec := httptest.NewRecorder()

		// Act
		handler.RemoveItem().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		mockService.AssertNotCalled(t, "RemoveItem")
	})
}

func TestClearCartHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("Success - Cart Cleared", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()
		cart := &models.Cart{ID: uuid.New(), UserID: userID, Items: []models.CartItem{}}

		mockService.On("Clear", mock.Anything, userID).Return(cart, nil).Once()

		req := testutils.CreateTestRequestWithContext(http.MethodDelete, "/api/v1/cart", nil, userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.Clear().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		mockService.AssertExpectations(t)
	})
}

func TestSyncCartHandler(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()

	t.Run("Success - Cart Replaced", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()
		items := []models.CartItem{{ProductID: productID, Quantity: 2, UnitPrice: 999}}
		cart := &models.Cart{ID: uuid.New(), UserID: userID, Items: items}

		mockService.On("ReplaceItems", mock.Anything, userID, mock.MatchedBy(func(got []models.CartItem) bool {
			return len(got) == 1 && got[0].ProductID == productID
		})).Return(cart, nil).Once()

		body, _ := json.Marshal(models.SyncCartRequest{Items: items})
		req := testutils.CreateTestRequestWithContext(http.MethodPut, "/api/v1/cart/sync", bytes.NewReader(body), userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.SyncCart().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		mockService.AssertExpectations(t)
	})

	t.Run("Failure - Missing Items Field", func(t *testing.T) {
		// Arrange
		mockService, handler := setupCartTest()

		req := testutils.CreateTestRequestWithContext(http.MethodPut, "/api/v1/cart/sync", bytes.NewReader([]byte(`{}`)), userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.SyncCart().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "ReplaceItems")
	})
}
