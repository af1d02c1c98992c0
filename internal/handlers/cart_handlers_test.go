package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddToCart_InsertsNewLine(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stock_quantity FROM products").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}).AddRow(10))
	mock.ExpectQuery("SELECT quantity FROM cart_items").
		WithArgs(testUserID, int64(3)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO cart_items").
		WithArgs(testUserID, int64(3), 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	router := newTestRouter()
	router.POST("/cart/add", h.AddToCart)

	body, _ := json.Marshal(CartItemInput{ProductID: 3, Quantity: 2})
	req, _ := http.NewRequest(http.MethodPost, "/cart/add", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Item added to cart successfully")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddToCart_MergesExistingLine(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stock_quantity FROM products").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}).AddRow(10))
	mock.ExpectQuery("SELECT quantity FROM cart_items").
		WithArgs(testUserID, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(2))
	mock.ExpectExec("UPDATE cart_items SET quantity").
		WithArgs(5, testUserID, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	router := newTestRouter()
	router.POST("/cart/add", h.AddToCart)

	body, _ := json.Marshal(CartItemInput{ProductID: 3, Quantity: 3})
	req, _ := http.NewRequest(http.MethodPost, "/cart/add", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddToCart_RejectsBeyondStock(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stock_quantity FROM products").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}).AddRow(4))
	mock.ExpectRollback()

	router := newTestRouter()
	router.POST("/cart/add", h.AddToCart)

	body, _ := json.Marshal(CartItemInput{ProductID: 3, Quantity: 5})
	req, _ := http.NewRequest(http.MethodPost, "/cart/add", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Insufficient stock. Available: 4")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddToCart_RejectsMergeBeyondStock(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT stock_quantity FROM products").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}).AddRow(5))
	mock.ExpectQuery("SELECT quantity FROM cart_items").
		WithArgs(testUserID, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(4))
	mock.ExpectRollback()

	router := newTestRouter()
	router.POST("/cart/add", h.AddToCart)

	body, _ := json.Marshal(CartItemInput{ProductID: 3, Quantity: 2})
	req, _ := http.NewRequest(http.MethodPost, "/cart/add", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Cannot add 2 items. Total would exceed available stock (5)")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddToCart_RejectsZeroQuantity(t *testing.T) {
	h, mock := newTestHandlers(t)

	router := newTestRouter()
	router.POST("/cart/add", h.AddToCart)

	body, _ := json.Marshal(CartItemInput{ProductID: 3, Quantity: 0})
	req, _ := http.NewRequest(http.MethodPost, "/cart/add", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Quantity must be greater than 0")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveFromCart_MissingLine(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectExec("DELETE FROM cart_items").
		WithArgs(testUserID, int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	router := newTestRouter()
	router.DELETE("/cart/remove/:productId", h.RemoveFromCart)

	req, _ := http.NewRequest(http.MethodDelete, "/cart/remove/9", nil)
	w := performRequest(router, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Cart item not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCartItem_ZeroQuantityRemovesLine(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectExec("DELETE FROM cart_items").
		WithArgs(testUserID, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	router := newTestRouter()
	router.PUT("/cart/update", h.UpdateCartItem)

	body, _ := json.Marshal(CartItemInput{ProductID: 3, Quantity: 0})
	req, _ := http.NewRequest(http.MethodPut, "/cart/update", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Item removed from cart successfully")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCartCount_SumsQuantities(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	router := newTestRouter()
	router.GET("/cart/count", h.CartCount)

	req, _ := http.NewRequest(http.MethodGet, "/cart/count", nil)
	w := performRequest(router, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp["count"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCartTotal_SumsLineTotals(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT p.price, ci.quantity").
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"price", "quantity"}).
			AddRow(10.50, 2).
			AddRow(3.25, 4))

	router := newTestRouter()
	router.GET("/cart/total", h.CartTotal)

	req, _ := http.NewRequest(http.MethodGet, "/cart/total", nil)
	w := performRequest(router, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 34.0, resp["total"])
	require.NoError(t, mock.ExpectationsWereMet())
}
