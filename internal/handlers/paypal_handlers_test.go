package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway is a scripted stand-in for the PayPal client.
type fakeGateway struct {
	approvalURL   string
	captureStatus string
	captureID     string
	err           error

	createdAmount float64
	capturedToken string
}

func (f *fakeGateway) CreatePayment(ctx context.Context, amount float64, orderID int64) (string, error) {
	f.createdAmount = amount
	return f.approvalURL, f.err
}

func (f *fakeGateway) CapturePayment(ctx context.Context, token string) (string, string, error) {
	f.capturedToken = token
	return f.captureStatus, f.captureID, f.err
}

func TestCreatePayment_ReturnsApprovalURL(t *testing.T) {
	h, mock := newTestHandlers(t)
	gateway := &fakeGateway{approvalURL: "https://paypal.example/approve/abc"}
	h.Gateway = gateway

	mock.ExpectQuery("SELECT status, total_amount FROM orders").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "total_amount"}).AddRow("Pending", 25.0))

	router := newTestRouter()
	router.POST("/payments/create-payment", h.CreatePayment)

	body, _ := json.Marshal(CreatePaymentInput{OrderID: 42})
	req, _ := http.NewRequest(http.MethodPost, "/payments/create-payment", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://paypal.example/approve/abc")
	assert.Equal(t, 25.0, gateway.createdAmount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePayment_RejectsNonPendingOrder(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.Gateway = &fakeGateway{}

	mock.ExpectQuery("SELECT status, total_amount FROM orders").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "total_amount"}).AddRow("Completed", 25.0))

	router := newTestRouter()
	router.POST("/payments/create-payment", h.CreatePayment)

	body, _ := json.Marshal(CreatePaymentInput{OrderID: 42})
	req, _ := http.NewRequest(http.MethodPost, "/payments/create-payment", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Order is not in pending status")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCapturePayment_CompletedCaptureFinalizesOrder(t *testing.T) {
	h, mock := newTestHandlers(t)
	gateway := &fakeGateway{captureStatus: "COMPLETED", captureID: "CAP-1"}
	h.Gateway = gateway

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, total_amount FROM orders").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "total_amount"}).AddRow(testUserID, 25.0))
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs("Completed", int64(42), "Pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(int64(42), 25.0, "PayPal", "Completed", "CAP-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT product_id, quantity FROM order_details").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).AddRow(3, 2))
	mock.ExpectExec("UPDATE products SET stock_quantity").
		WithArgs(2, int64(3), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// The cart clear uses the order's owner since this endpoint has no token.
	mock.ExpectExec("DELETE FROM cart_items").
		WithArgs(testUserID).
		WillReturnResult(sqlmock.NewResult(0, 2))

	router := newTestRouter()
	router.GET("/payments/capture-payment", h.CapturePayment)

	req, _ := http.NewRequest(http.MethodGet, "/payments/capture-payment?token=EC-123&orderNumber=42", nil)
	w := performRequest(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "EC-123", gateway.capturedToken)
	assert.Contains(t, w.Body.String(), "Payment completed successfully")
	assert.Contains(t, w.Body.String(), "CAP-1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCapturePayment_NonCompletedStatusIsPending(t *testing.T) {
	h, mock := newTestHandlers(t)
	h.Gateway = &fakeGateway{captureStatus: "PENDING", captureID: "CAP-2"}

	router := newTestRouter()
	router.GET("/payments/capture-payment", h.CapturePayment)

	req, _ := http.NewRequest(http.MethodGet, "/payments/capture-payment?token=EC-123&orderNumber=42", nil)
	w := performRequest(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Payment is being processed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCapturePayment_MissingParams(t *testing.T) {
	h, _ := newTestHandlers(t)
	h.Gateway = &fakeGateway{}

	router := newTestRouter()
	router.GET("/payments/capture-payment", h.CapturePayment)

	req, _ := http.NewRequest(http.MethodGet, "/payments/capture-payment?token=EC-123", nil)
	w := performRequest(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelPayment(t *testing.T) {
	h, _ := newTestHandlers(t)

	router := newTestRouter()
	router.GET("/payments/cancel-payment", h.CancelPayment)

	req, _ := http.NewRequest(http.MethodGet, "/payments/cancel-payment?orderNumber=42", nil)
	w := performRequest(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Payment was cancelled by user")
}
