package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/glowora/glowora-backend/internal/models"
	"github.com/glowora/glowora-backend/internal/payments"
	"go.uber.org/zap"
)

//
// --- PayPal Handlers ---
//

// CreatePaymentInput is the JSON body for POST /api/payments/create-payment.
type CreatePaymentInput struct {
	OrderID int64 `json:"orderId" binding:"required"`
}

// CreatePayment is the handler for POST /api/payments/create-payment. It
// asks the gateway for an approval URL the frontend redirects the buyer to.
func (h *Handlers) CreatePayment(c *gin.Context) {
	var input CreatePaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if input.OrderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid order ID"})
		return
	}

	var status string
	var totalAmount float64
	err := h.DB.QueryRow("SELECT status, total_amount FROM orders WHERE id = ?", input.OrderID).Scan(&status, &totalAmount)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Order not found"})
			return
		}
		h.Logger.Error("Failed to fetch order for payment", zap.Int64("orderID", input.OrderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create payment"})
		return
	}
	if status != models.OrderStatusPending {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Order is not in pending status"})
		return
	}

	approvalURL, err := h.Gateway.CreatePayment(c.Request.Context(), totalAmount, input.OrderID)
	if err != nil {
		h.Logger.Error("PayPal payment creation failed", zap.Int64("orderID", input.OrderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create PayPal payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"approvalUrl": approvalURL,
		"orderId":     input.OrderID,
		"amount":      totalAmount,
	})
}

// CapturePayment is the handler for GET /api/payments/capture-payment, the
// return URL PayPal redirects the buyer back to. It is unauthenticated, so
// the cart to clear is taken from the order's owner rather than a token.
func (h *Handlers) CapturePayment(c *gin.Context) {
	token := c.Query("token")
	orderNumber := c.Query("orderNumber")
	if token == "" || orderNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing token or order number"})
		return
	}

	orderID, err := strconv.ParseInt(orderNumber, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid order number"})
		return
	}

	gatewayStatus, captureID, err := h.Gateway.CapturePayment(c.Request.Context(), token)
	if err != nil {
		h.Logger.Error("PayPal capture failed", zap.String("token", token), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to capture PayPal payment"})
		return
	}

	if gatewayStatus != payments.GatewayStatusCompleted {
		h.Logger.Info("PayPal capture not completed yet",
			zap.Int64("orderID", orderID), zap.String("gatewayStatus", gatewayStatus))
		c.JSON(http.StatusOK, gin.H{
			"status":  "Pending",
			"message": "Payment is being processed",
			"orderId": captureID,
		})
		return
	}

	result, orderUserID, status := h.completePayPalPayment(c.Request.Context(), orderID, captureID)
	if !result.Success {
		c.JSON(status, result)
		return
	}

	h.clearCartAfterPayment(c.Request.Context(), orderUserID)

	c.JSON(http.StatusOK, gin.H{
		"status":      "Success",
		"message":     "Payment completed successfully",
		"orderId":     captureID,
		"orderNumber": orderID,
		"amount":      result.TotalAmount,
	})
}

// CancelPayment is the handler for GET /api/payments/cancel-payment, the
// cancel URL PayPal sends the buyer back to. The order stays Pending and
// the expiry sweep cancels it later if the buyer never retries.
func (h *Handlers) CancelPayment(c *gin.Context) {
	orderNumber := c.Query("orderNumber")

	h.Logger.Info("PayPal payment cancelled by user", zap.String("orderNumber", orderNumber))

	c.JSON(http.StatusOK, gin.H{
		"status":      "Cancelled",
		"message":     "Payment was cancelled by user",
		"orderNumber": orderNumber,
	})
}
