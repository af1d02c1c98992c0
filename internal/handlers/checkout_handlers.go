package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glowora/glowora-backend/internal/middleware"
	"github.com/glowora/glowora-backend/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//
// --- Checkout Handlers ---
//

// CheckoutItemInput is one order line in a checkout request.
type CheckoutItemInput struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

// CheckoutInput is the JSON body for POST /api/checkout and, minus the
// items, for POST /api/checkout/cart.
type CheckoutInput struct {
	PaymentMethod string              `json:"paymentMethod" binding:"required"`
	Items         []CheckoutItemInput `json:"items"`
}

// checkoutResult is the response envelope shared by both checkout entry
// points and the PayPal completion path.
type checkoutResult struct {
	Success                 bool    `json:"success"`
	Message                 string  `json:"message"`
	OrderID                 int64   `json:"orderId,omitempty"`
	TotalAmount             float64 `json:"totalAmount,omitempty"`
	PaymentStatus           string  `json:"paymentStatus,omitempty"`
	RequiresPaymentRedirect bool    `json:"requiresPaymentRedirect,omitempty"`
}

// runCheckout places an order inside a single transaction. Stock is
// locked, validated and (for immediate payment methods) decremented before
// the commit, so two concurrent checkouts can never both take the last
// unit. PayPal orders commit as Pending and keep their stock until the
// gateway confirms payment.
func (h *Handlers) runCheckout(ctx context.Context, userID int64, paymentMethod string, items []CheckoutItemInput) (checkoutResult, int) {
	fail := func() (checkoutResult, int) {
		middleware.RecordCheckoutProcessed("failed")
		return checkoutResult{Success: false, Message: "Failed to process checkout"}, http.StatusInternalServerError
	}

	tx, err := h.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		h.Logger.Error("Failed to begin checkout transaction", zap.Error(err))
		return fail()
	}
	defer tx.Rollback()

	// 1. --- Lock every ordered product and read price and stock ---
	productIDs := make([]interface{}, 0, len(items))
	placeholders := make([]string, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
		placeholders = append(placeholders, "?")
	}

	query := fmt.Sprintf(
		"SELECT id, price, stock_quantity FROM products WHERE id IN (%s) FOR UPDATE",
		strings.Join(placeholders, ", "))
	rows, err := tx.QueryContext(ctx, query, productIDs...)
	if err != nil {
		h.Logger.Error("Failed to lock products for checkout", zap.Error(err))
		return fail()
	}

	type productRow struct {
		price         float64
		stockQuantity int
	}
	products := make(map[int64]productRow)
	for rows.Next() {
		var id int64
		var p productRow
		if err := rows.Scan(&id, &p.price, &p.stockQuantity); err != nil {
			rows.Close()
			return fail()
		}
		products[id] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fail()
	}

	// 2. --- Validate the whole order before writing anything ---
	for _, item := range items {
		p, ok := products[item.ProductID]
		if !ok || p.stockQuantity < item.Quantity {
			middleware.RecordCheckoutProcessed("failed")
			return checkoutResult{Success: false, Message: "Insufficient stock for one or more items"}, http.StatusBadRequest
		}
	}

	totalAmount := decimal.Zero
	for _, item := range items {
		p := products[item.ProductID]
		totalAmount = totalAmount.Add(decimal.NewFromFloat(p.price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	// 3. --- Create the order and its line snapshots ---
	orderResult, err := tx.ExecContext(ctx,
		"INSERT INTO orders (user_id, order_date, status, total_amount) VALUES (?, ?, ?, ?)",
		userID, time.Now(), models.OrderStatusPending, totalAmount.InexactFloat64())
	if err != nil {
		h.Logger.Error("Failed to insert order", zap.Error(err))
		return fail()
	}
	orderID, err := orderResult.LastInsertId()
	if err != nil {
		return fail()
	}

	for _, item := range items {
		p := products[item.ProductID]
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_details (order_id, product_id, quantity, unit_price) VALUES (?, ?, ?, ?)",
			orderID, item.ProductID, item.Quantity, p.price); err != nil {
			h.Logger.Error("Failed to insert order detail", zap.Error(err))
			return fail()
		}
	}

	// 4. --- PayPal orders stop here and wait for the gateway ---
	if paymentMethod == models.PaymentMethodPayPal {
		if err := tx.Commit(); err != nil {
			return fail()
		}
		middleware.RecordCheckoutProcessed("awaiting_paypal")
		return checkoutResult{
			Success:                 true,
			Message:                 "Order created, awaiting PayPal payment",
			OrderID:                 orderID,
			TotalAmount:             totalAmount.InexactFloat64(),
			PaymentStatus:           models.OrderStatusPending,
			RequiresPaymentRedirect: true,
		}, http.StatusOK
	}

	// 5. --- Immediate payment: record it and take the stock ---
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO payments (order_id, amount, payment_method, status, payment_date) VALUES (?, ?, ?, ?, ?)",
		orderID, totalAmount.InexactFloat64(), paymentMethod, models.PaymentStatusCompleted, time.Now()); err != nil {
		h.Logger.Error("Failed to insert payment", zap.Error(err))
		return fail()
	}

	for _, item := range items {
		res, err := tx.ExecContext(ctx,
			"UPDATE products SET stock_quantity = stock_quantity - ? WHERE id = ? AND stock_quantity >= ?",
			item.Quantity, item.ProductID, item.Quantity)
		if err != nil {
			h.Logger.Error("Failed to decrement stock", zap.Error(err))
			return fail()
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fail()
		}
		if affected == 0 {
			middleware.RecordCheckoutProcessed("failed")
			return checkoutResult{Success: false, Message: "Insufficient stock for one or more items"}, http.StatusConflict
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = ? WHERE id = ?", models.OrderStatusCompleted, orderID); err != nil {
		h.Logger.Error("Failed to complete order", zap.Error(err))
		return fail()
	}

	if err := tx.Commit(); err != nil {
		h.Logger.Error("Failed to commit checkout", zap.Error(err))
		return fail()
	}

	middleware.RecordCheckoutProcessed("completed")
	return checkoutResult{
		Success:       true,
		Message:       "Checkout completed successfully",
		OrderID:       orderID,
		TotalAmount:   totalAmount.InexactFloat64(),
		PaymentStatus: models.PaymentStatusCompleted,
	}, http.StatusOK
}

// Checkout is the handler for POST /api/checkout. The caller supplies the
// order lines explicitly.
func (h *Handlers) Checkout(c *gin.Context) {
	userID := c.GetInt64("userID")

	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if len(input.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No items to checkout"})
		return
	}

	result, status := h.runCheckout(c.Request.Context(), userID, input.PaymentMethod, input.Items)
	c.JSON(status, result)
}

// CheckoutFromCart is the handler for POST /api/checkout/cart. It places
// an order from the user's saved cart and, for immediately paid orders,
// clears the cart afterwards. PayPal carts are cleared once the gateway
// confirms the capture.
func (h *Handlers) CheckoutFromCart(c *gin.Context) {
	userID := c.GetInt64("userID")

	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	rows, err := h.DB.Query("SELECT product_id, quantity FROM cart_items WHERE user_id = ?", userID)
	if err != nil {
		h.Logger.Error("Failed to load cart for checkout", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to process checkout"})
		return
	}

	items := []CheckoutItemInput{}
	for rows.Next() {
		var item CheckoutItemInput
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			rows.Close()
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to process checkout"})
			return
		}
		items = append(items, item)
	}
	rows.Close()

	if len(items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Cart is empty"})
		return
	}

	result, status := h.runCheckout(c.Request.Context(), userID, input.PaymentMethod, items)
	if result.Success && !result.RequiresPaymentRedirect {
		h.clearCartAfterPayment(c.Request.Context(), userID)
	}
	c.JSON(status, result)
}

// GetOrderDetails is the handler for GET /api/checkout/order/:orderId.
// Customers can only read their own orders; admins can read any.
func (h *Handlers) GetOrderDetails(c *gin.Context) {
	userID := c.GetInt64("userID")
	userRole := c.GetString("userRole")

	orderID, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid order ID"})
		return
	}

	var order models.Order
	err = h.DB.QueryRow(
		"SELECT id, user_id, order_date, status, total_amount FROM orders WHERE id = ?", orderID).Scan(
		&order.ID, &order.UserID, &order.OrderDate, &order.Status, &order.TotalAmount)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Order not found"})
			return
		}
		h.Logger.Error("Failed to fetch order", zap.Int64("orderID", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch order"})
		return
	}

	if order.UserID != userID && userRole != models.RoleAdmin {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Order not found"})
		return
	}

	// LEFT JOIN keeps lines whose product was deleted since; the snapshot
	// in order_details is still the historical record.
	rows, err := h.DB.Query(`
		SELECT od.product_id, p.name, od.quantity, od.unit_price
		FROM order_details od
		LEFT JOIN products p ON od.product_id = p.id
		WHERE od.order_id = ?`, orderID)
	if err != nil {
		h.Logger.Error("Failed to fetch order details", zap.Int64("orderID", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch order"})
		return
	}
	defer rows.Close()

	details := []gin.H{}
	for rows.Next() {
		var productID int64
		var name *string
		var quantity int
		var unitPrice float64
		if err := rows.Scan(&productID, &name, &quantity, &unitPrice); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch order"})
			return
		}
		details = append(details, gin.H{
			"productId":   productID,
			"productName": name,
			"quantity":    quantity,
			"unitPrice":   unitPrice,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"orderId":     order.ID,
		"orderDate":   order.OrderDate,
		"status":      order.Status,
		"totalAmount": order.TotalAmount,
		"items":       details,
	})
}

// ValidateStockInput is the JSON body for POST /api/checkout/validate-stock.
type ValidateStockInput struct {
	Items []CheckoutItemInput `json:"items" binding:"required"`
}

// ValidateStock is the handler for POST /api/checkout/validate-stock. It is
// advisory only; checkout re-checks under lock.
func (h *Handlers) ValidateStock(c *gin.Context) {
	var input ValidateStockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	isValid, err := h.validateStockAvailability(c.Request.Context(), input.Items)
	if err != nil {
		h.Logger.Error("Failed to validate stock", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to validate stock"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"isValid": isValid})
}

// validateStockAvailability reports whether every requested line can be
// satisfied from current stock. Missing products count as unavailable.
func (h *Handlers) validateStockAvailability(ctx context.Context, items []CheckoutItemInput) (bool, error) {
	if len(items) == 0 {
		return true, nil
	}

	productIDs := make([]interface{}, 0, len(items))
	placeholders := make([]string, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
		placeholders = append(placeholders, "?")
	}

	query := fmt.Sprintf("SELECT id, stock_quantity FROM products WHERE id IN (%s)",
		strings.Join(placeholders, ", "))
	rows, err := h.DB.QueryContext(ctx, query, productIDs...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	stocks := make(map[int64]int)
	for rows.Next() {
		var id int64
		var stock int
		if err := rows.Scan(&id, &stock); err != nil {
			return false, err
		}
		stocks[id] = stock
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	for _, item := range items {
		stock, ok := stocks[item.ProductID]
		if !ok || stock < item.Quantity {
			return false, nil
		}
	}
	return true, nil
}

// completePayPalPayment finalizes a PayPal order after a successful
// capture. The Pending to Completed flip is a single conditional UPDATE,
// so a replayed redirect or a concurrent capture finds zero rows and is
// rejected rather than paid twice. Stock is taken here, not at order
// creation; if it ran out in the meantime the whole transaction rolls
// back and the order stays Pending.
func (h *Handlers) completePayPalPayment(ctx context.Context, orderID int64, captureID string) (checkoutResult, int64, int) {
	fail := func() (checkoutResult, int64, int) {
		middleware.RecordCheckoutProcessed("failed")
		return checkoutResult{Success: false, Message: "Failed to complete payment"}, 0, http.StatusInternalServerError
	}

	tx, err := h.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		h.Logger.Error("Failed to begin payment transaction", zap.Error(err))
		return fail()
	}
	defer tx.Rollback()

	var orderUserID int64
	var totalAmount float64
	err = tx.QueryRowContext(ctx,
		"SELECT user_id, total_amount FROM orders WHERE id = ?", orderID).Scan(&orderUserID, &totalAmount)
	if err != nil {
		if err == sql.ErrNoRows {
			middleware.RecordCheckoutProcessed("failed")
			return checkoutResult{Success: false, Message: "Order not found"}, 0, http.StatusNotFound
		}
		h.Logger.Error("Failed to fetch order for payment", zap.Int64("orderID", orderID), zap.Error(err))
		return fail()
	}

	// 1. --- Claim the order ---
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = ? WHERE id = ? AND status = ?",
		models.OrderStatusCompleted, orderID, models.OrderStatusPending)
	if err != nil {
		h.Logger.Error("Failed to claim order", zap.Int64("orderID", orderID), zap.Error(err))
		return fail()
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fail()
	}
	if affected == 0 {
		middleware.RecordCheckoutProcessed("failed")
		return checkoutResult{Success: false, Message: "Order is not in pending status"}, 0, http.StatusBadRequest
	}

	// 2. --- Record the payment ---
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO payments (order_id, amount, payment_method, status, transaction_id, payment_date) VALUES (?, ?, ?, ?, ?, ?)",
		orderID, totalAmount, models.PaymentMethodPayPal, models.PaymentStatusCompleted, captureID, time.Now()); err != nil {
		h.Logger.Error("Failed to insert payment", zap.Int64("orderID", orderID), zap.Error(err))
		return fail()
	}

	// 3. --- Take the reserved quantities out of stock ---
	rows, err := tx.QueryContext(ctx,
		"SELECT product_id, quantity FROM order_details WHERE order_id = ?", orderID)
	if err != nil {
		h.Logger.Error("Failed to fetch order details for payment", zap.Int64("orderID", orderID), zap.Error(err))
		return fail()
	}

	type detailRow struct {
		productID int64
		quantity  int
	}
	details := []detailRow{}
	for rows.Next() {
		var d detailRow
		if err := rows.Scan(&d.productID, &d.quantity); err != nil {
			rows.Close()
			return fail()
		}
		details = append(details, d)
	}
	rows.Close()

	for _, d := range details {
		res, err := tx.ExecContext(ctx,
			"UPDATE products SET stock_quantity = stock_quantity - ? WHERE id = ? AND stock_quantity >= ?",
			d.quantity, d.productID, d.quantity)
		if err != nil {
			h.Logger.Error("Failed to decrement stock", zap.Int64("productID", d.productID), zap.Error(err))
			return fail()
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fail()
		}
		if affected == 0 {
			// The order stays Pending and can be retried or swept.
			middleware.RecordCheckoutProcessed("failed")
			return checkoutResult{Success: false, Message: "Insufficient stock for one or more items"}, 0, http.StatusConflict
		}
	}

	if err := tx.Commit(); err != nil {
		h.Logger.Error("Failed to commit payment", zap.Int64("orderID", orderID), zap.Error(err))
		return fail()
	}

	middleware.RecordCheckoutProcessed("completed")
	return checkoutResult{
		Success:       true,
		Message:       "PayPal payment completed successfully",
		OrderID:       orderID,
		TotalAmount:   totalAmount,
		PaymentStatus: models.PaymentStatusCompleted,
	}, orderUserID, http.StatusOK
}

// clearCartAfterPayment empties the user's cart after an order is paid.
// Failures are logged and swallowed; the payment already went through.
func (h *Handlers) clearCartAfterPayment(ctx context.Context, userID int64) {
	if _, err := h.DB.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = ?", userID); err != nil {
		h.Logger.Error("Failed to clear cart after payment", zap.Int64("userID", userID), zap.Error(err))
	}
}

// CancelOverduePendingOrders cancels Pending orders older than ttl that
// never received a payment. Runs from the background sweeper in main.
func (h *Handlers) CancelOverduePendingOrders(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)

	result, err := h.DB.Exec(`
		UPDATE orders o
		LEFT JOIN payments p ON p.order_id = o.id
		SET o.status = ?
		WHERE o.status = ? AND o.order_date < ? AND p.id IS NULL`,
		models.OrderStatusCancelled, models.OrderStatusPending, cutoff)
	if err != nil {
		h.Logger.Error("Failed to cancel overdue orders", zap.Error(err))
		return
	}

	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		h.Logger.Info("Cancelled overdue pending orders", zap.Int64("count", affected))
	}
}
