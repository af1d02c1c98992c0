package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//
// --- Cart Handlers ---
//

// CartItemInput is the JSON body for POST /api/cart/add and
// PUT /api/cart/update.
type CartItemInput struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity"`
}

// AddToCart is the handler for POST /api/cart/add. Adding to an existing
// line merges quantities, and the merged total is checked against stock.
func (h *Handlers) AddToCart(c *gin.Context) {
	userID := c.GetInt64("userID")

	var input CartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if input.Quantity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Quantity must be greater than 0"})
		return
	}

	tx, err := h.DB.BeginTx(c.Request.Context(), nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to add item to cart"})
		return
	}
	defer tx.Rollback()

	// 1. --- Lock the product row and read its stock ---
	var stockQuantity int
	err = tx.QueryRow("SELECT stock_quantity FROM products WHERE id = ? FOR UPDATE", input.ProductID).Scan(&stockQuantity)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Product not found"})
			return
		}
		h.Logger.Error("Failed to fetch product for cart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to add item to cart"})
		return
	}
	if stockQuantity < input.Quantity {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"message": fmt.Sprintf("Insufficient stock. Available: %d", stockQuantity),
		})
		return
	}

	// 2. --- Merge with any existing cart line ---
	var existingQuantity int
	err = tx.QueryRow("SELECT quantity FROM cart_items WHERE user_id = ? AND product_id = ?",
		userID, input.ProductID).Scan(&existingQuantity)
	switch {
	case err == nil:
		newQuantity := existingQuantity + input.Quantity
		if stockQuantity < newQuantity {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"message": fmt.Sprintf("Cannot add %d items. Total would exceed available stock (%d)",
					input.Quantity, stockQuantity),
			})
			return
		}
		_, err = tx.Exec("UPDATE cart_items SET quantity = ? WHERE user_id = ? AND product_id = ?",
			newQuantity, userID, input.ProductID)
	case err == sql.ErrNoRows:
		_, err = tx.Exec("INSERT INTO cart_items (user_id, product_id, quantity, created_at) VALUES (?, ?, ?, ?)",
			userID, input.ProductID, input.Quantity, time.Now())
	default:
		h.Logger.Error("Failed to read cart line", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to add item to cart"})
		return
	}
	if err != nil {
		h.Logger.Error("Failed to write cart line", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to add item to cart"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to add item to cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Item added to cart successfully"})
}

// UpdateCartItem is the handler for PUT /api/cart/update. Setting the
// quantity to zero or below removes the line.
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	userID := c.GetInt64("userID")

	var input CartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if input.Quantity <= 0 {
		h.removeCartLine(c, userID, input.ProductID, "Item removed from cart successfully")
		return
	}

	tx, err := h.DB.BeginTx(c.Request.Context(), nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update cart"})
		return
	}
	defer tx.Rollback()

	var existingQuantity int
	err = tx.QueryRow("SELECT quantity FROM cart_items WHERE user_id = ? AND product_id = ?",
		userID, input.ProductID).Scan(&existingQuantity)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Cart item not found"})
			return
		}
		h.Logger.Error("Failed to read cart line", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update cart"})
		return
	}

	var stockQuantity int
	err = tx.QueryRow("SELECT stock_quantity FROM products WHERE id = ? FOR UPDATE", input.ProductID).Scan(&stockQuantity)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Product not found"})
			return
		}
		h.Logger.Error("Failed to fetch product for cart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update cart"})
		return
	}
	if stockQuantity < input.Quantity {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"message": fmt.Sprintf("Insufficient stock. Available: %d", stockQuantity),
		})
		return
	}

	if _, err := tx.Exec("UPDATE cart_items SET quantity = ? WHERE user_id = ? AND product_id = ?",
		input.Quantity, userID, input.ProductID); err != nil {
		h.Logger.Error("Failed to update cart line", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update cart"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart updated successfully"})
}

// RemoveFromCart is the handler for DELETE /api/cart/remove/:productId.
func (h *Handlers) RemoveFromCart(c *gin.Context) {
	userID := c.GetInt64("userID")

	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid product ID"})
		return
	}

	h.removeCartLine(c, userID, productID, "Item removed from cart successfully")
}

func (h *Handlers) removeCartLine(c *gin.Context, userID, productID int64, successMessage string) {
	result, err := h.DB.Exec("DELETE FROM cart_items WHERE user_id = ? AND product_id = ?", userID, productID)
	if err != nil {
		h.Logger.Error("Failed to remove cart line", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to remove item from cart"})
		return
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Cart item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": successMessage})
}

// ClearCart is the handler for DELETE /api/cart/clear. Clearing an already
// empty cart still succeeds.
func (h *Handlers) ClearCart(c *gin.Context) {
	userID := c.GetInt64("userID")

	if _, err := h.DB.Exec("DELETE FROM cart_items WHERE user_id = ?", userID); err != nil {
		h.Logger.Error("Failed to clear cart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to clear cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart cleared successfully"})
}

// GetCart is the handler for GET /api/cart. Each line carries the live
// product price and stock so the frontend can flag lines that no longer fit.
func (h *Handlers) GetCart(c *gin.Context) {
	userID := c.GetInt64("userID")

	rows, err := h.DB.Query(`
		SELECT ci.product_id, p.name, p.price, ci.quantity, p.stock_quantity, p.image_url
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.user_id = ?
		ORDER BY ci.created_at ASC`, userID)
	if err != nil {
		h.Logger.Error("Failed to query cart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch cart"})
		return
	}
	defer rows.Close()

	items := []gin.H{}
	totalAmount := decimal.Zero
	totalItems := 0
	for rows.Next() {
		var productID int64
		var name string
		var price float64
		var quantity, stockQuantity int
		var imageURL *string
		if err := rows.Scan(&productID, &name, &price, &quantity, &stockQuantity, &imageURL); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to scan cart item"})
			return
		}

		lineTotal := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
		totalAmount = totalAmount.Add(lineTotal)
		totalItems += quantity

		items = append(items, gin.H{
			"productId":     productID,
			"productName":   name,
			"productPrice":  price,
			"quantity":      quantity,
			"total":         lineTotal.InexactFloat64(),
			"stockQuantity": stockQuantity,
			"imageUrl":      imageURL,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"totalAmount": totalAmount.InexactFloat64(),
		"totalItems":  totalItems,
	})
}

// CartCount is the handler for GET /api/cart/count, used for the cart badge.
func (h *Handlers) CartCount(c *gin.Context) {
	userID := c.GetInt64("userID")

	var count int
	err := h.DB.QueryRow("SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		h.Logger.Error("Failed to count cart items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to count cart items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// CartTotal is the handler for GET /api/cart/total.
func (h *Handlers) CartTotal(c *gin.Context) {
	userID := c.GetInt64("userID")

	rows, err := h.DB.Query(`
		SELECT p.price, ci.quantity
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.user_id = ?`, userID)
	if err != nil {
		h.Logger.Error("Failed to query cart totals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to total cart"})
		return
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var price float64
		var quantity int
		if err := rows.Scan(&price, &quantity); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to total cart"})
			return
		}
		total = total.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity))))
	}

	c.JSON(http.StatusOK, gin.H{"total": total.InexactFloat64()})
}
