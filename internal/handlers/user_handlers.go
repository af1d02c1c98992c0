package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glowora/glowora-backend/internal/models"
	"go.uber.org/zap"
)

//
// --- User Handlers (admin) ---
//

const userSelectColumns = `u.id, u.full_name, u.email, u.role_id, r.name, u.phone_number, u.address, u.created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.FullName, &user.Email, &user.RoleID, &user.RoleName,
		&user.PhoneNumber, &user.Address, &user.CreatedAt)
	return user, err
}

// ListUsers is the handler for GET /api/users (admin only).
func (h *Handlers) ListUsers(c *gin.Context) {
	rows, err := h.DB.Query(`
		SELECT ` + userSelectColumns + `
		FROM users u
		JOIN roles r ON u.role_id = r.id
		ORDER BY u.created_at DESC`)
	if err != nil {
		h.Logger.Error("Failed to query users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan user"})
			return
		}
		users = append(users, user)
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser is the handler for GET /api/users/:id (admin only).
func (h *Handlers) GetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	user, err := scanUser(h.DB.QueryRow(`
		SELECT `+userSelectColumns+`
		FROM users u
		JOIN roles r ON u.role_id = r.id
		WHERE u.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.Logger.Error("Failed to fetch user", zap.Int64("userID", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetUserWithDetails is the handler for GET /api/users/:id/details (admin
// only). Returns the user together with their order history and current
// cart lines.
func (h *Handlers) GetUserWithDetails(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	user, err := scanUser(h.DB.QueryRow(`
		SELECT `+userSelectColumns+`
		FROM users u
		JOIN roles r ON u.role_id = r.id
		WHERE u.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.Logger.Error("Failed to fetch user", zap.Int64("userID", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}

	orderRows, err := h.DB.Query(
		"SELECT id, order_date, status, total_amount FROM orders WHERE user_id = ? ORDER BY order_date DESC", id)
	if err != nil {
		h.Logger.Error("Failed to query user orders", zap.Int64("userID", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user details"})
		return
	}
	defer orderRows.Close()

	orders := []gin.H{}
	for orderRows.Next() {
		var orderID int64
		var orderDate time.Time
		var status string
		var totalAmount float64
		if err := orderRows.Scan(&orderID, &orderDate, &status, &totalAmount); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user details"})
			return
		}
		orders = append(orders, gin.H{
			"id":          orderID,
			"orderDate":   orderDate,
			"status":      status,
			"totalAmount": totalAmount,
		})
	}

	cartRows, err := h.DB.Query(`
		SELECT ci.product_id, p.name, ci.quantity
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.user_id = ?`, id)
	if err != nil {
		h.Logger.Error("Failed to query user cart", zap.Int64("userID", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user details"})
		return
	}
	defer cartRows.Close()

	cartItems := []gin.H{}
	for cartRows.Next() {
		var productID int64
		var productName string
		var quantity int
		if err := cartRows.Scan(&productID, &productName, &quantity); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user details"})
			return
		}
		cartItems = append(cartItems, gin.H{
			"productId":   productID,
			"productName": productName,
			"quantity":    quantity,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"user":      user,
		"orders":    orders,
		"cartItems": cartItems,
	})
}

// GetUserByEmail is the handler for GET /api/users/email/:email (admin only).
func (h *Handlers) GetUserByEmail(c *gin.Context) {
	email := c.Param("email")

	user, err := scanUser(h.DB.QueryRow(`
		SELECT `+userSelectColumns+`
		FROM users u
		JOIN roles r ON u.role_id = r.id
		WHERE u.email = ?`, email))
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.Logger.Error("Failed to fetch user by email", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetUsersByRole is the handler for GET /api/users/role/:roleId (admin only).
func (h *Handlers) GetUsersByRole(c *gin.Context) {
	roleID, err := strconv.ParseInt(c.Param("roleId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role ID"})
		return
	}

	rows, err := h.DB.Query(`
		SELECT `+userSelectColumns+`
		FROM users u
		JOIN roles r ON u.role_id = r.id
		WHERE u.role_id = ?
		ORDER BY u.created_at DESC`, roleID)
	if err != nil {
		h.Logger.Error("Failed to query users by role", zap.Int64("roleID", roleID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan user"})
			return
		}
		users = append(users, user)
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// UpdateUserInput is the JSON body for PUT /api/users/:id.
type UpdateUserInput struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	RoleID   int64  `json:"roleId" binding:"required"`
}

// UpdateUser is the handler for PUT /api/users/:id (admin only).
func (h *Handlers) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var input UpdateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// An unchanged UPDATE affects zero rows on MySQL, so existence is
	// probed separately rather than read off RowsAffected.
	var existingID int64
	err = h.DB.QueryRow("SELECT id FROM users WHERE id = ?", id).Scan(&existingID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.Logger.Error("Failed to fetch user", zap.Int64("userID", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	// The new email must not belong to a different user.
	var emailOwnerID int64
	err = h.DB.QueryRow("SELECT id FROM users WHERE email = ? AND id <> ?", input.Email, id).Scan(&emailOwnerID)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
		return
	}
	if err != sql.ErrNoRows {
		h.Logger.Error("Database error checking email", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	if _, err := h.DB.Exec("UPDATE users SET full_name = ?, email = ?, role_id = ? WHERE id = ?",
		input.FullName, input.Email, input.RoleID, id); err != nil {
		h.Logger.Error("Failed to update user", zap.Int64("userID", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully"})
}

// DeleteUser is the handler for DELETE /api/users/:id (admin only).
func (h *Handlers) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	result, err := h.DB.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		h.Logger.Error("Failed to delete user", zap.Int64("userID", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
