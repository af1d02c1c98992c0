package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glowora/glowora-backend/internal/auth"
	"github.com/glowora/glowora-backend/internal/models"
	"go.uber.org/zap"
)

//
// --- Auth Handlers ---
//

// RegisterInput is the JSON body for POST /api/auth/register.
// Separate from models.User so callers can't smuggle in an id or role.
type RegisterInput struct {
	FullName    string  `json:"fullName" binding:"required"`
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=6"`
	PhoneNumber *string `json:"phoneNumber"`
	Address     *string `json:"address"`
}

// Register creates a customer account and returns a token so the frontend
// can log the user straight in.
func (h *Handlers) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 1. --- Reject duplicate emails ---
	var existingID int64
	err := h.DB.QueryRow("SELECT id FROM users WHERE email = ?", input.Email).Scan(&existingID)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email is already registered"})
		return
	}
	if err != sql.ErrNoRows {
		h.Logger.Error("Database error checking email", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
		return
	}

	// 2. --- Resolve the default role ---
	var roleID int64
	err = h.DB.QueryRow("SELECT id FROM roles WHERE name = ?", models.RoleCustomer).Scan(&roleID)
	if err != nil {
		h.Logger.Error("Default role lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
		return
	}

	// 3. --- Hash the password ---
	var password models.Password
	if err := password.Set(input.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	// 4. --- Insert the user ---
	result, err := h.DB.Exec(`
		INSERT INTO users (full_name, email, password_hash, role_id, phone_number, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		input.FullName, input.Email, password.Hash, roleID, input.PhoneNumber, input.Address, time.Now())
	if err != nil {
		h.Logger.Error("Failed to insert user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
		return
	}
	userID, err := result.LastInsertId()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
		return
	}

	// 5. --- Issue a token ---
	token, err := auth.GenerateToken(userID, input.FullName, models.RoleCustomer, input.Email)
	if err != nil {
		h.Logger.Error("Failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token})
}

// LoginInput is the JSON body for POST /api/auth/login.
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := h.DB.QueryRow(`
		SELECT u.id, u.full_name, u.email, u.password_hash, r.name
		FROM users u
		JOIN roles r ON u.role_id = r.id
		WHERE u.email = ?`, input.Email).Scan(
		&user.ID, &user.FullName, &user.Email, &user.PasswordHash, &user.RoleName)
	if err != nil {
		if err == sql.ErrNoRows {
			// Same response as a bad password so emails can't be probed.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		h.Logger.Error("Database error during login", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
		return
	}

	password := models.Password{Hash: user.PasswordHash}
	match, err := password.Matches(input.Password)
	if err != nil {
		h.Logger.Error("Password comparison failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
		return
	}
	if !match {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := auth.GenerateToken(user.ID, user.FullName, user.RoleName, user.Email)
	if err != nil {
		h.Logger.Error("Failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Me is the handler for GET /api/auth/me.
func (h *Handlers) Me(c *gin.Context) {
	userID := c.GetInt64("userID")

	var user models.User
	err := h.DB.QueryRow(`
		SELECT u.id, u.full_name, u.email, u.role_id, r.name, u.phone_number, u.address, u.created_at
		FROM users u
		JOIN roles r ON u.role_id = r.id
		WHERE u.id = ?`, userID).Scan(
		&user.ID, &user.FullName, &user.Email, &user.RoleID, &user.RoleName,
		&user.PhoneNumber, &user.Address, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.Logger.Error("Failed to load profile", zap.Int64("userID", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
