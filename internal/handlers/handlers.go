package handlers

import (
	"database/sql"

	"github.com/glowora/glowora-backend/internal/images"
	"github.com/glowora/glowora-backend/internal/payments"
	"go.uber.org/zap"
)

// Handlers holds all dependencies for our handlers.
type Handlers struct {
	DB      *sql.DB
	Logger  *zap.Logger
	Gateway payments.Gateway // PayPal adapter
	Images  images.Uploader  // product image CDN
}
