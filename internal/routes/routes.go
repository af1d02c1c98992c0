package routes

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/glowora/glowora-backend/internal/handlers"
	"github.com/glowora/glowora-backend/internal/middleware"
	"go.uber.org/zap"
)

// CORSMiddleware allows the storefront frontend to call the API from its
// own origin during development.
func CORSMiddleware() gin.HandlerFunc {
	origin := os.Getenv("CORS_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}

	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SetupRouter wires every endpoint to its handler.
func SetupRouter(h *handlers.Handlers, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/metrics", middleware.PrometheusHandler())

	api := router.Group("/api")
	{
		// --- Public routes ---
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)

		api.GET("/products", h.SearchProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/products/slug/:slug", h.GetProductBySlug)

		// PayPal redirects the buyer here without our auth token.
		api.GET("/payments/capture-payment", h.CapturePayment)
		api.GET("/payments/cancel-payment", h.CancelPayment)

		// --- Authenticated routes ---
		authed := api.Group("/")
		authed.Use(middleware.AuthMiddleware())
		{
			authed.GET("/auth/me", h.Me)

			authed.GET("/cart", h.GetCart)
			authed.POST("/cart/add", h.AddToCart)
			authed.PUT("/cart/update", h.UpdateCartItem)
			authed.DELETE("/cart/remove/:productId", h.RemoveFromCart)
			authed.DELETE("/cart/clear", h.ClearCart)
			authed.GET("/cart/count", h.CartCount)
			authed.GET("/cart/total", h.CartTotal)

			authed.POST("/checkout", h.Checkout)
			authed.POST("/checkout/cart", h.CheckoutFromCart)
			authed.GET("/checkout/order/:orderId", h.GetOrderDetails)
			authed.POST("/checkout/validate-stock", h.ValidateStock)

			authed.POST("/payments/create-payment", h.CreatePayment)
		}

		// --- Admin routes ---
		admin := api.Group("/")
		admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
		{
			admin.POST("/products", h.CreateProduct)
			admin.PUT("/products/:id", h.UpdateProduct)
			admin.DELETE("/products/:id", h.DeleteProduct)
			admin.GET("/products/low-stock", h.GetLowStockProducts)

			admin.GET("/users", h.ListUsers)
			admin.GET("/users/:id", h.GetUser)
			admin.GET("/users/:id/details", h.GetUserWithDetails)
			admin.GET("/users/email/:email", h.GetUserByEmail)
			admin.GET("/users/role/:roleId", h.GetUsersByRole)
			admin.PUT("/users/:id", h.UpdateUser)
			admin.DELETE("/users/:id", h.DeleteUser)
		}
	}

	return router
}
