package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/glowora/glowora-backend/internal/database"
	"github.com/glowora/glowora-backend/internal/handlers"
	"github.com/glowora/glowora-backend/internal/images"
	"github.com/glowora/glowora-backend/internal/payments"
	"github.com/glowora/glowora-backend/internal/routes"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 1. --- Load environment variables ---
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file found, relying on environment")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("CRITICAL: Could not create logger: %v", err)
	}
	defer logger.Sync()

	// 2. --- Connect to the database ---
	db, err := database.OpenDB()
	if err != nil {
		logger.Fatal("CRITICAL: Could not connect to the database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connection established")

	// 3. --- Set up external services ---
	gateway, err := payments.NewPayPalGateway(context.Background(), logger)
	if err != nil {
		logger.Fatal("CRITICAL: Could not set up PayPal gateway", zap.Error(err))
	}

	uploader, err := images.NewCloudinaryUploader()
	if err != nil {
		logger.Fatal("CRITICAL: Could not set up Cloudinary uploader", zap.Error(err))
	}

	h := &handlers.Handlers{
		DB:      db,
		Logger:  logger,
		Gateway: gateway,
		Images:  uploader,
	}

	// 4. --- Start the pending order sweeper ---
	ttl := 24 * time.Hour
	if hoursStr := os.Getenv("PENDING_ORDER_TTL_HOURS"); hoursStr != "" {
		if hours, err := strconv.Atoi(hoursStr); err == nil && hours > 0 {
			ttl = time.Duration(hours) * time.Hour
		}
	}
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			h.CancelOverduePendingOrders(ttl)
		}
	}()

	// 5. --- Start the server ---
	router := routes.SetupRouter(h, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("Starting server", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("CRITICAL: Server failed", zap.Error(err))
	}
}
