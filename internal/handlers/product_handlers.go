package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glowora/glowora-backend/internal/models"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

//
// --- Product Handlers ---
//

// sortColumns whitelists the sortBy values the catalog accepts. Anything
// else falls back to created_at.
var sortColumns = map[string]string{
	"name":          "name",
	"price":         "price",
	"stockquantity": "stock_quantity",
	"createdat":     "created_at",
}

// SearchProducts is the handler for GET /api/products. It supports text
// search, price and stock filters, sorting and pagination.
func (h *Handlers) SearchProducts(c *gin.Context) {
	searchTerm := c.Query("searchTerm")
	minPriceStr := c.Query("minPrice")
	maxPriceStr := c.Query("maxPrice")
	inStockStr := c.Query("inStock")
	sortBy := strings.ToLower(c.DefaultQuery("sortBy", "createdat"))
	sortOrder := c.DefaultQuery("sortOrder", "desc")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))

	// Clamp paging inputs instead of erroring.
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	// 1. --- Build the WHERE clause dynamically ---
	var whereClause strings.Builder
	whereClause.WriteString(" WHERE 1=1")
	args := []interface{}{}

	if searchTerm != "" {
		whereClause.WriteString(" AND (LOWER(name) LIKE ? OR LOWER(description) LIKE ?)")
		pattern := "%" + strings.ToLower(searchTerm) + "%"
		args = append(args, pattern, pattern)
	}
	if minPriceStr != "" {
		if minPrice, err := strconv.ParseFloat(minPriceStr, 64); err == nil {
			whereClause.WriteString(" AND price >= ?")
			args = append(args, minPrice)
		}
	}
	if maxPriceStr != "" {
		if maxPrice, err := strconv.ParseFloat(maxPriceStr, 64); err == nil {
			whereClause.WriteString(" AND price <= ?")
			args = append(args, maxPrice)
		}
	}
	if inStockStr != "" {
		if inStock, err := strconv.ParseBool(inStockStr); err == nil {
			if inStock {
				whereClause.WriteString(" AND stock_quantity > 0")
			} else {
				whereClause.WriteString(" AND stock_quantity = 0")
			}
		}
	}

	// 2. --- Count the full result set for pagination metadata ---
	var totalCount int
	countQuery := "SELECT COUNT(*) FROM products" + whereClause.String()
	if err := h.DB.QueryRow(countQuery, args...).Scan(&totalCount); err != nil {
		h.Logger.Error("Failed to count products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search products"})
		return
	}

	// 3. --- Fetch the requested page ---
	column, ok := sortColumns[sortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if strings.ToLower(sortOrder) == "desc" {
		direction = "DESC"
	}

	query := `SELECT id, name, slug, description, price, stock_quantity, image_url, category, skin_type, created_at
		FROM products` + whereClause.String() +
		" ORDER BY " + column + " " + direction + " LIMIT ? OFFSET ?"
	pageArgs := append(args, pageSize, (page-1)*pageSize)

	rows, err := h.DB.Query(query, pageArgs...)
	if err != nil {
		h.Logger.Error("Failed to query products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search products"})
		return
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.StockQuantity,
			&p.ImageURL, &p.Category, &p.SkinType, &p.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan product"})
			return
		}
		products = append(products, p)
	}

	c.JSON(http.StatusOK, gin.H{
		"items":      products,
		"totalCount": totalCount,
		"page":       page,
		"pageSize":   pageSize,
	})
}

// GetProduct is the handler for GET /api/products/:id.
func (h *Handlers) GetProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var p models.Product
	err = h.DB.QueryRow(`
		SELECT id, name, slug, description, price, stock_quantity, image_url, category, skin_type, created_at
		FROM products WHERE id = ?`, id).Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.StockQuantity,
		&p.ImageURL, &p.Category, &p.SkinType, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		h.Logger.Error("Failed to fetch product", zap.Int64("productID", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// GetProductBySlug is the handler for GET /api/products/slug/:slug, used by
// the storefront's SEO-friendly detail pages.
func (h *Handlers) GetProductBySlug(c *gin.Context) {
	productSlug := c.Param("slug")

	var p models.Product
	err := h.DB.QueryRow(`
		SELECT id, name, slug, description, price, stock_quantity, image_url, category, skin_type, created_at
		FROM products WHERE slug = ?`, productSlug).Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.StockQuantity,
		&p.ImageURL, &p.Category, &p.SkinType, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		h.Logger.Error("Failed to fetch product by slug", zap.String("slug", productSlug), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// makeUniqueSlug generates a URL slug from the product name, suffixing a
// short random token when the plain slug is already taken. excludeID keeps
// a product's own row out of the collision check so renames to the same
// name don't churn the slug; pass 0 when creating.
func (h *Handlers) makeUniqueSlug(name string, excludeID int64) (string, error) {
	base := slug.Make(name)
	var existingID int64
	err := h.DB.QueryRow("SELECT id FROM products WHERE slug = ? AND id <> ?", base, excludeID).Scan(&existingID)
	if err == sql.ErrNoRows {
		return base, nil
	}
	if err != nil {
		return "", err
	}
	return base + "-" + uuid.New().String()[:8], nil
}

// CreateProduct is the handler for POST /api/products (admin only). It takes
// a multipart form so an image can be uploaded alongside the fields.
func (h *Handlers) CreateProduct(c *gin.Context) {
	name := c.PostForm("name")
	description := c.PostForm("description")
	category := c.PostForm("category")
	skinType := c.PostForm("skinType")

	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product name is required"})
		return
	}
	price, err := strconv.ParseFloat(c.PostForm("price"), 64)
	if err != nil || price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price must be greater than 0"})
		return
	}
	stockQuantity, err := strconv.Atoi(c.PostForm("stockQuantity"))
	if err != nil || stockQuantity < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Stock quantity must be 0 or greater"})
		return
	}

	// 1. --- Upload the image first so a CDN failure aborts the insert ---
	var imageURL *string
	if file, _, err := c.Request.FormFile("image"); err == nil {
		defer file.Close()
		url, err := h.Images.Upload(c.Request.Context(), file)
		if err != nil {
			h.Logger.Error("Image upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload product image"})
			return
		}
		imageURL = &url
	}

	// 2. --- Generate a unique slug ---
	productSlug, err := h.makeUniqueSlug(name, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	// 3. --- Insert the product ---
	result, err := h.DB.Exec(`
		INSERT INTO products (name, slug, description, price, stock_quantity, image_url, category, skin_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		name, productSlug, description, price, stockQuantity, imageURL, category, skinType, time.Now())
	if err != nil {
		h.Logger.Error("Failed to insert product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}
	productID, _ := result.LastInsertId()

	c.JSON(http.StatusCreated, gin.H{"id": productID, "slug": productSlug})
}

// UpdateProduct is the handler for PUT /api/products/:id (admin only).
// Only the submitted fields are changed.
func (h *Handlers) UpdateProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	// 1. --- Build the SET clause from whichever fields were sent ---
	var setClauses []string
	var args []interface{}

	if name, ok := c.GetPostForm("name"); ok {
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Product name is required"})
			return
		}
		newSlug, err := h.makeUniqueSlug(name, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
			return
		}
		setClauses = append(setClauses, "name = ?", "slug = ?")
		args = append(args, name, newSlug)
	}
	if description, ok := c.GetPostForm("description"); ok {
		setClauses = append(setClauses, "description = ?")
		args = append(args, description)
	}
	if priceStr, ok := c.GetPostForm("price"); ok {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil || price <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Price must be greater than 0"})
			return
		}
		setClauses = append(setClauses, "price = ?")
		args = append(args, price)
	}
	if stockStr, ok := c.GetPostForm("stockQuantity"); ok {
		stockQuantity, err := strconv.Atoi(stockStr)
		if err != nil || stockQuantity < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Stock quantity must be 0 or greater"})
			return
		}
		setClauses = append(setClauses, "stock_quantity = ?")
		args = append(args, stockQuantity)
	}
	if category, ok := c.GetPostForm("category"); ok {
		setClauses = append(setClauses, "category = ?")
		args = append(args, category)
	}
	if skinType, ok := c.GetPostForm("skinType"); ok {
		setClauses = append(setClauses, "skin_type = ?")
		args = append(args, skinType)
	}
	if file, _, err := c.Request.FormFile("image"); err == nil {
		defer file.Close()
		url, err := h.Images.Upload(c.Request.Context(), file)
		if err != nil {
			h.Logger.Error("Image upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload product image"})
			return
		}
		setClauses = append(setClauses, "image_url = ?")
		args = append(args, url)
	}

	if len(setClauses) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	// 2. --- Run the update ---
	query := fmt.Sprintf("UPDATE products SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	args = append(args, id)

	result, err := h.DB.Exec(query, args...)
	if err != nil {
		h.Logger.Error("Failed to update product", zap.Int64("productID", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product updated successfully"})
}

// DeleteProduct is the handler for DELETE /api/products/:id (admin only).
func (h *Handlers) DeleteProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	result, err := h.DB.Exec("DELETE FROM products WHERE id = ?", id)
	if err != nil {
		h.Logger.Error("Failed to delete product", zap.Int64("productID", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// GetLowStockProducts is the handler for GET /api/products/low-stock
// (admin only). Lists products at or below the restock threshold, emptiest
// shelves first.
func (h *Handlers) GetLowStockProducts(c *gin.Context) {
	threshold, err := strconv.Atoi(c.DefaultQuery("threshold", "10"))
	if err != nil || threshold < 0 {
		threshold = 10
	}

	rows, err := h.DB.Query(`
		SELECT id, name, slug, description, price, stock_quantity, image_url, category, skin_type, created_at
		FROM products
		WHERE stock_quantity <= ?
		ORDER BY stock_quantity ASC`, threshold)
	if err != nil {
		h.Logger.Error("Failed to query low stock products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch low stock products"})
		return
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.StockQuantity,
			&p.ImageURL, &p.Category, &p.SkinType, &p.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan product"})
			return
		}
		products = append(products, p)
	}

	c.JSON(http.StatusOK, gin.H{"items": products, "threshold": threshold})
}
