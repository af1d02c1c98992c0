package models

import "time"

// Product is the model for the 'products' table.
// ImageURL is a pointer because products created without an image keep NULL
// until an admin uploads one.
type Product struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Slug        string `json:"slug" db:"slug"`
	Description string `json:"description" db:"description"`

	Price         float64 `json:"price" db:"price"`
	StockQuantity int     `json:"stockQuantity" db:"stock_quantity"`

	ImageURL *string `json:"imageUrl,omitempty" db:"image_url"`
	Category string  `json:"category" db:"category"`
	SkinType string  `json:"skinType" db:"skin_type"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
