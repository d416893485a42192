package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a jewelry listing in the catalog
type Product struct {
	ID            int64           `json:"id" db:"id"`
	ProductNumber string          `json:"product_number" db:"product_number"`
	Category      Category        `json:"category" db:"category"`
	Price         decimal.Decimal `json:"price" db:"price"`
	Images        []string        `json:"images"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Image is a single encoded picture owned by a product
type Image struct {
	ID        int64     `json:"id" db:"id"`
	URL       string    `json:"url" db:"url"`
	ProductID int64     `json:"product_id" db:"product_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewProduct carries everything needed to create a product together with its images
type NewProduct struct {
	ProductNumber string
	Category      Category
	Price         decimal.Decimal
	Images        []string
}
