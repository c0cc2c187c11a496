package repository

import (
	"context"
	"database/sql"

	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
)

// CachedProduct represents cached catalog data (matches product_catalog table),
// kept in sync by catalog events. The ledger never owns product master data.
type CachedProduct struct {
	ProductID      string  `db:"product_id" json:"product_id"`
	Name           string  `db:"name" json:"name"`
	Category       string  `db:"category" json:"category"`
	Supplier       *string `db:"supplier" json:"supplier,omitempty"`
	AlertThreshold int     `db:"alert_threshold" json:"alert_threshold"`
}

// ProductCacheRepository handles product cache persistence
type ProductCacheRepository struct {
	db *database.DB
}

// NewProductCacheRepository creates a new product cache repository
func NewProductCacheRepository(db *database.DB) *ProductCacheRepository {
	return &ProductCacheRepository{db: db}
}

// Set creates or updates a cached product
func (r *ProductCacheRepository) Set(ctx context.Context, product *CachedProduct) error {
	query := `
		INSERT INTO product_catalog (product_id, name, category, supplier, alert_threshold, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (product_id)
		DO UPDATE SET name = $2, category = $3, supplier = $4, alert_threshold = $5, updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		product.ProductID, product.Name, product.Category, product.Supplier, product.AlertThreshold)
	return err
}

// Get gets a cached product by ID
func (r *ProductCacheRepository) Get(ctx context.Context, productID string) (*CachedProduct, error) {
	var product CachedProduct
	query := `SELECT product_id, name, category, supplier, alert_threshold FROM product_catalog WHERE product_id = $1`
	if err := r.db.GetContext(ctx, &product, query, productID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

// Delete deletes a cached product
func (r *ProductCacheRepository) Delete(ctx context.Context, productID string) error {
	query := `DELETE FROM product_catalog WHERE product_id = $1`
	_, err := r.db.ExecContext(ctx, query, productID)
	return err
}
