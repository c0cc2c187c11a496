package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
)

// ProductStock is an aggregated stock row for one product. Only lots in
// status in_stock count toward the total.
type ProductStock struct {
	ProductID     string     `db:"product_id" json:"product_id"`
	Name          string     `db:"name" json:"name"`
	Category      string     `db:"category" json:"category"`
	TotalStock    int        `db:"total_stock" json:"total_stock"`
	LotCount      int        `db:"lot_count" json:"lot_count"`
	NearestExpiry *time.Time `db:"nearest_expiry" json:"nearest_expiry,omitempty"`
}

// ThresholdStock is a ProductStock carrying the product's configured alert
// threshold from the catalog.
type ThresholdStock struct {
	ProductStock
	AlertThreshold int `db:"alert_threshold" json:"alert_threshold"`
}

// ExpiringLot is a lot annotated with whole days until expiry. Days may be
// negative for lots already past expiry while still holding quantity.
type ExpiringLot struct {
	Lot
	ProductName   string `db:"product_name" json:"product_name"`
	DaysRemaining int    `db:"days_remaining" json:"days_remaining"`
}

// StockViewRepository derives stock totals and alert inputs purely from lot
// state. It owns no storage of its own and every query is safe to recompute
// on any read.
type StockViewRepository struct {
	db *database.DB
}

// NewStockViewRepository creates a new stock view repository
func NewStockViewRepository(db *database.DB) *StockViewRepository {
	return &StockViewRepository{db: db}
}

// TotalStock sums the current quantity of in-stock lots for a product
func (r *StockViewRepository) TotalStock(ctx context.Context, productID string) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(current_quantity) FROM lots
		WHERE product_id = $1 AND status = $2
	`
	if err := r.db.GetContext(ctx, &total, query, productID, StatusInStock); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// ProductSummaries lists per-product stock totals for products holding
// stock, alphabetically by name.
func (r *StockViewRepository) ProductSummaries(ctx context.Context) ([]*ProductStock, error) {
	var rows []*ProductStock
	query := `
		SELECT p.product_id, p.name, p.category,
		       COALESCE(SUM(l.current_quantity), 0) AS total_stock,
		       COUNT(l.id) AS lot_count,
		       MIN(l.expiry_date) AS nearest_expiry
		FROM product_catalog p
		JOIN lots l ON l.product_id = p.product_id AND l.status = $1
		GROUP BY p.product_id, p.name, p.category
		HAVING SUM(l.current_quantity) > 0
		ORDER BY p.name
	`
	if err := r.db.SelectContext(ctx, &rows, query, StatusInStock); err != nil {
		return nil, err
	}
	return rows, nil
}

// LowStock lists products whose in-stock total is positive but below the
// given threshold, most depleted first. A total exactly at the threshold is
// not low.
func (r *StockViewRepository) LowStock(ctx context.Context, threshold int) ([]*ProductStock, error) {
	var rows []*ProductStock
	query := `
		SELECT p.product_id, p.name, p.category,
		       SUM(l.current_quantity) AS total_stock,
		       COUNT(l.id) AS lot_count,
		       MIN(l.expiry_date) AS nearest_expiry
		FROM product_catalog p
		JOIN lots l ON l.product_id = p.product_id AND l.status = $1
		GROUP BY p.product_id, p.name, p.category
		HAVING SUM(l.current_quantity) > 0 AND SUM(l.current_quantity) < $2
		ORDER BY SUM(l.current_quantity), p.name
	`
	if err := r.db.SelectContext(ctx, &rows, query, StatusInStock, threshold); err != nil {
		return nil, err
	}
	return rows, nil
}

// OutOfStock lists catalog products with no in-stock quantity at all. This
// is a distinct tier from low stock, never merged into it.
func (r *StockViewRepository) OutOfStock(ctx context.Context) ([]*ProductStock, error) {
	var rows []*ProductStock
	query := `
		SELECT p.product_id, p.name, p.category,
		       COALESCE(SUM(l.current_quantity), 0) AS total_stock,
		       COUNT(l.id) AS lot_count,
		       MIN(l.expiry_date) AS nearest_expiry
		FROM product_catalog p
		LEFT JOIN lots l ON l.product_id = p.product_id AND l.status = $1
		GROUP BY p.product_id, p.name, p.category
		HAVING COALESCE(SUM(l.current_quantity), 0) = 0
		ORDER BY p.name
	`
	if err := r.db.SelectContext(ctx, &rows, query, StatusInStock); err != nil {
		return nil, err
	}
	return rows, nil
}

// BelowProductThreshold lists products whose in-stock total sits below
// their own configured catalog threshold. Kept separate from the
// fixed-threshold LowStock view: the two thresholds coexist upstream.
func (r *StockViewRepository) BelowProductThreshold(ctx context.Context) ([]*ThresholdStock, error) {
	var rows []*ThresholdStock
	query := `
		SELECT p.product_id, p.name, p.category, p.alert_threshold,
		       COALESCE(SUM(l.current_quantity), 0) AS total_stock,
		       COUNT(l.id) AS lot_count,
		       MIN(l.expiry_date) AS nearest_expiry
		FROM product_catalog p
		LEFT JOIN lots l ON l.product_id = p.product_id AND l.status = $1
		GROUP BY p.product_id, p.name, p.category, p.alert_threshold
		HAVING COALESCE(SUM(l.current_quantity), 0) < p.alert_threshold
		ORDER BY p.name
	`
	if err := r.db.SelectContext(ctx, &rows, query, StatusInStock); err != nil {
		return nil, err
	}
	return rows, nil
}

// ExpiringLots lists in-stock lots expiring within windowDays (today
// included), soonest first.
func (r *StockViewRepository) ExpiringLots(ctx context.Context, windowDays int) ([]*ExpiringLot, error) {
	var rows []*ExpiringLot
	query := `
		SELECT l.*, p.name AS product_name,
		       (l.expiry_date::date - CURRENT_DATE) AS days_remaining
		FROM lots l
		JOIN product_catalog p ON p.product_id = l.product_id
		WHERE l.status = $1 AND l.current_quantity > 0
		  AND l.expiry_date::date >= CURRENT_DATE
		  AND l.expiry_date::date <= CURRENT_DATE + $2
		ORDER BY l.expiry_date
	`
	if err := r.db.SelectContext(ctx, &rows, query, StatusInStock, windowDays); err != nil {
		return nil, err
	}
	return rows, nil
}

// ExpiredLots lists lots past expiry that still hold quantity. A data
// quality signal, not an error state.
func (r *StockViewRepository) ExpiredLots(ctx context.Context) ([]*ExpiringLot, error) {
	var rows []*ExpiringLot
	query := `
		SELECT l.*, p.name AS product_name,
		       (l.expiry_date::date - CURRENT_DATE) AS days_remaining
		FROM lots l
		JOIN product_catalog p ON p.product_id = l.product_id
		WHERE l.status = $1 AND l.current_quantity > 0
		  AND l.expiry_date::date < CURRENT_DATE
		ORDER BY l.expiry_date
	`
	if err := r.db.SelectContext(ctx, &rows, query, StatusInStock); err != nil {
		return nil, err
	}
	return rows, nil
}
