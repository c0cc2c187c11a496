package service

import (
	"context"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
)

// LowStockThreshold is the fixed quantity below which a product with
// remaining stock is flagged low. A product-specific threshold also exists
// in the catalog; the two are surfaced as separate views, never merged.
const LowStockThreshold = 10

// ExpiryWindowDays is the default look-ahead for expiration alerts.
const ExpiryWindowDays = 30

// Expiry tier boundaries, in days remaining.
const (
	expiryUrgentMax    = 7
	expiryAttentionMax = 15
)

// Alert types
const (
	AlertLowStock   = "low_stock"
	AlertOutOfStock = "out_of_stock"
)

// Expiry tiers
const (
	TierUrgent       = "urgent"
	TierAttention    = "attention"
	TierSurveillance = "surveillance"
)

// ExpiryTier classifies days remaining into an alert tier. Returns the
// empty string outside the alert window, including for negative days:
// already-expired lots are reported by ExpiredLots, not here.
func ExpiryTier(daysRemaining int) string {
	switch {
	case daysRemaining < 0 || daysRemaining > ExpiryWindowDays:
		return ""
	case daysRemaining <= expiryUrgentMax:
		return TierUrgent
	case daysRemaining <= expiryAttentionMax:
		return TierAttention
	default:
		return TierSurveillance
	}
}

// LowStockAlert is a product whose remaining stock is below the fixed
// threshold. Deficit is how many units short of the threshold it sits.
type LowStockAlert struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	TotalStock int    `json:"total_stock"`
	Deficit    int    `json:"deficit"`
}

// ExpiryAlert is one expiring lot with its urgency tier.
type ExpiryAlert struct {
	LotID         string `json:"lot_id"`
	LotNumber     string `json:"lot_number"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	Quantity      int    `json:"quantity"`
	ExpiryDate    string `json:"expiry_date"`
	DaysRemaining int    `json:"days_remaining"`
	Tier          string `json:"tier"`
}

// AlertService classifies aggregated stock state into actionable tiers.
// Everything is recomputed on demand from lot state; no alert rows are
// persisted.
type AlertService struct {
	stockView *repository.StockViewRepository
	logger    *logger.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(stockView *repository.StockViewRepository, log *logger.Logger) *AlertService {
	return &AlertService{
		stockView: stockView,
		logger:    log,
	}
}

// LowStockAlerts lists products with stock below the fixed threshold.
// Products at exactly zero are excluded; those belong to OutOfStockProducts.
// A product holding exactly the threshold quantity is not low.
func (s *AlertService) LowStockAlerts(ctx context.Context) ([]*LowStockAlert, error) {
	rows, err := s.stockView.LowStock(ctx, LowStockThreshold)
	if err != nil {
		return nil, err
	}

	alerts := make([]*LowStockAlert, len(rows))
	for i, row := range rows {
		alerts[i] = &LowStockAlert{
			ProductID:  row.ProductID,
			Name:       row.Name,
			Category:   row.Category,
			TotalStock: row.TotalStock,
			Deficit:    LowStockThreshold - row.TotalStock,
		}
	}
	return alerts, nil
}

// OutOfStockProducts lists catalog products with no in-stock quantity.
// A separate tier from low stock, with its own query.
func (s *AlertService) OutOfStockProducts(ctx context.Context) ([]*repository.ProductStock, error) {
	return s.stockView.OutOfStock(ctx)
}

// BelowProductThreshold lists products strictly below their own configured
// catalog threshold. A product holding exactly its threshold is not listed.
func (s *AlertService) BelowProductThreshold(ctx context.Context) ([]*repository.ThresholdStock, error) {
	return s.stockView.BelowProductThreshold(ctx)
}

// ExpirationAlerts lists in-stock lots expiring within windowDays, soonest
// first, each classified into its urgency tier.
func (s *AlertService) ExpirationAlerts(ctx context.Context, windowDays int) ([]*ExpiryAlert, error) {
	if windowDays <= 0 {
		return nil, errors.BadRequest("window must be positive")
	}

	lots, err := s.stockView.ExpiringLots(ctx, windowDays)
	if err != nil {
		return nil, err
	}

	alerts := make([]*ExpiryAlert, 0, len(lots))
	for _, lot := range lots {
		tier := ExpiryTier(lot.DaysRemaining)
		if tier == "" {
			continue
		}
		alerts = append(alerts, &ExpiryAlert{
			LotID:         lot.ID,
			LotNumber:     lot.LotNumber,
			ProductID:     lot.ProductID,
			ProductName:   lot.ProductName,
			Quantity:      lot.CurrentQuantity,
			ExpiryDate:    lot.ExpiryDate.Format("2006-01-02"),
			DaysRemaining: lot.DaysRemaining,
			Tier:          tier,
		})
	}
	return alerts, nil
}

// ExpiredLots lists lots past expiry that still hold stock. Surfaced as a
// data quality view rather than an alert tier.
func (s *AlertService) ExpiredLots(ctx context.Context) ([]*repository.ExpiringLot, error) {
	return s.stockView.ExpiredLots(ctx)
}
