package service

import (
	"context"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
)

// DaysRemaining returns whole days from today until the lot's expiry date.
// Negative for already-expired lots still carrying quantity, which is a
// data quality signal, not an error.
func DaysRemaining(lot *repository.Lot) int {
	return int(dateOf(lot.ExpiryDate).Sub(today()).Hours() / 24)
}

// DashboardStats summarizes ledger state for the overview screen.
type DashboardStats struct {
	ProductsInStock   int            `json:"products_in_stock"`
	TotalStock        int            `json:"total_stock"`
	LowStockCount     int            `json:"low_stock_count"`
	OutOfStockCount   int            `json:"out_of_stock_count"`
	ExpiringCount     int            `json:"expiring_count"`
	ExpiredCount      int            `json:"expired_count"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
}

// AggregatorService derives per-product totals and expiry countdowns purely
// from lot state. Deterministic and side-effect free, safe to recompute on
// every read.
type AggregatorService struct {
	stockView *repository.StockViewRepository
	logger    *logger.Logger
}

// NewAggregatorService creates a new aggregator service
func NewAggregatorService(stockView *repository.StockViewRepository, log *logger.Logger) *AggregatorService {
	return &AggregatorService{
		stockView: stockView,
		logger:    log,
	}
}

// TotalStock sums in-stock quantity for one product
func (s *AggregatorService) TotalStock(ctx context.Context, productID string) (int, error) {
	return s.stockView.TotalStock(ctx, productID)
}

// ProductSummaries lists per-product stock totals for products holding stock
func (s *AggregatorService) ProductSummaries(ctx context.Context) ([]*repository.ProductStock, error) {
	return s.stockView.ProductSummaries(ctx)
}

// GetDashboardStats computes the overview statistics
func (s *AggregatorService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	summaries, err := s.stockView.ProductSummaries(ctx)
	if err != nil {
		return nil, err
	}

	lowStock, err := s.stockView.LowStock(ctx, LowStockThreshold)
	if err != nil {
		return nil, err
	}

	outOfStock, err := s.stockView.OutOfStock(ctx)
	if err != nil {
		return nil, err
	}

	expiring, err := s.stockView.ExpiringLots(ctx, ExpiryWindowDays)
	if err != nil {
		return nil, err
	}

	expired, err := s.stockView.ExpiredLots(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		ProductsInStock:   len(summaries),
		LowStockCount:     len(lowStock),
		OutOfStockCount:   len(outOfStock),
		ExpiringCount:     len(expiring),
		ExpiredCount:      len(expired),
		CategoryBreakdown: make(map[string]int),
	}

	for _, p := range summaries {
		stats.TotalStock += p.TotalStock
		stats.CategoryBreakdown[p.Category]++
	}

	return stats, nil
}
