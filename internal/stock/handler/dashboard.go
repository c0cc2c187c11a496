package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/service"
	"github.com/pharmatrack/pharmatrack-backend/pkg/httputil"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
)

// DashboardHandler handles aggregated stock view endpoints
type DashboardHandler struct {
	aggregator *service.AggregatorService
	logger     *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(aggregator *service.AggregatorService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		aggregator: aggregator,
		logger:     log,
	}
}

// Stats returns the overview statistics
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.aggregator.GetDashboardStats(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

// ProductSummaries lists per-product stock totals
func (h *DashboardHandler) ProductSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.aggregator.ProductSummaries(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summaries)
}

// TotalStock returns the in-stock total for one product
func (h *DashboardHandler) TotalStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	total, err := h.aggregator.TotalStock(r.Context(), productID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"product_id":  productID,
		"total_stock": total,
	})
}
