package handler

import (
	"net/http"
	"strconv"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/service"
	"github.com/pharmatrack/pharmatrack-backend/pkg/httputil"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
)

// AlertHandler handles alert endpoints
type AlertHandler struct {
	alerts *service.AlertService
	logger *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts *service.AlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: log,
	}
}

// LowStock lists products strictly below the fixed low stock threshold
func (h *AlertHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.LowStockAlerts(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alerts)
}

// OutOfStock lists catalog products with no in-stock quantity
func (h *AlertHandler) OutOfStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.alerts.OutOfStockProducts(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, products)
}

// BelowThreshold lists products below their own catalog threshold
func (h *AlertHandler) BelowThreshold(w http.ResponseWriter, r *http.Request) {
	products, err := h.alerts.BelowProductThreshold(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, products)
}

// Expiring lists lots expiring within the requested window, soonest first
func (h *AlertHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	windowDays, _ := strconv.Atoi(r.URL.Query().Get("window_days"))
	if windowDays < 1 {
		windowDays = service.ExpiryWindowDays
	}

	alerts, err := h.alerts.ExpirationAlerts(r.Context(), windowDays)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alerts)
}

// Expired lists lots past expiry that still hold stock
func (h *AlertHandler) Expired(w http.ResponseWriter, r *http.Request) {
	lots, err := h.alerts.ExpiredLots(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}
