package handler

import (
	"net/http"
	"strconv"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/service"
	"github.com/pharmatrack/pharmatrack-backend/pkg/httputil"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
)

// MovementHandler handles movement journal endpoints
type MovementHandler struct {
	ledger *service.LedgerService
	logger *logger.Logger
}

// NewMovementHandler creates a new movement handler
func NewMovementHandler(ledger *service.LedgerService, log *logger.Logger) *MovementHandler {
	return &MovementHandler{
		ledger: ledger,
		logger: log,
	}
}

// Recent lists movements within the requested window, newest first
func (h *MovementHandler) Recent(w http.ResponseWriter, r *http.Request) {
	windowDays, _ := strconv.Atoi(r.URL.Query().Get("window_days"))
	if windowDays < 1 {
		windowDays = 7
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	movements, err := h.ledger.RecentMovements(r.Context(), windowDays, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, movements)
}
