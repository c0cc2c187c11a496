package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/service"
	"github.com/pharmatrack/pharmatrack-backend/pkg/actor"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/httputil"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
)

const dateLayout = "2006-01-02"

// LotHandler handles lot endpoints
type LotHandler struct {
	ledger *service.LedgerService
	logger *logger.Logger
}

// NewLotHandler creates a new lot handler
func NewLotHandler(ledger *service.LedgerService, log *logger.Logger) *LotHandler {
	return &LotHandler{
		ledger: ledger,
		logger: log,
	}
}

// Create receives a new lot into stock
func (h *LotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID       string `json:"product_id" validate:"required"`
		LotNumber       string `json:"lot_number" validate:"required"`
		InitialQuantity int    `json:"initial_quantity" validate:"gte=0"`
		PurchasePrice   string `json:"purchase_price" validate:"required"`
		ReceivedDate    string `json:"received_date" validate:"required"`
		ExpiryDate      string `json:"expiry_date" validate:"required"`
		Status          string `json:"status" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	price, err := decimal.NewFromString(req.PurchasePrice)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid purchase price"))
		return
	}
	receivedDate, err := time.Parse(dateLayout, req.ReceivedDate)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid received date, expected YYYY-MM-DD"))
		return
	}
	expiryDate, err := time.Parse(dateLayout, req.ExpiryDate)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid expiry date, expected YYYY-MM-DD"))
		return
	}

	lot, err := h.ledger.CreateLot(r.Context(), service.CreateLotInput{
		ProductID:       req.ProductID,
		LotNumber:       req.LotNumber,
		InitialQuantity: req.InitialQuantity,
		PurchasePrice:   price,
		ReceivedDate:    receivedDate,
		ExpiryDate:      expiryDate,
		Status:          req.Status,
	}, requestActor(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, lot)
}

// Get gets a lot by ID
func (h *LotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lot, err := h.ledger.GetLot(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// List lists lots with optional status filtering
func (h *LotHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)
	status := r.URL.Query().Get("status")

	lots, total, err := h.ledger.ListLots(r.Context(), page, perPage, status)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, lots, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: int((total + int64(perPage) - 1) / int64(perPage)),
	})
}

// ListByProduct lists a product's lots, soonest expiry first
func (h *LotHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	lots, err := h.ledger.ListLotsByProduct(r.Context(), productID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// Adjust sets a lot to an absolute new quantity
func (h *LotHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		NewQuantity int    `json:"new_quantity" validate:"gte=0"`
		Reason      string `json:"reason"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	movement, err := h.ledger.AdjustQuantity(r.Context(), id, req.NewQuantity, req.Reason, requestActor(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, movement)
}

// ChangeStatus transitions a lot's status
func (h *LotHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.ledger.ChangeStatus(r.Context(), id, req.Status, requestActor(r)); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Movements lists the full journal for one lot, oldest first
func (h *LotHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	movements, err := h.ledger.LotMovements(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, movements)
}

// requestActor resolves the acting user from the request context, falling
// back to the system actor for broker-driven or internal calls.
func requestActor(r *http.Request) actor.Actor {
	if a := actor.FromContext(r.Context()); a != nil {
		return *a
	}
	return *actor.SystemActor()
}

func pagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
