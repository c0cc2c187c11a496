package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/service"
	"github.com/pharmatrack/pharmatrack-backend/pkg/httputil"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
)

// SessionHandler handles inventory session endpoints
type SessionHandler struct {
	inventory *service.InventoryService
	logger    *logger.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(inventory *service.InventoryService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		inventory: inventory,
		logger:    log,
	}
}

// Start opens a new reconciliation session
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionType string `json:"session_type" validate:"required,oneof=full partial cyclic targeted"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	session, err := h.inventory.StartSession(r.Context(), req.SessionType, requestActor(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, session)
}

// Get gets a session with its lines and progress
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.inventory.GetSession(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, session)
}

// List lists sessions newest first
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	sessions, err := h.inventory.ListSessions(r.Context(), status, limit, offset)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, sessions)
}

// AddLine adds one lot to an in-progress session
func (h *SessionHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		LotID string `json:"lot_id" validate:"required,uuid"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	line, err := h.inventory.AddLine(r.Context(), id, req.LotID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, line)
}

// RecordCount records the physically counted quantity for a lot's line
func (h *SessionHandler) RecordCount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lotID := chi.URLParam(r, "lotId")

	var req struct {
		Counted int `json:"counted" validate:"gte=0"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	line, err := h.inventory.RecordCount(r.Context(), id, lotID, req.Counted)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, line)
}

// Progress reports the session's reconciliation percentage
func (h *SessionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	progress, err := h.inventory.Progress(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]float64{"progress": progress})
}

// Close closes an in-progress session
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.inventory.CloseSession(r.Context(), id, requestActor(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, session)
}

// ApplyLine pushes a counted discrepancy into live stock as a ledger
// adjustment
func (h *SessionHandler) ApplyLine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lotID := chi.URLParam(r, "lotId")

	movement, err := h.inventory.ApplyLine(r.Context(), id, lotID, requestActor(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, movement)
}
