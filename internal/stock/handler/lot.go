package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medstock/medstock-backend/internal/stock/service"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
)

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

// Receive registers a new lot entering the stock
func (h *LotHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var input service.ReceiveLotInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.ledger.ReceiveLot(r.Context(), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, lot)
}

// Get gets a lot with its derived status
func (h *LotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lot, err := h.ledger.GetLot(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// List lists active lots; supports medication_id, location and status filters
func (h *LotHandler) List(w http.ResponseWriter, r *http.Request) {
	medicationID := r.URL.Query().Get("medication_id")
	location := r.URL.Query().Get("location")
	status := service.LotStatus(r.URL.Query().Get("status"))

	lots, err := h.ledger.ListLots(r.Context(), medicationID, location, status)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}
