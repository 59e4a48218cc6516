package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medstock/medstock-backend/internal/stock/service"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// MovementHandler handles ledger endpoints
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

// Apply appends a movement to the ledger
func (h *MovementHandler) Apply(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "id")

	var input service.ApplyMovementInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	input.LotID = lotID
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	movement, err := h.ledger.ApplyMovement(r.Context(), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, movement)
}

// ListByLot lists the ledger for one lot
func (h *MovementHandler) ListByLot(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "id")

	movements, err := h.ledger.ListMovementsByLot(r.Context(), lotID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, movements)
}

// ListByMedication lists movements for a medication over a date range.
// Defaults to the trailing 30 days when from/to are absent.
func (h *MovementHandler) ListByMedication(w http.ResponseWriter, r *http.Request) {
	medicationID := chi.URLParam(r, "id")

	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("from must be a date in YYYY-MM-DD format"))
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("to must be a date in YYYY-MM-DD format"))
			return
		}
		// inclusive end date
		to = parsed.AddDate(0, 0, 1)
	}

	movements, err := h.ledger.ListMovementsByMedication(r.Context(), medicationID, from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, movements)
}
