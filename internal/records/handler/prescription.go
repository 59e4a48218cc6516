package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medstock/medstock-backend/internal/records/service"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// PrescriptionHandler handles prescription endpoints
type PrescriptionHandler struct {
	prescriptions *service.PrescriptionService
	logger        *logger.Logger
}

// NewPrescriptionHandler creates a new prescription handler
func NewPrescriptionHandler(prescriptions *service.PrescriptionService, log *logger.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{
		prescriptions: prescriptions,
		logger:        log,
	}
}

// Issue creates a new prescription
func (h *PrescriptionHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var input service.IssueInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	prescription, err := h.prescriptions.Issue(r.Context(), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, prescription)
}

// Get gets a prescription with its items
func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	prescription, err := h.prescriptions.GetPrescription(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, prescription)
}

// ListPending lists active prescriptions waiting to be dispensed
func (h *PrescriptionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	prescriptions, err := h.prescriptions.ListPending(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, prescriptions)
}

// Cancel cancels an active prescription
func (h *PrescriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.prescriptions.Cancel(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Dispense fulfils an active prescription from current stock
func (h *PrescriptionHandler) Dispense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	prescription, err := h.prescriptions.Dispense(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, prescription)
}
