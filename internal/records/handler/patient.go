package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medstock/medstock-backend/internal/records/service"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// PatientHandler handles patient endpoints
type PatientHandler struct {
	patients      *service.PatientService
	appointments  *service.AppointmentService
	prescriptions *service.PrescriptionService
	logger        *logger.Logger
}

// NewPatientHandler creates a new patient handler
func NewPatientHandler(
	patients *service.PatientService,
	appointments *service.AppointmentService,
	prescriptions *service.PrescriptionService,
	log *logger.Logger,
) *PatientHandler {
	return &PatientHandler{
		patients:      patients,
		appointments:  appointments,
		prescriptions: prescriptions,
		logger:        log,
	}
}

// Create registers a new patient
func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.PatientInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	patient, err := h.patients.CreatePatient(r.Context(), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, patient)
}

// Get gets a patient by ID
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	patient, err := h.patients.GetPatient(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, patient)
}

// List lists patients with search and pagination
func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	search := r.URL.Query().Get("search")

	patients, total, err := h.patients.ListPatients(r.Context(), search, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	httputil.JSONWithMeta(w, http.StatusOK, patients, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Update updates a patient's record
func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input service.PatientInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	patient, err := h.patients.UpdatePatient(r.Context(), id, &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, patient)
}

// Delete marks a patient as inactive
func (h *PatientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.patients.DeletePatient(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Appointments lists a patient's appointment history
func (h *PatientHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	appts, err := h.appointments.ListByPatient(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, appts)
}

// Prescriptions lists a patient's prescriptions
func (h *PatientHandler) Prescriptions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	prescriptions, err := h.prescriptions.ListByPatient(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, prescriptions)
}
