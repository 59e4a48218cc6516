package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medstock/medstock-backend/internal/records/service"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// AppointmentHandler handles appointment endpoints
type AppointmentHandler struct {
	appointments *service.AppointmentService
	logger       *logger.Logger
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(appointments *service.AppointmentService, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		appointments: appointments,
		logger:       log,
	}
}

// Schedule books a new appointment
func (h *AppointmentHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var input service.ScheduleInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	appt, err := h.appointments.Schedule(r.Context(), &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, appt)
}

// Get gets an appointment by ID
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	appt, err := h.appointments.GetAppointment(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, appt)
}

// Agenda returns the weekly agenda starting at the given day (today by
// default)
func (h *AppointmentHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	from := time.Now()
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("from must be a date in YYYY-MM-DD format"))
			return
		}
		from = parsed
	}

	appts, err := h.appointments.Agenda(r.Context(), from)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, appts)
}

// Update updates a scheduled appointment
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input service.UpdateInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	appt, err := h.appointments.Update(r.Context(), id, &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, appt)
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,oneof=completed cancelled no_show"`
}

// Transition moves an appointment to a new status
func (h *AppointmentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req transitionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.appointments.Transition(r.Context(), id, req.Status); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
