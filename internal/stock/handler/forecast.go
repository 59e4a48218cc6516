package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medstock/medstock-backend/internal/stock/service"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// ForecastHandler handles consumption forecast and alert endpoints
type ForecastHandler struct {
	estimator *service.Estimator
	alerts    *service.AlertService
	logger    *logger.Logger
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(estimator *service.Estimator, alerts *service.AlertService, log *logger.Logger) *ForecastHandler {
	return &ForecastHandler{
		estimator: estimator,
		alerts:    alerts,
		logger:    log,
	}
}

// Project returns the depletion projection for a medication
func (h *ForecastHandler) Project(w http.ResponseWriter, r *http.Request) {
	medicationID := chi.URLParam(r, "id")

	windowDays := service.DefaultWindowDays
	if v := r.URL.Query().Get("window_days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			httputil.Error(w, errors.BadRequest("window_days must be a positive integer"))
			return
		}
		windowDays = parsed
	}

	projection, err := h.estimator.Project(r.Context(), medicationID, windowDays)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, projection)
}

// Alerts derives and returns current stock alerts
func (h *ForecastHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.DeriveAlerts(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alerts)
}
