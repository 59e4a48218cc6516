package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/medstock/medstock-backend/internal/reports/service"
	stockservice "github.com/medstock/medstock-backend/internal/stock/service"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// ReportHandler handles reporting endpoints
type ReportHandler struct {
	reports *service.ReportService
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports *service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  log,
	}
}

// Dashboard returns the operational snapshot
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.reports.BuildDashboard(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, dashboard)
}

// ExpiringLots lists lots expiring within within_days (30 by default)
func (h *ReportHandler) ExpiringLots(w http.ResponseWriter, r *http.Request) {
	withinDays := stockservice.NearExpiryWindowDays
	if v := r.URL.Query().Get("within_days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			httputil.Error(w, errors.BadRequest("within_days must be a positive integer"))
			return
		}
		withinDays = parsed
	}

	lots, err := h.reports.ExpiringLots(r.Context(), withinDays)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// Movements aggregates movement totals over a date range, defaulting to
// the trailing week
func (h *ReportHandler) Movements(w http.ResponseWriter, r *http.Request) {
	to := time.Now()
	from := to.AddDate(0, 0, -service.MovementReportDays)

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
		to = parsed.AddDate(0, 0, 1)
	}

	totals, err := h.reports.MovementTotals(r.Context(), from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, totals)
}
