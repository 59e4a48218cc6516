package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medstock/medstock-backend/internal/catalog/repository"
	"github.com/medstock/medstock-backend/pkg/httputil"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/principal"
)

// MedicationHandler handles medication catalog endpoints
type MedicationHandler struct {
	repo   *repository.MedicationRepository
	logger *logger.Logger
}

// NewMedicationHandler creates a new medication handler
func NewMedicationHandler(repo *repository.MedicationRepository, log *logger.Logger) *MedicationHandler {
	return &MedicationHandler{
		repo:   repo,
		logger: log,
	}
}

type medicationRequest struct {
	Name                string  `json:"name" validate:"required"`
	ActiveIngredient    *string `json:"active_ingredient"`
	Manufacturer        *string `json:"manufacturer"`
	Category            *string `json:"category"`
	Presentation        *string `json:"presentation"`
	Concentration       *string `json:"concentration"`
	Controlled          bool    `json:"controlled"`
	StorageTemperature  *string `json:"storage_temperature"`
	AdministrationRoute *string `json:"administration_route"`
	Notes               *string `json:"notes"`
}

// Create creates a new medication
func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req medicationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	med := repository.Medication{
		Name:                req.Name,
		ActiveIngredient:    req.ActiveIngredient,
		Manufacturer:        req.Manufacturer,
		Category:            req.Category,
		Presentation:        req.Presentation,
		Concentration:       req.Concentration,
		Controlled:          req.Controlled,
		StorageTemperature:  req.StorageTemperature,
		AdministrationRoute: req.AdministrationRoute,
		Notes:               req.Notes,
		IsActive:            true,
		CreatedBy:           principal.MustFromContext(r.Context()).ID,
	}

	if err := h.repo.Create(r.Context(), &med); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, med)
}

// Get gets a medication by ID
func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	med, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, med)
}

// List lists medications with search, category filter and pagination
func (h *MedicationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	search := r.URL.Query().Get("search")
	category := r.URL.Query().Get("category")

	meds, total, err := h.repo.List(r.Context(), search, category, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	httputil.JSONWithMeta(w, http.StatusOK, meds, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Update updates a medication's descriptive fields
func (h *MedicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req medicationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	med := repository.Medication{
		ID:                  id,
		Name:                req.Name,
		ActiveIngredient:    req.ActiveIngredient,
		Manufacturer:        req.Manufacturer,
		Category:            req.Category,
		Presentation:        req.Presentation,
		Concentration:       req.Concentration,
		Controlled:          req.Controlled,
		StorageTemperature:  req.StorageTemperature,
		AdministrationRoute: req.AdministrationRoute,
		Notes:               req.Notes,
	}

	if err := h.repo.Update(r.Context(), &med); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, med)
}

// Delete soft-deletes a medication
func (h *MedicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.repo.SoftDelete(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
