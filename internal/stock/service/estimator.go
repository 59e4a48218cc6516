package service

import (
	"context"
	"math"
	"time"

	catalogrepo "github.com/medstock/medstock-backend/internal/catalog/repository"
	"github.com/medstock/medstock-backend/internal/stock/repository"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// Estimator defaults
const (
	DefaultWindowDays    = 30
	ReorderHorizonDays   = 60
	ReorderTriggerDays   = 30
	SeverityCriticalDays = 7
	SeverityWarningDays  = 15
	SeverityInfoDays     = 30
)

// Alert severities
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
	SeverityNone     = "none"
)

// Projection is the consumption forecast for one medication.
type Projection struct {
	MedicationID        string                     `json:"medication_id"`
	WindowDays          int                        `json:"window_days"`
	CurrentStock        int                        `json:"current_stock"`
	InsufficientHistory bool                       `json:"insufficient_history"`
	AvgDaily            float64                    `json:"avg_daily"`
	TotalConsumed       int                        `json:"total_consumed"`
	DaysRemaining       int                        `json:"days_remaining"`
	Unbounded           bool                       `json:"unbounded"`
	DepletionDate       *time.Time                 `json:"depletion_date,omitempty"`
	ReorderQuantity     int                        `json:"reorder_quantity"`
	Severity            string                     `json:"severity"`
	History             []*repository.DailyOutflow `json:"history,omitempty"`
}

// Estimator computes trailing-window consumption averages and projects
// depletion dates and reorder quantities.
type Estimator struct {
	lotRepo        *repository.LotRepository
	movementRepo   *repository.MovementRepository
	medicationRepo *catalogrepo.MedicationRepository
	logger         *logger.Logger
}

// NewEstimator creates a new estimator
func NewEstimator(
	lotRepo *repository.LotRepository,
	movementRepo *repository.MovementRepository,
	medicationRepo *catalogrepo.MedicationRepository,
	log *logger.Logger,
) *Estimator {
	return &Estimator{
		lotRepo:        lotRepo,
		movementRepo:   movementRepo,
		medicationRepo: medicationRepo,
		logger:         log,
	}
}

// Project forecasts stock depletion for a medication over the trailing
// window (30 days unless overridden).
//
// The daily average divides total outflow by the number of days that had
// at least one outflow, not by the window length. Days without movement do
// not dilute the rate, so sparse consumption reads higher than a true
// calendar-day run rate. That is the established behavior of this report
// and downstream reorder planning depends on it; do not change the divisor
// without product sign-off.
func (e *Estimator) Project(ctx context.Context, medicationID string, windowDays int) (*Projection, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	med, err := e.medicationRepo.GetByID(ctx, medicationID)
	if err != nil {
		return nil, err
	}
	if !med.IsActive {
		return nil, errors.NotFound("medication")
	}

	history, err := e.movementRepo.DailyOutflows(ctx, medicationID, windowDays)
	if err != nil {
		return nil, err
	}

	currentStock, err := e.lotRepo.GetTotalStock(ctx, medicationID)
	if err != nil {
		return nil, err
	}

	proj := &Projection{
		MedicationID: medicationID,
		WindowDays:   windowDays,
		CurrentStock: currentStock,
		Severity:     SeverityNone,
		History:      history,
	}

	// No outflow in the window: report insufficient history rather than a
	// zero consumption rate.
	if len(history) == 0 {
		proj.InsufficientHistory = true
		return proj, nil
	}

	total := 0
	for _, day := range history {
		total += day.Quantity
	}
	proj.TotalConsumed = total
	proj.AvgDaily = float64(total) / float64(len(history))

	if proj.AvgDaily <= 0 {
		proj.Unbounded = true
		return proj, nil
	}

	daysExact := float64(currentStock) / proj.AvgDaily
	proj.DaysRemaining = int(daysExact)

	depletion := dateOnly(time.Now()).AddDate(0, 0, proj.DaysRemaining)
	proj.DepletionDate = &depletion

	switch {
	case daysExact < SeverityCriticalDays:
		proj.Severity = SeverityCritical
	case daysExact < SeverityWarningDays:
		proj.Severity = SeverityWarning
	case daysExact < SeverityInfoDays:
		proj.Severity = SeverityInfo
	}

	// Suggest topping up to a 60-day horizon once less than 30 days remain.
	if daysExact < ReorderTriggerDays {
		proj.ReorderQuantity = int(math.Round(proj.AvgDaily * ReorderHorizonDays))
	}

	return proj, nil
}
