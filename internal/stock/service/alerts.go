package service

import (
	"context"
	"fmt"
	"time"

	catalogrepo "github.com/medstock/medstock-backend/internal/catalog/repository"
	"github.com/medstock/medstock-backend/internal/stock/events"
	"github.com/medstock/medstock-backend/internal/stock/repository"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// Alert types
const (
	AlertOutOfStock = "out_of_stock"
	AlertLowStock   = "low_stock"
	AlertNearExpiry = "near_expiry"
	AlertDepletion  = "depletion_forecast"
)

// Alert is a derived stock warning. Alerts are recomputed from the ledger
// on demand, never stored.
type Alert struct {
	AlertType      string     `json:"alert_type"`
	Severity       string     `json:"severity"`
	Message        string     `json:"message"`
	MedicationID   string     `json:"medication_id"`
	MedicationName string     `json:"medication_name"`
	LotID          string     `json:"lot_id,omitempty"`
	LotNumber      string     `json:"lot_number,omitempty"`
	DepletionDate  *time.Time `json:"depletion_date,omitempty"`
}

// AlertService derives alerts from lot status and consumption projections.
type AlertService struct {
	lotRepo        *repository.LotRepository
	medicationRepo *catalogrepo.MedicationRepository
	estimator      *Estimator
	publisher      *events.StockEventPublisher
	logger         *logger.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(
	lotRepo *repository.LotRepository,
	medicationRepo *catalogrepo.MedicationRepository,
	estimator *Estimator,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *AlertService {
	return &AlertService{
		lotRepo:        lotRepo,
		medicationRepo: medicationRepo,
		estimator:      estimator,
		publisher:      publisher,
		logger:         log,
	}
}

// DeriveAlerts scans all active lots and medications and returns current
// alerts. Each alert is also published to the event exchange.
func (s *AlertService) DeriveAlerts(ctx context.Context) ([]*Alert, error) {
	meds, err := s.medicationRepo.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	medNames := make(map[string]string, len(meds))
	for _, m := range meds {
		medNames[m.ID] = m.Name
	}

	lots, err := s.lotRepo.ListActive(ctx, "")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var alerts []*Alert

	for _, lot := range lots {
		name := medNames[lot.MedicationID]
		if name == "" {
			continue // medication soft-deleted
		}

		var alert *Alert
		switch Classify(lot, now) {
		case StatusOutOfStock:
			alert = &Alert{
				AlertType: AlertOutOfStock,
				Severity:  SeverityCritical,
				Message:   fmt.Sprintf("%s lot %s is out of stock", name, lot.LotNumber),
			}
		case StatusLowStock:
			alert = &Alert{
				AlertType: AlertLowStock,
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("%s lot %s is low on stock (%d units left)", name, lot.LotNumber, lot.CurrentQuantity),
			}
		case StatusNearExpiry:
			days := int(lot.ExpiryDate.Sub(dateOnly(now)).Hours() / 24)
			alert = &Alert{
				AlertType: AlertNearExpiry,
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("%s lot %s expires in %d days", name, lot.LotNumber, days),
			}
		default:
			continue
		}

		alert.MedicationID = lot.MedicationID
		alert.MedicationName = name
		alert.LotID = lot.ID
		alert.LotNumber = lot.LotNumber
		alerts = append(alerts, alert)
	}

	// Depletion forecasts per medication
	for _, med := range meds {
		proj, err := s.estimator.Project(ctx, med.ID, DefaultWindowDays)
		if err != nil {
			s.logger.Warn().Err(err).Str("medication_id", med.ID).Msg("projection failed")
			continue
		}
		if proj.InsufficientHistory || proj.Unbounded || proj.Severity == SeverityNone {
			continue
		}

		alerts = append(alerts, &Alert{
			AlertType:      AlertDepletion,
			Severity:       proj.Severity,
			Message:        fmt.Sprintf("%s is projected to run out in %d days", med.Name, proj.DaysRemaining),
			MedicationID:   med.ID,
			MedicationName: med.Name,
			DepletionDate:  proj.DepletionDate,
		})
	}

	for _, alert := range alerts {
		s.publisher.PublishAlertRaised(ctx, alert.AlertType, alert.Severity, alert.Message, alert.MedicationID, alert.LotID)
	}

	return alerts, nil
}
