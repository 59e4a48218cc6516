package service

import (
	"context"
	"time"

	catalogrepo "github.com/medstock/medstock-backend/internal/catalog/repository"
	recordsrepo "github.com/medstock/medstock-backend/internal/records/repository"
	stockrepo "github.com/medstock/medstock-backend/internal/stock/repository"
	stockservice "github.com/medstock/medstock-backend/internal/stock/service"
	"github.com/medstock/medstock-backend/pkg/logger"
)

// MovementReportDays is the span of the dashboard movement summary
const MovementReportDays = 7

// StockSummary counts active lots per derived status
type StockSummary struct {
	Normal     int `json:"normal"`
	LowStock   int `json:"low_stock"`
	NearExpiry int `json:"near_expiry"`
	OutOfStock int `json:"out_of_stock"`
	TotalLots  int `json:"total_lots"`
}

// Dashboard is the operational snapshot served to the front page
type Dashboard struct {
	Patients             int                    `json:"patients"`
	Medications          int                    `json:"medications"`
	Stock                StockSummary           `json:"stock"`
	AppointmentsToday    int                    `json:"appointments_today"`
	PendingPrescriptions int                    `json:"pending_prescriptions"`
	ExpiringLots         []*stockrepo.Lot       `json:"expiring_lots"`
	MovementTotals       []*stockrepo.TypeTotal `json:"movement_totals"`
	MovementTotalsDays   int                    `json:"movement_totals_days"`
	GeneratedAt          time.Time              `json:"generated_at"`
}

// ReportService aggregates cross-vertical reporting queries
type ReportService struct {
	patientRepo      *recordsrepo.PatientRepository
	appointmentRepo  *recordsrepo.AppointmentRepository
	prescriptionRepo *recordsrepo.PrescriptionRepository
	medicationRepo   *catalogrepo.MedicationRepository
	lotRepo          *stockrepo.LotRepository
	movementRepo     *stockrepo.MovementRepository
	logger           *logger.Logger
}

// NewReportService creates a new report service
func NewReportService(
	patientRepo *recordsrepo.PatientRepository,
	appointmentRepo *recordsrepo.AppointmentRepository,
	prescriptionRepo *recordsrepo.PrescriptionRepository,
	medicationRepo *catalogrepo.MedicationRepository,
	lotRepo *stockrepo.LotRepository,
	movementRepo *stockrepo.MovementRepository,
	log *logger.Logger,
) *ReportService {
	return &ReportService{
		patientRepo:      patientRepo,
		appointmentRepo:  appointmentRepo,
		prescriptionRepo: prescriptionRepo,
		medicationRepo:   medicationRepo,
		lotRepo:          lotRepo,
		movementRepo:     movementRepo,
		logger:           log,
	}
}

// BuildDashboard assembles the dashboard snapshot. Lot statuses are derived
// with the classifier at read time, never read from storage.
func (s *ReportService) BuildDashboard(ctx context.Context) (*Dashboard, error) {
	now := time.Now()

	patients, err := s.patientRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	medications, err := s.medicationRepo.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	lots, err := s.lotRepo.ListActive(ctx, "")
	if err != nil {
		return nil, err
	}

	var summary StockSummary
	summary.TotalLots = len(lots)
	for _, lot := range lots {
		switch stockservice.Classify(lot, now) {
		case stockservice.StatusOutOfStock:
			summary.OutOfStock++
		case stockservice.StatusLowStock:
			summary.LowStock++
		case stockservice.StatusNearExpiry:
			summary.NearExpiry++
		default:
			summary.Normal++
		}
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	appointmentsToday, err := s.appointmentRepo.CountByStatusInRange(
		ctx, recordsrepo.AppointmentScheduled, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	pending, err := s.prescriptionRepo.CountByStatus(ctx, recordsrepo.PrescriptionActive)
	if err != nil {
		return nil, err
	}

	expiring, err := s.lotRepo.GetExpiringLots(ctx, stockservice.NearExpiryWindowDays)
	if err != nil {
		return nil, err
	}

	totals, err := s.movementRepo.TotalsByType(ctx, today.AddDate(0, 0, -MovementReportDays), today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Patients:             patients,
		Medications:          medications,
		Stock:                summary,
		AppointmentsToday:    appointmentsToday,
		PendingPrescriptions: pending,
		ExpiringLots:         expiring,
		MovementTotals:       totals,
		MovementTotalsDays:   MovementReportDays,
		GeneratedAt:          now,
	}, nil
}

// ExpiringLots lists active lots expiring within the given number of days
func (s *ReportService) ExpiringLots(ctx context.Context, withinDays int) ([]*stockrepo.Lot, error) {
	return s.lotRepo.GetExpiringLots(ctx, withinDays)
}

// MovementTotals aggregates movement quantities by type within [from, to)
func (s *ReportService) MovementTotals(ctx context.Context, from, to time.Time) ([]*stockrepo.TypeTotal, error) {
	return s.movementRepo.TotalsByType(ctx, from, to)
}
