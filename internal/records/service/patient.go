package service

import (
	"context"
	"time"

	"github.com/medstock/medstock-backend/internal/records/repository"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/principal"
)

// PatientService handles patient record management
type PatientService struct {
	repo   *repository.PatientRepository
	logger *logger.Logger
}

// NewPatientService creates a new patient service
func NewPatientService(repo *repository.PatientRepository, log *logger.Logger) *PatientService {
	return &PatientService{
		repo:   repo,
		logger: log,
	}
}

// PatientInput is the input for creating or updating a patient
type PatientInput struct {
	FullName         string  `json:"full_name" validate:"required"`
	NationalID       *string `json:"national_id"`
	BirthDate        *string `json:"birth_date"`
	Sex              *string `json:"sex" validate:"omitempty,oneof=female male other"`
	Phone            *string `json:"phone"`
	Email            *string `json:"email" validate:"omitempty,email"`
	Address          *string `json:"address"`
	City             *string `json:"city"`
	State            *string `json:"state"`
	PostalCode       *string `json:"postal_code"`
	InsurancePlan    *string `json:"insurance_plan"`
	InsuranceNumber  *string `json:"insurance_number"`
	EmergencyContact *string `json:"emergency_contact"`
	Notes            *string `json:"notes"`
}

func (input *PatientInput) apply(patient *repository.Patient) error {
	patient.FullName = input.FullName
	patient.NationalID = input.NationalID
	patient.Sex = input.Sex
	patient.Phone = input.Phone
	patient.Email = input.Email
	patient.Address = input.Address
	patient.City = input.City
	patient.State = input.State
	patient.PostalCode = input.PostalCode
	patient.InsurancePlan = input.InsurancePlan
	patient.InsuranceNumber = input.InsuranceNumber
	patient.EmergencyContact = input.EmergencyContact
	patient.Notes = input.Notes

	if input.BirthDate != nil && *input.BirthDate != "" {
		birthDate, err := time.Parse("2006-01-02", *input.BirthDate)
		if err != nil {
			return errors.BadRequest("birth_date must be a date in YYYY-MM-DD format")
		}
		if birthDate.After(time.Now()) {
			return errors.BadRequest("birth_date cannot be in the future")
		}
		patient.BirthDate = &birthDate
	} else {
		patient.BirthDate = nil
	}

	return nil
}

// CreatePatient registers a new patient
func (s *PatientService) CreatePatient(ctx context.Context, input *PatientInput) (*repository.Patient, error) {
	patient := &repository.Patient{IsActive: true}
	if err := input.apply(patient); err != nil {
		return nil, err
	}

	if p := principal.FromContext(ctx); p != nil && !p.IsSystem() {
		patient.CreatedBy = &p.ID
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, err
	}

	s.logger.Info().Str("patient_id", patient.ID).Msg("patient registered")
	return patient, nil
}

// GetPatient gets a patient by ID
func (s *PatientService) GetPatient(ctx context.Context, id string) (*repository.Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// ListPatients lists active patients with search and pagination
func (s *PatientService) ListPatients(ctx context.Context, search string, page, perPage int) ([]*repository.Patient, int64, error) {
	return s.repo.List(ctx, search, page, perPage)
}

// UpdatePatient updates a patient's record
func (s *PatientService) UpdatePatient(ctx context.Context, id string, input *PatientInput) (*repository.Patient, error) {
	patient, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := input.apply(patient); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, err
	}

	return patient, nil
}

// DeletePatient marks a patient as inactive
func (s *PatientService) DeletePatient(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}
