package identity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/sequence"
)

// AdmissionRecorder writes the initial clinical status for a newly
// registered patient. Implemented by the admission service; wired in main
// to avoid an import cycle.
type AdmissionRecorder interface {
	RecordInitialStatus(ctx context.Context, patientID, status, note string) error
}

// Registration types that create an initial status record. Plain
// outpatient registration leaves the status unset.
var admittingTypes = map[string]bool{
	"admitted":  true,
	"emergency": true,
}

type Service struct {
	patients   PatientRepository
	staff      StaffRepository
	seq        sequence.Generator
	admissions AdmissionRecorder
	logger     zerolog.Logger
}

func NewService(patients PatientRepository, staff StaffRepository, seq sequence.Generator, logger zerolog.Logger) *Service {
	return &Service{patients: patients, staff: staff, seq: seq, logger: logger}
}

// SetAdmissionRecorder attaches the optional admission collaborator.
func (s *Service) SetAdmissionRecorder(r AdmissionRecorder) {
	s.admissions = r
}

type RegisterPatientInput struct {
	Name        string  `json:"name"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	InitialType string  `json:"initial_type,omitempty"` // outpatient (default), admitted, emergency
}

// RegisterPatient creates a patient record. When the registration type is
// admitted or emergency, the first status history entry is written as well.
func (s *Service) RegisterPatient(ctx context.Context, in RegisterPatientInput) (*Patient, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if in.InitialType != "" && in.InitialType != "outpatient" && !admittingTypes[in.InitialType] {
		return nil, fmt.Errorf("invalid registration type: %s", in.InitialType)
	}

	id, err := s.seq.Next(ctx, "PAT")
	if err != nil {
		return nil, fmt.Errorf("allocate patient id: %w", err)
	}

	p := &Patient{
		ID:     id,
		Name:   in.Name,
		Email:  in.Email,
		Phone:  in.Phone,
		Active: true,
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}

	if admittingTypes[in.InitialType] && s.admissions != nil {
		note := "Registered as " + in.InitialType
		if err := s.admissions.RecordInitialStatus(ctx, p.ID, in.InitialType, note); err != nil {
			// The patient exists either way; the status can be set again.
			s.logger.Error().Err(err).Str("patient_id", p.ID).Msg("initial status not recorded")
		}
	}

	return p, nil
}

type UpdatePatientInput struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// UpdatePatient edits demographic fields. It refuses any edit once the
// permanent-lock flag is set.
func (s *Service) UpdatePatient(ctx context.Context, id string, in UpdatePatientInput) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Locked {
		return nil, fmt.Errorf("%w: %s", ErrRecordLocked, id)
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, fmt.Errorf("name cannot be empty")
		}
		p.Name = *in.Name
	}
	if in.Email != nil {
		p.Email = in.Email
	}
	if in.Phone != nil {
		p.Phone = in.Phone
	}

	if err := s.patients.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

type RegisterStaffInput struct {
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Department *string `json:"department,omitempty"`
}

func (s *Service) RegisterStaff(ctx context.Context, in RegisterStaffInput) (*Staff, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !validRoles[in.Role] {
		return nil, fmt.Errorf("invalid role: %s", in.Role)
	}

	id, err := s.seq.Next(ctx, "STF")
	if err != nil {
		return nil, fmt.Errorf("allocate staff id: %w", err)
	}

	st := &Staff{
		ID:         id,
		Name:       in.Name,
		Role:       in.Role,
		Department: in.Department,
		Active:     true,
	}
	if err := s.staff.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("create staff: %w", err)
	}
	return st, nil
}

func (s *Service) GetStaff(ctx context.Context, id string) (*Staff, error) {
	return s.staff.GetByID(ctx, id)
}

func (s *Service) ListStaff(ctx context.Context, limit, offset int) ([]*Staff, int, error) {
	return s.staff.List(ctx, limit, offset)
}
