package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/events"
	"github.com/hms/hms/internal/platform/locking"
	"github.com/hms/hms/internal/platform/sequence"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"

	notePending     = "Pending confirmation"
	noteConfirmed   = "Confirmed by doctor"
	noteRescheduled = "Rescheduled by doctor"
)

var (
	ErrValidation    = errors.New("invalid scheduling input")
	ErrPastSchedule  = errors.New("appointment time must be in the future")
	ErrDoubleBooked  = errors.New("staff member already booked for this slot")
	ErrNotAuthorized = errors.New("not authorized for this appointment")
)

// ReminderSender delivers booking reminders. Failures are logged and
// swallowed; a reminder can never fail a booking.
type ReminderSender interface {
	SendReminder(ctx context.Context, recipient, subject, body string) error
}

// Service books, cancels, reschedules and confirms appointments, and
// performs bulk day rescheduling for a doctor. The conflict scan and the
// write that follows it run under a per-staff mutex so two concurrent
// bookings for the same staff member cannot both pass the scan.
type Service struct {
	appts    AppointmentRepository
	patients identity.PatientRepository
	staff    identity.StaffRepository
	seq      sequence.Generator
	notifier ReminderSender
	bus      *events.Bus
	locks    *locking.Keyed
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(
	appts AppointmentRepository,
	patients identity.PatientRepository,
	staff identity.StaffRepository,
	seq sequence.Generator,
	notifier ReminderSender,
	bus *events.Bus,
	logger zerolog.Logger,
) *Service {
	return &Service{
		appts:    appts,
		patients: patients,
		staff:    staff,
		seq:      seq,
		notifier: notifier,
		bus:      bus,
		locks:    locking.New(),
		logger:   logger,
		now:      time.Now,
	}
}

type ScheduleInput struct {
	PatientID  string `json:"patient_id"`
	StaffID    string `json:"staff_id"`
	Date       string `json:"date"` // 2006-01-02
	Time       string `json:"time"` // 15:04
	Department string `json:"department"`
}

// Schedule books a one-hour appointment.
func (s *Service) Schedule(ctx context.Context, in ScheduleInput) (*Appointment, error) {
	if in.PatientID == "" || in.StaffID == "" || in.Date == "" || in.Time == "" || in.Department == "" {
		return nil, fmt.Errorf("%w: all fields are required", ErrValidation)
	}
	if !validDepartments[in.Department] {
		return nil, fmt.Errorf("%w: unknown department %q", ErrValidation, in.Department)
	}

	start, err := parseDateTime(in.Date, in.Time)
	if err != nil {
		return nil, err
	}
	if !start.After(s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrPastSchedule, start.Format(dateTimeLayout))
	}

	patient, err := s.patients.GetByID(ctx, in.PatientID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, fmt.Errorf("%w: patient %s", ErrNotFound, in.PatientID)
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if !patient.Active {
		return nil, fmt.Errorf("%w: patient %s is inactive", ErrValidation, in.PatientID)
	}
	staff, err := s.staff.GetByID(ctx, in.StaffID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, fmt.Errorf("%w: staff %s", ErrNotFound, in.StaffID)
		}
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if !staff.Active {
		return nil, fmt.Errorf("%w: staff %s is inactive", ErrValidation, in.StaffID)
	}

	unlock := s.locks.Lock(in.StaffID)
	defer unlock()

	if err := s.checkConflict(ctx, in.StaffID, start, ""); err != nil {
		return nil, err
	}

	id, err := s.seq.Next(ctx, "APT")
	if err != nil {
		return nil, fmt.Errorf("allocate appointment id: %w", err)
	}

	notes := notePending
	appt := &Appointment{
		ID:         id,
		PatientID:  in.PatientID,
		StaffID:    in.StaffID,
		Department: in.Department,
		StartTime:  start,
		Status:     StatusPending,
		Notes:      &notes,
	}
	if err := s.appts.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.sendReminder(ctx, patient, appt)
	s.bus.Publish(events.AppointmentBooked, "appointment", appt.ID, map[string]any{
		"patient_id": appt.PatientID,
		"staff_id":   appt.StaffID,
		"start_time": appt.StartTime,
	})

	return appt, nil
}

// Cancel removes an appointment entirely.
func (s *Service) Cancel(ctx context.Context, id string) error {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.appts.Delete(ctx, id); err != nil {
		return err
	}

	s.bus.Publish(events.AppointmentCancelled, "appointment", id, map[string]any{
		"patient_id": appt.PatientID,
		"staff_id":   appt.StaffID,
	})
	return nil
}

// Reschedule moves an appointment to a new date and time. The conflict
// scan excludes the appointment itself; notes are left untouched.
func (s *Service) Reschedule(ctx context.Context, id, date, timeOfDay string) (*Appointment, error) {
	if date == "" || timeOfDay == "" {
		return nil, fmt.Errorf("%w: date and time are required", ErrValidation)
	}
	start, err := parseDateTime(date, timeOfDay)
	if err != nil {
		return nil, err
	}
	if !start.After(s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrPastSchedule, start.Format(dateTimeLayout))
	}

	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(appt.StaffID)
	defer unlock()

	if err := s.checkConflict(ctx, appt.StaffID, start, appt.ID); err != nil {
		return nil, err
	}

	appt.StartTime = start
	if err := s.appts.Update(ctx, appt); err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	s.bus.Publish(events.AppointmentRescheduled, "appointment", appt.ID, map[string]any{
		"staff_id":   appt.StaffID,
		"start_time": appt.StartTime,
	})
	return appt, nil
}

// Confirm marks an appointment confirmed. Only the assigned doctor may
// confirm it.
func (s *Service) Confirm(ctx context.Context, id, staffID string) (*Appointment, error) {
	if staffID == "" {
		return nil, fmt.Errorf("%w: staff id is required", ErrValidation)
	}
	staff, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, fmt.Errorf("%w: staff %s", ErrNotFound, staffID)
		}
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if !staff.Active || staff.Role != identity.RoleDoctor {
		return nil, fmt.Errorf("%w: confirmation requires an active doctor", ErrNotAuthorized)
	}

	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.StaffID != staffID {
		return nil, fmt.Errorf("%w: appointment belongs to %s", ErrNotAuthorized, appt.StaffID)
	}

	notes := noteConfirmed
	appt.Status = StatusConfirmed
	appt.Notes = &notes
	if err := s.appts.Update(ctx, appt); err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	s.bus.Publish(events.AppointmentConfirmed, "appointment", appt.ID, map[string]any{
		"staff_id": staffID,
	})
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.appts.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByStaff(ctx context.Context, staffID string) ([]*Appointment, error) {
	return s.appts.ListByStaff(ctx, staffID)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.List(ctx, limit, offset)
}

// checkConflict scans every appointment of the staff member and rejects
// the candidate slot if any existing slot collides under the
// boundary-inclusive test. excludeID skips the appointment being
// rescheduled. Callers must hold the staff lock.
func (s *Service) checkConflict(ctx context.Context, staffID string, start time.Time, excludeID string) error {
	existing, err := s.appts.ListByStaff(ctx, staffID)
	if err != nil {
		return fmt.Errorf("scan appointments: %w", err)
	}
	for _, e := range existing {
		if e.ID == excludeID {
			continue
		}
		if conflicts(start, e.StartTime) {
			return fmt.Errorf("%w: overlaps %s at %s", ErrDoubleBooked, e.ID, e.StartTime.Format(dateTimeLayout))
		}
	}
	return nil
}

// sendReminder notifies the patient about the new booking. Best effort:
// patients without a contact address are skipped, delivery errors are
// logged only.
func (s *Service) sendReminder(ctx context.Context, patient *identity.Patient, appt *Appointment) {
	if s.notifier == nil {
		return
	}
	contact := patient.ContactAddress()
	if contact == nil {
		return
	}
	body := fmt.Sprintf("Your %s appointment %s is booked for %s.",
		appt.Department, appt.ID, appt.StartTime.Format(dateTimeLayout))
	if err := s.notifier.SendReminder(ctx, *contact, "Appointment reminder", body); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", appt.ID).Msg("reminder not delivered")
	}
}

func parseDateTime(date, timeOfDay string) (time.Time, error) {
	t, err := time.ParseInLocation(dateTimeLayout, date+" "+timeOfDay, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date/time %q %q", ErrValidation, date, timeOfDay)
	}
	return t, nil
}
