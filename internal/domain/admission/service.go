package admission

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/audit"
	"github.com/hms/hms/internal/platform/events"
	"github.com/hms/hms/internal/platform/locking"
)

// RoomVacator clears whatever room a patient occupies. It returns the
// vacated room id, or "" when the patient held no room.
type RoomVacator interface {
	VacateByPatient(ctx context.Context, patientID string) (string, error)
}

// Service is the patient status machine. The lock check and the state
// write run under a per-patient mutex so two concurrent transitions
// cannot both observe an unlocked record.
type Service struct {
	statuses StatusRepository
	patients identity.PatientRepository
	rooms    RoomVacator
	auditor  audit.Recorder
	bus      *events.Bus
	locks    *locking.Keyed
	logger   zerolog.Logger
}

func NewService(
	statuses StatusRepository,
	patients identity.PatientRepository,
	auditor audit.Recorder,
	bus *events.Bus,
	logger zerolog.Logger,
) *Service {
	return &Service{
		statuses: statuses,
		patients: patients,
		auditor:  auditor,
		bus:      bus,
		locks:    locking.New(),
		logger:   logger,
	}
}

// SetRoomVacator wires the room guard in after construction; the two
// services reference each other.
func (s *Service) SetRoomVacator(r RoomVacator) { s.rooms = r }

// SetStatus transitions a patient to a new clinical status. Terminal
// transitions lock the patient record permanently and vacate any room
// the patient occupies. Every successful transition appends a history
// entry and moves the current-status pointer.
func (s *Service) SetStatus(ctx context.Context, patientID, status string, actorID *string, note string) (Status, error) {
	next, err := ParseStatus(status)
	if err != nil {
		return "", err
	}

	unlock := s.locks.Lock(patientID)
	defer unlock()

	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return "", err
	}
	// The permanent-lock flag is the durable source of truth; the current
	// status is the fast path for the same condition.
	if patient.Locked {
		return "", fmt.Errorf("%w: patient %s", identity.ErrRecordLocked, patientID)
	}
	current, recorded, err := s.statuses.GetCurrent(ctx, patientID)
	if err != nil {
		return "", fmt.Errorf("load current status: %w", err)
	}
	if recorded && current.Terminal() {
		return "", fmt.Errorf("%w: patient %s is %s", identity.ErrRecordLocked, patientID, current)
	}

	if next.Terminal() {
		if err := s.patients.SetLocked(ctx, patientID); err != nil {
			return "", fmt.Errorf("lock patient record: %w", err)
		}
		s.vacateRoom(ctx, patientID, next, actorID)
	}

	entry := &HistoryEntry{PatientID: patientID, Status: next, ActorID: actorID}
	if note != "" {
		entry.Note = &note
	}
	if err := s.statuses.AppendHistory(ctx, entry); err != nil {
		return "", fmt.Errorf("append status history: %w", err)
	}
	if err := s.statuses.SetCurrent(ctx, patientID, next); err != nil {
		return "", fmt.Errorf("set current status: %w", err)
	}

	s.record(ctx, audit.Entry{
		Action: "status." + string(next), Resource: "patient", ResourceID: patientID,
		ActorID: actorID,
	})
	s.bus.Publish(events.PatientStatusChanged, "patient", patientID, map[string]any{
		"status":   next,
		"terminal": next.Terminal(),
	})
	return next, nil
}

// GetStatus returns the patient's current status. Patients without a
// recorded status read as outpatient; that is a display default, not a
// stored transition, so it does not lock anything.
func (s *Service) GetStatus(ctx context.Context, patientID string) (Status, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return "", err
	}
	current, recorded, err := s.statuses.GetCurrent(ctx, patientID)
	if err != nil {
		return "", err
	}
	if !recorded {
		return StatusOutpatient, nil
	}
	return current, nil
}

// History returns the patient's status history, oldest first.
func (s *Service) History(ctx context.Context, patientID string) ([]*HistoryEntry, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.statuses.History(ctx, patientID)
}

// RecordInitialStatus stores the status a patient was registered with.
// Satisfies the registration hook in the identity service.
func (s *Service) RecordInitialStatus(ctx context.Context, patientID, status, note string) error {
	_, err := s.SetStatus(ctx, patientID, status, nil, note)
	return err
}

// vacateRoom frees the patient's room on a terminal transition. Failures
// are logged and do not block the transition; the room guard's vacate is
// idempotent and can be retried by an operator.
func (s *Service) vacateRoom(ctx context.Context, patientID string, next Status, actorID *string) {
	if s.rooms == nil {
		return
	}
	roomID, err := s.rooms.VacateByPatient(ctx, patientID)
	if err != nil {
		s.logger.Error().Err(err).Str("patient_id", patientID).Msg("vacate on terminal status failed")
		return
	}
	if roomID == "" {
		return
	}
	detail := fmt.Sprintf("vacated on transition to %s", next)
	s.record(ctx, audit.Entry{
		Action: "room.vacated", Resource: "room", ResourceID: roomID,
		ActorID: actorID, Detail: &detail,
	})
}

func (s *Service) record(ctx context.Context, e audit.Entry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, e); err != nil {
		s.logger.Error().Err(err).Str("action", e.Action).Msg("audit write failed")
	}
}
