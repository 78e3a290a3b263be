package rooms

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/audit"
	"github.com/hms/hms/internal/platform/events"
	"github.com/hms/hms/internal/platform/locking"
	"github.com/hms/hms/internal/platform/sequence"
)

// StatusReader exposes the current clinical status of a patient. Wired
// to the status machine through an adapter in main so the two packages
// don't import each other.
type StatusReader interface {
	CurrentStatus(ctx context.Context, patientID string) (string, error)
}

// Service assigns and vacates rooms. Assign runs its eligibility checks
// under a per-patient mutex; Vacate takes no lock so the status machine
// can call VacateByPatient while it holds the patient's own lock.
type Service struct {
	repo     RoomRepository
	patients identity.PatientRepository
	statuses StatusReader
	seq      sequence.Generator
	auditor  audit.Recorder
	bus      *events.Bus
	locks    *locking.Keyed
	logger   zerolog.Logger
}

func NewService(
	repo RoomRepository,
	patients identity.PatientRepository,
	statuses StatusReader,
	seq sequence.Generator,
	auditor audit.Recorder,
	bus *events.Bus,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		statuses: statuses,
		seq:      seq,
		auditor:  auditor,
		bus:      bus,
		locks:    locking.New(),
		logger:   logger,
	}
}

// Provision fills the fixed room pool up to size rooms. Existing rooms
// are kept; only the shortfall is created. Run at startup.
func (s *Service) Provision(ctx context.Context, size int) error {
	existing, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count rooms: %w", err)
	}
	for i := existing; i < size; i++ {
		id, err := s.seq.Next(ctx, "ROM")
		if err != nil {
			return fmt.Errorf("allocate room id: %w", err)
		}
		room := &Room{
			ID:     id,
			Number: fmt.Sprintf("%03d", i+1),
			Status: OccupancyVacant,
		}
		if err := s.repo.Create(ctx, room); err != nil {
			return fmt.Errorf("create room %s: %w", id, err)
		}
	}
	return nil
}

// Assign puts an admitted patient into a room. Assigning a patient to
// the room they already occupy is a no-op success.
func (s *Service) Assign(ctx context.Context, roomID, patientID string) (*Room, error) {
	if roomID == "" || patientID == "" {
		return nil, fmt.Errorf("%w: room and patient ids are required", ErrNotFound)
	}

	unlock := s.locks.Lock(patientID)
	defer unlock()

	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	status, err := s.statuses.CurrentStatus(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("read patient status: %w", err)
	}
	if status != "admitted" {
		return nil, fmt.Errorf("%w: patient %s is %s", ErrWrongStatus, patientID, status)
	}

	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.OccupantID != nil {
		if *room.OccupantID == patientID {
			return room, nil
		}
		return nil, fmt.Errorf("%w: room %s held by %s", ErrRoomOccupied, roomID, *room.OccupantID)
	}
	if held, err := s.repo.GetByOccupant(ctx, patientID); err == nil {
		return nil, fmt.Errorf("%w: patient %s holds room %s", ErrAlreadyAssigned, patientID, held.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("scan occupancy: %w", err)
	}

	if err := s.repo.SetOccupant(ctx, roomID, &patientID); err != nil {
		return nil, fmt.Errorf("assign room: %w", err)
	}
	room.Status = OccupancyOccupied
	room.OccupantID = &patientID

	s.record(ctx, audit.Entry{
		Action: "room.assigned", Resource: "room", ResourceID: roomID,
		Detail: &patientID,
	})
	s.bus.Publish(events.RoomAssigned, "room", roomID, map[string]any{
		"patient_id": patientID,
	})
	return room, nil
}

// Vacate clears a room regardless of who occupies it. Vacating an
// already vacant room succeeds.
func (s *Service) Vacate(ctx context.Context, roomID string) (*Room, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.OccupantID == nil {
		return room, nil
	}
	previous := *room.OccupantID

	if err := s.repo.SetOccupant(ctx, roomID, nil); err != nil {
		return nil, fmt.Errorf("vacate room: %w", err)
	}
	room.Status = OccupancyVacant
	room.OccupantID = nil

	s.record(ctx, audit.Entry{
		Action: "room.vacated", Resource: "room", ResourceID: roomID,
		Detail: &previous,
	})
	s.bus.Publish(events.RoomVacated, "room", roomID, map[string]any{
		"patient_id": previous,
	})
	return room, nil
}

// VacateByPatient frees whatever room the patient occupies and returns
// its id, or "" when the patient holds none.
func (s *Service) VacateByPatient(ctx context.Context, patientID string) (string, error) {
	room, err := s.repo.GetByOccupant(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if _, err := s.Vacate(ctx, room.ID); err != nil {
		return "", err
	}
	return room.ID, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Room, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Room, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) record(ctx context.Context, e audit.Entry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, e); err != nil {
		s.logger.Error().Err(err).Str("action", e.Action).Msg("audit write failed")
	}
}
