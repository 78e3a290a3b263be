package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/audit"
	"github.com/hms/hms/internal/platform/events"
)

// -- Mocks --

type mockStatusRepo struct {
	mu      sync.Mutex
	current map[string]Status
	history []*HistoryEntry
	nextID  int64
}

func newMockStatusRepo() *mockStatusRepo {
	return &mockStatusRepo{current: make(map[string]Status)}
}

func (m *mockStatusRepo) GetCurrent(_ context.Context, patientID string) (Status, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.current[patientID]
	return st, ok, nil
}

func (m *mockStatusRepo) SetCurrent(_ context.Context, patientID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current[patientID] = status
	return nil
}

func (m *mockStatusRepo) AppendHistory(_ context.Context, e *HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	e.CreatedAt = time.Now()
	cp := *e
	m.history = append(m.history, &cp)
	return nil
}

func (m *mockStatusRepo) History(_ context.Context, patientID string) ([]*HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*HistoryEntry
	for _, e := range m.history {
		if e.PatientID == patientID {
			items = append(items, e)
		}
	}
	return items, nil
}

type stubPatientRepo struct {
	mu       sync.Mutex
	patients map[string]*identity.Patient
}

func (s *stubPatientRepo) Create(_ context.Context, p *identity.Patient) error { return nil }
func (s *stubPatientRepo) GetByID(_ context.Context, id string) (*identity.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	cp := *p
	return &cp, nil
}
func (s *stubPatientRepo) Update(_ context.Context, p *identity.Patient) error { return nil }
func (s *stubPatientRepo) SetLocked(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return identity.ErrNotFound
	}
	p.Locked = true
	return nil
}
func (s *stubPatientRepo) List(_ context.Context, limit, offset int) ([]*identity.Patient, int, error) {
	return nil, 0, nil
}

type fakeVacator struct {
	mu       sync.Mutex
	occupied map[string]string // patient id -> room id
	calls    []string
	fail     bool
}

func (f *fakeVacator) VacateByPatient(_ context.Context, patientID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", fmt.Errorf("room store down")
	}
	f.calls = append(f.calls, patientID)
	roomID := f.occupied[patientID]
	delete(f.occupied, patientID)
	return roomID, nil
}

func newTestService() (*Service, *stubPatientRepo, *mockStatusRepo, *fakeVacator) {
	patients := &stubPatientRepo{patients: map[string]*identity.Patient{
		"PAT-1": {ID: "PAT-1", Name: "Alex Stone", Active: true},
		"PAT-2": {ID: "PAT-2", Name: "Rae Ng", Active: true},
	}}
	statuses := newMockStatusRepo()
	vacator := &fakeVacator{occupied: make(map[string]string)}
	svc := NewService(statuses, patients, &audit.LogRecorder{Logger: zerolog.Nop()},
		events.NewBus(zerolog.Nop()), zerolog.Nop())
	svc.SetRoomVacator(vacator)
	return svc, patients, statuses, vacator
}

// -- Tests --

func TestSetStatus(t *testing.T) {
	svc, patients, statuses, vacator := newTestService()
	ctx := context.Background()

	actor := "STF-1"
	got, err := svc.SetStatus(ctx, "PAT-1", "admitted", &actor, "ward 3")
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if got != StatusAdmitted {
		t.Errorf("expected admitted, got %s", got)
	}

	current, ok, _ := statuses.GetCurrent(ctx, "PAT-1")
	if !ok || current != StatusAdmitted {
		t.Errorf("current status not stored: %v %v", current, ok)
	}
	hist, _ := svc.History(ctx, "PAT-1")
	if len(hist) != 1 || hist[0].Status != StatusAdmitted || hist[0].Note == nil || *hist[0].Note != "ward 3" {
		t.Errorf("unexpected history: %+v", hist)
	}
	if p, _ := patients.GetByID(ctx, "PAT-1"); p.Locked {
		t.Error("non-terminal transition must not lock the record")
	}
	if len(vacator.calls) != 0 {
		t.Errorf("non-terminal transition must not vacate, got %v", vacator.calls)
	}
}

func TestSetStatus_TerminalLocksAndVacates(t *testing.T) {
	svc, patients, _, vacator := newTestService()
	ctx := context.Background()
	vacator.occupied["PAT-1"] = "ROM-1"

	if _, err := svc.SetStatus(ctx, "PAT-1", "admitted", nil, ""); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if _, err := svc.SetStatus(ctx, "PAT-1", "outpatient", nil, ""); err != nil {
		t.Fatalf("discharge to outpatient: %v", err)
	}

	if p, _ := patients.GetByID(ctx, "PAT-1"); !p.Locked {
		t.Error("terminal transition must lock the record")
	}
	if len(vacator.calls) != 1 || vacator.calls[0] != "PAT-1" {
		t.Errorf("expected one vacate call for PAT-1, got %v", vacator.calls)
	}

	// The lock is permanent: nothing moves the patient again.
	if _, err := svc.SetStatus(ctx, "PAT-1", "admitted", nil, ""); !errors.Is(err, identity.ErrRecordLocked) {
		t.Errorf("expected ErrRecordLocked, got %v", err)
	}
	if got, _ := svc.GetStatus(ctx, "PAT-1"); got != StatusOutpatient {
		t.Errorf("terminal status must never change, got %s", got)
	}
	if hist, _ := svc.History(ctx, "PAT-1"); len(hist) != 2 {
		t.Errorf("rejected transition must not append history, got %d entries", len(hist))
	}
}

func TestSetStatus_LockedFlagBlocksEvenWithoutStatus(t *testing.T) {
	svc, patients, _, _ := newTestService()
	ctx := context.Background()

	if err := patients.SetLocked(ctx, "PAT-1"); err != nil {
		t.Fatalf("SetLocked: %v", err)
	}
	if _, err := svc.SetStatus(ctx, "PAT-1", "admitted", nil, ""); !errors.Is(err, identity.ErrRecordLocked) {
		t.Errorf("lock flag alone must block, got %v", err)
	}
}

func TestSetStatus_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SetStatus(ctx, "PAT-1", "cured", nil, ""); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, "PAT-1", "unset", nil, ""); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("unset is not a settable status, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, "PAT-404", "admitted", nil, ""); !errors.Is(err, identity.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetStatus_VacateFailureDoesNotBlockTransition(t *testing.T) {
	svc, patients, _, vacator := newTestService()
	ctx := context.Background()
	vacator.fail = true

	if _, err := svc.SetStatus(ctx, "PAT-1", "discharged", nil, ""); err != nil {
		t.Fatalf("transition should survive vacate failure: %v", err)
	}
	if p, _ := patients.GetByID(ctx, "PAT-1"); !p.Locked {
		t.Error("record should still be locked")
	}
}

func TestSetStatus_ConcurrentTerminal(t *testing.T) {
	svc, _, _, _ := newTestService()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SetStatus(context.Background(), "PAT-1", "discharged", nil, "")
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, identity.ErrRecordLocked) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("exactly one terminal transition should win, got %d", ok)
	}
	if hist, _ := svc.History(context.Background(), "PAT-1"); len(hist) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(hist))
	}
}

func TestGetStatus_DefaultsToOutpatient(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	got, err := svc.GetStatus(ctx, "PAT-1")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if got != StatusOutpatient {
		t.Errorf("unrecorded patient should read outpatient, got %s", got)
	}

	// The display default is not a stored transition: the patient can
	// still be admitted.
	if _, err := svc.SetStatus(ctx, "PAT-1", "admitted", nil, ""); err != nil {
		t.Errorf("display default must not lock, got %v", err)
	}

	if _, err := svc.GetStatus(ctx, "PAT-404"); !errors.Is(err, identity.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHistoryOrder(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	for _, status := range []string{"admitted", "emergency", "discharged"} {
		if _, err := svc.SetStatus(ctx, "PAT-2", status, nil, ""); err != nil {
			t.Fatalf("SetStatus(%s): %v", status, err)
		}
	}

	hist, err := svc.History(ctx, "PAT-2")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []Status{StatusAdmitted, StatusEmergency, StatusDischarged}
	if len(hist) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(hist))
	}
	for i, e := range hist {
		if e.Status != want[i] {
			t.Errorf("entry %d: got %s, want %s", i, e.Status, want[i])
		}
	}
}

func TestRecordInitialStatus(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.RecordInitialStatus(ctx, "PAT-1", "emergency", "registered via ER"); err != nil {
		t.Fatalf("RecordInitialStatus: %v", err)
	}
	got, _ := svc.GetStatus(ctx, "PAT-1")
	if got != StatusEmergency {
		t.Errorf("expected emergency, got %s", got)
	}
	hist, _ := svc.History(ctx, "PAT-1")
	if len(hist) != 1 || hist[0].Note == nil || *hist[0].Note != "registered via ER" {
		t.Errorf("unexpected history: %+v", hist)
	}
}
