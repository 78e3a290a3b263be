package scheduling

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/events"
	"github.com/hms/hms/internal/platform/sequence"
)

// -- Mock Repositories --

type mockApptRepo struct {
	mu    sync.Mutex
	appts map[string]*Appointment
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{appts: make(map[string]*Appointment)}
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[id]; !ok {
		return ErrNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *mockApptRepo) ListByStaff(_ context.Context, staffID string) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Appointment
	for _, a := range m.appts {
		if a.StaffID == staffID {
			cp := *a
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartTime.Before(items[j].StartTime) })
	return items, nil
}

func (m *mockApptRepo) ListByPatient(_ context.Context, patientID string, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			cp := *a
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

func (m *mockApptRepo) List(_ context.Context, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Appointment
	for _, a := range m.appts {
		cp := *a
		items = append(items, &cp)
	}
	return items, len(items), nil
}

type stubPatientRepo struct {
	patients map[string]*identity.Patient
}

func (s *stubPatientRepo) Create(_ context.Context, p *identity.Patient) error { return nil }
func (s *stubPatientRepo) GetByID(_ context.Context, id string) (*identity.Patient, error) {
	p, ok := s.patients[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return p, nil
}
func (s *stubPatientRepo) Update(_ context.Context, p *identity.Patient) error { return nil }
func (s *stubPatientRepo) SetLocked(_ context.Context, id string) error        { return nil }
func (s *stubPatientRepo) List(_ context.Context, limit, offset int) ([]*identity.Patient, int, error) {
	return nil, 0, nil
}

type stubStaffRepo struct {
	staff map[string]*identity.Staff
}

func (s *stubStaffRepo) Create(_ context.Context, st *identity.Staff) error { return nil }
func (s *stubStaffRepo) GetByID(_ context.Context, id string) (*identity.Staff, error) {
	st, ok := s.staff[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return st, nil
}
func (s *stubStaffRepo) List(_ context.Context, limit, offset int) ([]*identity.Staff, int, error) {
	return nil, 0, nil
}

type recordingReminder struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingReminder) SendReminder(_ context.Context, recipient, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, recipient)
	return nil
}

// -- Fixtures --

var testNow = time.Date(2099, 3, 1, 8, 0, 0, 0, time.Local)

func newTestService(t *testing.T) (*Service, *mockApptRepo, *recordingReminder) {
	t.Helper()
	email := "pat@example.org"
	patients := &stubPatientRepo{patients: map[string]*identity.Patient{
		"PAT-1": {ID: "PAT-1", Name: "Alex Stone", Email: &email, Active: true},
		"PAT-2": {ID: "PAT-2", Name: "Rae Ng", Active: true},
		"PAT-9": {ID: "PAT-9", Name: "Gone Away", Active: false},
	}}
	staff := &stubStaffRepo{staff: map[string]*identity.Staff{
		"STF-1": {ID: "STF-1", Name: "Dr. Osei", Role: identity.RoleDoctor, Active: true},
		"STF-2": {ID: "STF-2", Name: "Dr. Khan", Role: identity.RoleDoctor, Active: true},
		"STF-3": {ID: "STF-3", Name: "Nurse Lee", Role: identity.RoleNurse, Active: true},
		"STF-9": {ID: "STF-9", Name: "Dr. Retired", Role: identity.RoleDoctor, Active: false},
	}}
	appts := newMockApptRepo()
	reminders := &recordingReminder{}
	svc := NewService(appts, patients, staff, sequence.NewInMemoryGenerator(),
		reminders, events.NewBus(zerolog.Nop()), zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc, appts, reminders
}

func mustSchedule(t *testing.T, svc *Service, patientID, staffID, date, at string) *Appointment {
	t.Helper()
	appt, err := svc.Schedule(context.Background(), ScheduleInput{
		PatientID: patientID, StaffID: staffID,
		Date: date, Time: at, Department: "cardiology",
	})
	if err != nil {
		t.Fatalf("Schedule(%s %s): %v", date, at, err)
	}
	return appt
}

// -- Tests --

func TestSchedule(t *testing.T) {
	svc, _, reminders := newTestService(t)

	appt := mustSchedule(t, svc, "PAT-1", "STF-1", "2099-03-10", "10:00")
	if appt.ID != "APT-1" {
		t.Errorf("expected APT-1, got %s", appt.ID)
	}
	if appt.Status != StatusPending {
		t.Errorf("new appointment should be pending, got %s", appt.Status)
	}
	if appt.Notes == nil || *appt.Notes != "Pending confirmation" {
		t.Errorf("unexpected notes: %v", appt.Notes)
	}
	want := time.Date(2099, 3, 10, 10, 0, 0, 0, time.Local)
	if !appt.StartTime.Equal(want) {
		t.Errorf("start time %v, want %v", appt.StartTime, want)
	}
	if len(reminders.sent) != 1 || reminders.sent[0] != "pat@example.org" {
		t.Errorf("expected one reminder to the patient email, got %v", reminders.sent)
	}
}

func TestSchedule_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   ScheduleInput
		want error
	}{
		{"missing fields", ScheduleInput{PatientID: "PAT-1"}, ErrValidation},
		{"bad department", ScheduleInput{PatientID: "PAT-1", StaffID: "STF-1", Date: "2099-03-10", Time: "10:00", Department: "astrology"}, ErrValidation},
		{"bad time", ScheduleInput{PatientID: "PAT-1", StaffID: "STF-1", Date: "2099-03-10", Time: "25:00", Department: "cardiology"}, ErrValidation},
		{"past slot", ScheduleInput{PatientID: "PAT-1", StaffID: "STF-1", Date: "2020-03-10", Time: "10:00", Department: "cardiology"}, ErrPastSchedule},
		{"unknown patient", ScheduleInput{PatientID: "PAT-404", StaffID: "STF-1", Date: "2099-03-10", Time: "10:00", Department: "cardiology"}, ErrNotFound},
		{"unknown staff", ScheduleInput{PatientID: "PAT-1", StaffID: "STF-404", Date: "2099-03-10", Time: "10:00", Department: "cardiology"}, ErrNotFound},
		{"inactive patient", ScheduleInput{PatientID: "PAT-9", StaffID: "STF-1", Date: "2099-03-10", Time: "10:00", Department: "cardiology"}, ErrValidation},
		{"inactive staff", ScheduleInput{PatientID: "PAT-1", StaffID: "STF-9", Date: "2099-03-10", Time: "10:00", Department: "cardiology"}, ErrValidation},
	}
	for _, tc := range cases {
		if _, err := svc.Schedule(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestSchedule_DoubleBooked(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustSchedule(t, svc, "PAT-1", "STF-1", "2099-03-10", "10:00")

	_, err := svc.Schedule(context.Background(), ScheduleInput{
		PatientID: "PAT-2", StaffID: "STF-1",
		Date: "2099-03-10", Time: "10:00", Department: "cardiology",
	})
	if !errors.Is(err, ErrDoubleBooked) {
		t.Errorf("expected ErrDoubleBooked, got %v", err)
	}
}

func TestSchedule_BoundaryTouchConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustSchedule(t, svc, "PAT-1", "STF-1", "2099-03-10", "10:00")

	// The 10:00 slot runs through 11:00; an 11:00 booking touches it and
	// must be rejected.
	_, err := svc.Schedule(context.Background(), ScheduleInput{
		PatientID: "PAT-2", StaffID: "STF-1",
		Date: "2099-03-10", Time: "11:00", Department: "cardiology",
	})
	if !errors.Is(err, ErrDoubleBooked) {
		t.Errorf("touching slots should conflict, got %v", err)
	}

	// 11:30 clears the boundary and is fine.
	mustSchedule(t, svc, "PAT-2", "STF-1", "2099-03-10", "11:30")
}

func TestSchedule_OtherStaffUnaffected(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustSchedule(t, svc, "PAT-1", "STF-1", "2099-03-10", "10:00")
	mustSchedule(t, svc, "PAT-2", "STF-2", "2099-03-10", "10:00")
}

func TestSchedule_ConcurrentSameSlot(t *testing.T) {
	svc, appts, _ := newTestService(t)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Schedule(context.Background(), ScheduleInput{
				PatientID: "PAT-1", StaffID: "STF-1",
				Date: "2099-03-10", Time: "10:00", Department: "cardiology",
			})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrDoubleBooked) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("exactly one booking should win, got %d", ok)
	}
	if items, _, _ := appts.List(context.Background(), 100, 0); len(items) != 1 {
		t.Errorf("expected 1 stored appointment, got %d", len(items))
	}
}

func TestCancel(t *testing.T) {
	svc, _, _ := newTestService(t)
	appt := mustSchedule(t, svc, "PAT-1", "STF-1", "2099-03-10", "10:00")

	if err := svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := svc.Get(context.Background(), appt.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cancelled appointment should be gone, got %v", err)
	}

	// Cancellation frees the slot for rebooking.
	mustSchedule(t, svc, "PAT-2", "STF-1", "2099-03-10", "10:00")

	if err := svc.Cancel(context.Background(), "APT-404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReschedule(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	appt := mustSchedule(t, svc, "PAT-1", "STF-1", "2099-03-10", "10:00")
	mustSchedule(t, svc, "PAT-2", "STF-1", "2099-03-10", "14:00")

	// Moving onto the other appointment's slot is rejected.
	if _, err := svc.Reschedule(ctx, appt.ID, "2099-03-10", "14:00"); !errors.Is(err, ErrDoubleBooked) {
		t.Errorf("expected ErrDoubleBooked, got %v", err)
	}

	// Moving within an hour of its own original slot is allowed: the scan
	// excludes the appointment itself.
	moved, err := svc.Reschedule(ctx, appt.ID, "2099-03-10", "10:30")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	want := time.Date(2099, 3, 10, 10, 30, 0, 0, time.Local)
	if !moved.StartTime.Equal(want) {
		t.Errorf("start time %v, want %v", moved.StartTime, want)
	}
	if moved.Notes == nil || *moved.Notes != "Pending confirmation" {
		t.Errorf("reschedule must not touch notes, got %v", moved.Notes)
	}

	if _, err := svc.Reschedule(ctx, appt.ID, "2020-01-01", "10:00"); !errors.Is(err, ErrPastSchedule) {
		t.Errorf("expected ErrPastSchedule, got %v", err)
	}
	if _, err := svc.Reschedule(ctx, "APT-404", "2099-03-11", "10:00"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	appt := mustSchedule(t, svc, "PAT-1", "STF-1", "2099-03-10", "10:00")

	got, err := svc.Confirm(ctx, appt.ID, "STF-1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", got.Status)
	}
	if got.Notes == nil || *got.Notes != "Confirmed by doctor" {
		t.Errorf("unexpected notes: %v", got.Notes)
	}
}

func TestConfirm_Authorization(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	appt := mustSchedule(t, svc, "PAT-1", "STF-1", "2099-03-10", "10:00")

	if _, err := svc.Confirm(ctx, appt.ID, "STF-2"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("another doctor must not confirm, got %v", err)
	}
	if _, err := svc.Confirm(ctx, appt.ID, "STF-3"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("a nurse must not confirm, got %v", err)
	}
	if _, err := svc.Confirm(ctx, appt.ID, "STF-9"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("an inactive doctor must not confirm, got %v", err)
	}
	if _, err := svc.Confirm(ctx, "APT-404", "STF-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
