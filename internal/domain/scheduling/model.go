package scheduling

import "time"

// SlotDuration is the implicit length of every appointment. No end time is
// stored; an appointment occupies [StartTime, StartTime+SlotDuration].
const SlotDuration = time.Hour

// Status is the explicit appointment lifecycle state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusRescheduled Status = "rescheduled"
	StatusCompleted   Status = "completed"
)

var validDepartments = map[string]bool{
	"cardiology": true, "neurology": true, "orthopedics": true,
	"pediatrics": true, "oncology": true, "radiology": true,
	"general-medicine": true, "emergency": true,
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID         string    `db:"id" json:"id"`
	PatientID  string    `db:"patient_id" json:"patient_id"`
	StaffID    string    `db:"staff_id" json:"staff_id"`
	Department string    `db:"department" json:"department"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	Status     Status    `db:"status" json:"status"`
	Notes      *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// EndTime returns the implicit end of the booked slot.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(SlotDuration)
}

// conflicts reports whether two one-hour slots starting at a and b collide.
// The test is boundary-inclusive: slots that merely touch at an endpoint
// (one ends exactly when the other begins) count as a conflict, so
// back-to-back booking for the same staff member is forbidden.
func conflicts(a, b time.Time) bool {
	return !a.After(b.Add(SlotDuration)) && !b.After(a.Add(SlotDuration))
}

// sameDay reports whether two instants fall on the same calendar day in
// the instants' own locations.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
