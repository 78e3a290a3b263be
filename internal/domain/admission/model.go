// Package admission tracks a patient's clinical status as a one-way
// state machine: unset patients may be admitted, admitted patients may be
// moved to a terminal status, and terminal patients are locked forever.
package admission

import (
	"fmt"
	"time"
)

// Status is a patient's clinical status.
type Status string

const (
	// StatusUnset is the implicit starting point for patients that were
	// never explicitly admitted. It is never stored.
	StatusUnset Status = "unset"

	StatusAdmitted  Status = "admitted"
	StatusEmergency Status = "emergency"

	// Terminal statuses. Reaching either permanently locks the patient
	// record.
	StatusOutpatient Status = "outpatient"
	StatusDischarged Status = "discharged"
)

var knownStatuses = map[Status]bool{
	StatusAdmitted: true, StatusEmergency: true,
	StatusOutpatient: true, StatusDischarged: true,
}

// ParseStatus validates a status string from an external caller.
// StatusUnset is not accepted: nothing transitions back to unset.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !knownStatuses[st] {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Terminal reports whether the status locks the patient record.
func (s Status) Terminal() bool {
	return s == StatusOutpatient || s == StatusDischarged
}

// Admitting reports whether the status makes the patient room-eligible.
func (s Status) Admitting() bool {
	return s == StatusAdmitted || s == StatusEmergency
}

// HistoryEntry is one immutable step of a patient's status history.
type HistoryEntry struct {
	ID        int64     `db:"id" json:"id"`
	PatientID string    `db:"patient_id" json:"patient_id"`
	Status    Status    `db:"status" json:"status"`
	ActorID   *string   `db:"actor_id" json:"actor_id,omitempty"`
	Note      *string   `db:"note" json:"note,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
