package scheduling

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an appointment id does not resolve.
var ErrNotFound = errors.New("appointment not found")

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// Delete removes the appointment entirely. Cancellation is a hard
	// delete, not a soft one.
	Delete(ctx context.Context, id string) error
	// ListByStaff returns every appointment for a staff member, ordered by
	// start time. The conflict scan iterates this bounded set.
	ListByStaff(ctx context.Context, staffID string) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Appointment, int, error)
	List(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
}
