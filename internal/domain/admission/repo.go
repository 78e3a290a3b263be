package admission

import (
	"context"
	"errors"
)

var ErrInvalidStatus = errors.New("unknown patient status")

// StatusRepository stores the current status pointer and the append-only
// history per patient.
type StatusRepository interface {
	// GetCurrent returns the stored status for a patient, or ok=false if
	// none was ever recorded.
	GetCurrent(ctx context.Context, patientID string) (Status, bool, error)
	SetCurrent(ctx context.Context, patientID string, status Status) error
	AppendHistory(ctx context.Context, e *HistoryEntry) error
	// History returns entries in creation order, oldest first.
	History(ctx context.Context, patientID string) ([]*HistoryEntry, error)
}
