package identity

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrRecordLocked = errors.New("patient record is permanently locked")
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// SetLocked sets the permanent-lock flag. There is no way to clear it.
	SetLocked(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type StaffRepository interface {
	Create(ctx context.Context, st *Staff) error
	GetByID(ctx context.Context, id string) (*Staff, error)
	List(ctx context.Context, limit, offset int) ([]*Staff, int, error)
}
