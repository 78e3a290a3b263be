package rooms

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("room not found")
	ErrWrongStatus     = errors.New("patient is not admitted")
	ErrRoomOccupied    = errors.New("room is occupied by another patient")
	ErrAlreadyAssigned = errors.New("patient already occupies a room")
)

type RoomRepository interface {
	Create(ctx context.Context, r *Room) error
	GetByID(ctx context.Context, id string) (*Room, error)
	// GetByOccupant returns the room a patient occupies, or ErrNotFound.
	GetByOccupant(ctx context.Context, patientID string) (*Room, error)
	// SetOccupant writes the occupancy state; a nil occupant marks the
	// room vacant.
	SetOccupant(ctx context.Context, roomID string, occupantID *string) error
	List(ctx context.Context, limit, offset int) ([]*Room, int, error)
	Count(ctx context.Context) (int, error)
}
