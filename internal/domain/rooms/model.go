// Package rooms guards the fixed pool of bed rooms. A room may only be
// assigned to a currently admitted patient, a patient may hold at most
// one room, and vacating is idempotent.
package rooms

import "time"

// Occupancy is a room's occupancy state.
type Occupancy string

const (
	OccupancyVacant   Occupancy = "vacant"
	OccupancyOccupied Occupancy = "occupied"
)

// Room maps to the room table. OccupantID is non-nil exactly when Status
// is occupied.
type Room struct {
	ID         string    `db:"id" json:"id"`
	Number     string    `db:"number" json:"number"`
	Status     Occupancy `db:"status" json:"status"`
	OccupantID *string   `db:"occupant_id" json:"occupant_id,omitempty"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
