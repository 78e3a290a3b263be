package rooms

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type roomRepoPG struct{ pool *pgxpool.Pool }

func NewRoomRepoPG(pool *pgxpool.Pool) RoomRepository { return &roomRepoPG{pool: pool} }

const roomCols = `id, number, status, occupant_id, updated_at`

func scanRoom(row pgx.Row) (*Room, error) {
	var r Room
	err := row.Scan(&r.ID, &r.Number, &r.Status, &r.OccupantID, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &r, err
}

func (r *roomRepoPG) Create(ctx context.Context, room *Room) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO room (id, number, status, occupant_id)
		VALUES ($1,$2,$3,$4)`,
		room.ID, room.Number, room.Status, room.OccupantID)
	return err
}

func (r *roomRepoPG) GetByID(ctx context.Context, id string) (*Room, error) {
	return scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomCols+` FROM room WHERE id = $1`, id))
}

func (r *roomRepoPG) GetByOccupant(ctx context.Context, patientID string) (*Room, error) {
	return scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomCols+` FROM room WHERE occupant_id = $1`, patientID))
}

func (r *roomRepoPG) SetOccupant(ctx context.Context, roomID string, occupantID *string) error {
	status := OccupancyVacant
	if occupantID != nil {
		status = OccupancyOccupied
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE room SET status=$2, occupant_id=$3, updated_at=NOW() WHERE id = $1`,
		roomID, status, occupantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *roomRepoPG) List(ctx context.Context, limit, offset int) ([]*Room, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM room`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+roomCols+` FROM room ORDER BY number LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, room)
	}
	return items, total, rows.Err()
}

func (r *roomRepoPG) Count(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM room`).Scan(&total)
	return total, err
}
