package admission

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type statusRepoPG struct{ pool *pgxpool.Pool }

func NewStatusRepoPG(pool *pgxpool.Pool) StatusRepository { return &statusRepoPG{pool: pool} }

func (r *statusRepoPG) GetCurrent(ctx context.Context, patientID string) (Status, bool, error) {
	var status Status
	err := r.pool.QueryRow(ctx,
		`SELECT status FROM patient_status WHERE patient_id = $1`, patientID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return status, true, nil
}

func (r *statusRepoPG) SetCurrent(ctx context.Context, patientID string, status Status) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient_status (patient_id, status, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (patient_id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()`,
		patientID, status)
	return err
}

func (r *statusRepoPG) AppendHistory(ctx context.Context, e *HistoryEntry) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO patient_status_history (patient_id, status, actor_id, note)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at`,
		e.PatientID, e.Status, e.ActorID, e.Note).Scan(&e.ID, &e.CreatedAt)
}

func (r *statusRepoPG) History(ctx context.Context, patientID string) ([]*HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, status, actor_id, note, created_at
		FROM patient_status_history WHERE patient_id = $1 ORDER BY id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.PatientID, &e.Status, &e.ActorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}
