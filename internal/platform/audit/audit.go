// Package audit records who changed which clinical resource and when.
// Audit writes are fire-and-forget: a failed write is logged and must not
// roll back the in-memory mutation it describes.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Entry is a single audit trail record.
type Entry struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID string    `db:"resource_id" json:"resource_id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Detail     *string   `db:"detail" json:"detail,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// PGRecorder writes entries to the audit_log table.
type PGRecorder struct {
	pool *pgxpool.Pool
}

func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

func (r *PGRecorder) Record(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (id, action, resource, resource_id, actor_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.Action, e.Resource, e.ResourceID, e.ActorID, e.Detail, e.CreatedAt)
	return err
}

// LogRecorder writes entries to the structured log. Used in development and
// as the fallback when no database is wired.
type LogRecorder struct {
	Logger zerolog.Logger
}

func (r *LogRecorder) Record(_ context.Context, e Entry) error {
	evt := r.Logger.Info().
		Str("action", e.Action).
		Str("resource", e.Resource).
		Str("resource_id", e.ResourceID)
	if e.ActorID != nil {
		evt = evt.Str("actor_id", *e.ActorID)
	}
	if e.Detail != nil {
		evt = evt.Str("detail", *e.Detail)
	}
	evt.Msg("audit")
	return nil
}
