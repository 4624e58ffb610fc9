package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dfalmeida/agendo/libs/db"
)

// Entry is one row of the append-only appointment history. OldStatus is
// empty for the creation entry.
type Entry struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointment_id"`
	OldStatus     string    `json:"old_status,omitempty"`
	NewStatus     string    `json:"new_status"`
	ActorID       string    `json:"actor_id"`
	ActorRole     string    `json:"actor_role"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Repository writes and reads appointment history. Record runs inside
// the caller's transaction so a status change and its history row commit
// or roll back together. Rows are never updated or deleted.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Record(ctx context.Context, tx pgx.Tx, e Entry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_history
			(appointment_id, old_status, new_status, actor_id, actor_role, reason)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, NULLIF($6, ''))
	`, e.AppointmentID, e.OldStatus, e.NewStatus, e.ActorID, e.ActorRole, e.Reason)
	return err
}

// List returns the full history for an appointment in chronological
// order.
func (r *Repository) List(ctx context.Context, appointmentID string) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, appointment_id::text, COALESCE(old_status, ''), new_status,
			actor_id::text, actor_role, COALESCE(reason, ''), created_at
		FROM appointment_history
		WHERE appointment_id = $1
		ORDER BY created_at ASC, id ASC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.OldStatus, &e.NewStatus,
			&e.ActorID, &e.ActorRole, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
