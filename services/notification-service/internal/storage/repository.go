package storage

import (
	"context"
	"encoding/json"

	"github.com/dfalmeida/agendo/libs/db"
)

type Notification struct {
	AppointmentID string
	CompanyID     string
	ClientID      string
	Kind          string
	Channel       string
	Payload       json.RawMessage
	Status        string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, company_id, client_id, kind, channel, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.AppointmentID, n.CompanyID, n.ClientID, n.Kind, n.Channel, n.Payload, n.Status)
	return err
}
