package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dfalmeida/agendo/libs/db"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/availability"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/model"
)

// AppointmentRepository persists appointments. The appointments table
// carries an exclusion constraint on (professional_id, time range) for
// non-cancelled rows, so two overlapping reservations for the same
// professional can never both commit (error 23P01 on the loser).
type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const appointmentColumns = `
	id::text, company_id::text, service_id::text, client_id::text,
	professional_id::text, start_time, end_time, status, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var professionalID *string
	err := row.Scan(
		&appt.ID,
		&appt.CompanyID,
		&appt.ServiceID,
		&appt.ClientID,
		&professionalID,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Status,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.ProfessionalID = professionalID
	return appt, nil
}

func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(company_id, service_id, client_id, professional_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text
	`, appt.CompanyID, appt.ServiceID, appt.ClientID, appt.ProfessionalID,
		appt.StartTime, appt.EndTime, appt.Status).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, appointmentID string) (model.Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, appointmentID))
}

// GetForUpdate locks the appointment row for the duration of the
// transaction so status transitions and assignment serialize per row.
func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, appointmentID))
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, appointmentID, status string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE id = $1
	`, appointmentID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AssignProfessional fills in a deferred professional. The exclusion
// constraint re-fires on this update, so a losing race still cannot
// produce an overlap.
func (r *AppointmentRepository) AssignProfessional(ctx context.Context, tx pgx.Tx, appointmentID, professionalID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET professional_id = $2
		WHERE id = $1 AND professional_id IS NULL
	`, appointmentID, professionalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListBookedIntervals returns the [start,end) intervals of every
// non-cancelled appointment for the professional intersecting
// [from, to). Cancelled appointments never block a slot.
func (r *AppointmentRepository) ListBookedIntervals(ctx context.Context, professionalID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE professional_id = $1
			AND status <> 'cancelled'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *AppointmentRepository) ListByClient(ctx context.Context, clientID string, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `client_id = $1`, clientID, limit)
}

func (r *AppointmentRepository) ListByProfessional(ctx context.Context, professionalID string, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `professional_id = $1`, professionalID, limit)
}

func (r *AppointmentRepository) ListByCompany(ctx context.Context, companyID string, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `company_id = $1`, companyID, limit)
}

func (r *AppointmentRepository) list(ctx context.Context, where string, arg any, limit int) ([]model.Appointment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+where+`
		ORDER BY start_time DESC
		LIMIT $2
	`, arg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// IsConflict reports an exclusion-constraint violation: the requested
// interval lost the race against a concurrent overlapping reservation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// IsSerializationFailure reports transient transaction failures
// (serialization failure or deadlock) worth a bounded retry.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
