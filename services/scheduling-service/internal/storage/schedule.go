package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dfalmeida/agendo/libs/db"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/availability"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/model"
)

// ScheduleRepository reads and writes professional availability
// configuration: weekly working hours and ad-hoc blocked slots. Writes
// happen only after availability.WeeklyHours validation at the handler
// boundary.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) GetProfessional(ctx context.Context, professionalID string) (model.Professional, error) {
	var p model.Professional
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, company_id::text, name, status = 'active'
		FROM professionals
		WHERE id = $1
	`, professionalID).Scan(&p.ID, &p.CompanyID, &p.Name, &p.Active)
	return p, err
}

// GetService looks the service up by id alone. Client tokens carry no
// company, so the service row is where an appointment's tenant comes
// from.
func (r *ScheduleRepository) GetService(ctx context.Context, serviceID string) (model.Service, error) {
	var s model.Service
	var mins int
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, company_id::text, duration_minutes
		FROM services
		WHERE id = $1
	`, serviceID).Scan(&s.ID, &s.CompanyID, &mins)
	if err != nil {
		return model.Service{}, err
	}
	s.Duration = time.Duration(mins) * time.Minute
	return s, nil
}

func (r *ScheduleRepository) GetServiceDuration(ctx context.Context, companyID, serviceID string) (time.Duration, error) {
	var mins int
	err := r.pool.QueryRow(ctx, `
		SELECT duration_minutes
		FROM services
		WHERE id = $1 AND company_id = $2
	`, serviceID, companyID).Scan(&mins)
	if err != nil {
		return 0, err
	}
	return time.Duration(mins) * time.Minute, nil
}

func (r *ScheduleRepository) GetWorkingHours(ctx context.Context, professionalID string) (availability.WeeklyHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM professional_working_hours
		WHERE professional_id = $1
		ORDER BY weekday ASC, start_minute ASC
	`, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hours := availability.WeeklyHours{}
	for rows.Next() {
		var weekday int
		var cr availability.ClockRange
		if err := rows.Scan(&weekday, &cr.StartMinute, &cr.EndMinute); err != nil {
			return nil, err
		}
		wd := time.Weekday(weekday)
		hours[wd] = append(hours[wd], cr)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return hours, nil
}

// ReplaceWorkingHours swaps the professional's whole weekly schedule in
// one transaction.
func (r *ScheduleRepository) ReplaceWorkingHours(ctx context.Context, professionalID string, hours availability.WeeklyHours) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM professional_working_hours WHERE professional_id = $1
	`, professionalID); err != nil {
		return err
	}
	for weekday, ranges := range hours {
		for _, cr := range ranges {
			if _, err := tx.Exec(ctx, `
				INSERT INTO professional_working_hours (professional_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)
			`, professionalID, int(weekday), cr.StartMinute, cr.EndMinute); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (r *ScheduleRepository) CreateBlockedSlot(ctx context.Context, professionalID string, start, end time.Time, reason string) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO professional_blocked_slots (id, professional_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, id, professionalID, start, end, reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListBlockedIntervals returns blocked slots intersecting [from, to) as
// plain intervals for the calculator and conflict detector.
func (r *ScheduleRepository) ListBlockedIntervals(ctx context.Context, professionalID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM professional_blocked_slots
		WHERE professional_id = $1
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

func (r *ScheduleRepository) ListBlockedSlots(ctx context.Context, professionalID string, from, to time.Time, limit int) ([]model.BlockedSlot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, professional_id::text, start_time, end_time, COALESCE(reason, ''), created_at
		FROM professional_blocked_slots
		WHERE professional_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
		LIMIT $4
	`, professionalID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlockedSlot
	for rows.Next() {
		var b model.BlockedSlot
		if err := rows.Scan(&b.ID, &b.ProfessionalID, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ScheduleRepository) DeleteBlockedSlot(ctx context.Context, professionalID, blockedSlotID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM professional_blocked_slots
		WHERE id = $1 AND professional_id = $2
	`, blockedSlotID, professionalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
