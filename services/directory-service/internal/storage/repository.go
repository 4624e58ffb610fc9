package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dfalmeida/agendo/libs/db"
)

// Repository owns the catalog side of the platform: companies, the
// services they sell, and the professionals who deliver them. The
// scheduling side reads these tables directly; writes go through here.
type Repository struct {
	pool *db.Pool
}

func New(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

type Company struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type Service struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	DurationMins int     `json:"duration_minutes"`
	Price        float64 `json:"price"`
	Description  string  `json:"description,omitempty"`
}

type Professional struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// GetOrCreateCompany returns the company row, inserting a default one
// the first time a new company id shows up.
func (r *Repository) GetOrCreateCompany(ctx context.Context, companyID string) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `
		INSERT INTO companies (id, name, timezone)
		VALUES ($1, '', 'UTC')
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id::text, name, timezone
	`, companyID).Scan(&c.ID, &c.Name, &c.Timezone)
	return c, err
}

func (r *Repository) UpdateCompany(ctx context.Context, companyID, name, timezone string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE companies
		SET name = $2, timezone = $3, updated_at = now()
		WHERE id = $1
	`, companyID, name, timezone)
	return err
}

func (r *Repository) CreateService(ctx context.Context, companyID, name string, durationMins int, price float64, description string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO services (company_id, name, duration_minutes, price, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text
	`, companyID, name, durationMins, price, description).Scan(&id)
	return id, err
}

func (r *Repository) ListServices(ctx context.Context, companyID string, limit int) ([]Service, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, duration_minutes, price, COALESCE(description, '')
		FROM services
		WHERE company_id = $1
		ORDER BY name ASC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMins, &s.Price, &s.Description); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) CreateProfessional(ctx context.Context, companyID, name string, active bool) (string, error) {
	status := "active"
	if !active {
		status = "inactive"
	}
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO professionals (company_id, name, status)
		VALUES ($1, $2, $3)
		RETURNING id::text
	`, companyID, name, status).Scan(&id)
	return id, err
}

func (r *Repository) ListProfessionals(ctx context.Context, companyID string, limit int) ([]Professional, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, status = 'active'
		FROM professionals
		WHERE company_id = $1
		ORDER BY name ASC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Professional
	for rows.Next() {
		var p Professional
		if err := rows.Scan(&p.ID, &p.Name, &p.IsActive); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// SetProfessionalActive flips the active flag. Deactivation keeps the
// row and its appointments; it only stops new bookings.
func (r *Repository) SetProfessionalActive(ctx context.Context, companyID, professionalID string, active bool) error {
	status := "active"
	if !active {
		status = "inactive"
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE professionals
		SET status = $3, updated_at = now()
		WHERE id = $1 AND company_id = $2
	`, professionalID, companyID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
