package model

import "time"

// Appointment rows are never deleted; cancellation is a status change so
// the booking history stays intact.
type Appointment struct {
	ID             string
	CompanyID      string
	ServiceID      string
	ClientID       string
	ProfessionalID *string
	StartTime      time.Time
	EndTime        time.Time
	Status         string
	CreatedAt      time.Time
}

type Service struct {
	ID        string
	CompanyID string
	Duration  time.Duration
}

type Professional struct {
	ID        string
	CompanyID string
	Name      string
	Active    bool
}

type BlockedSlot struct {
	ID             string
	ProfessionalID string
	StartTime      time.Time
	EndTime        time.Time
	Reason         string
	CreatedAt      time.Time
}
