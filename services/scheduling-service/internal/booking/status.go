package booking

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// InitialStatus is the status every reservation is created with.
const InitialStatus = StatusPending

type Role string

const (
	RoleClient       Role = "client"
	RoleProfessional Role = "professional"
	RoleCompany      Role = "company"
	RoleAdmin        Role = "admin"
)

var (
	ErrUnknownStatus     = errors.New("unknown status")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrActorNotAllowed   = errors.New("actor role not allowed for transition")
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleClient, RoleProfessional, RoleCompany, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// transitions is the full allowed-transition table: target status to the
// roles that may trigger it, keyed by current status. Admin is accepted
// everywhere a company is.
var transitions = map[Status]map[Status][]Role{
	StatusPending: {
		StatusConfirmed: {RoleProfessional, RoleCompany, RoleAdmin},
		StatusCancelled: {RoleClient, RoleProfessional, RoleCompany, RoleAdmin},
	},
	StatusConfirmed: {
		StatusCompleted: {RoleProfessional, RoleCompany, RoleAdmin},
		StatusCancelled: {RoleClient, RoleProfessional, RoleCompany, RoleAdmin},
		StatusNoShow:    {RoleProfessional, RoleCompany, RoleAdmin},
	},
	// Terminal statuses have no outgoing edges.
	StatusCompleted: {},
	StatusCancelled: {},
	StatusNoShow:    {},
}

// Transition validates that role may move an appointment from one status
// to another. It returns ErrIllegalTransition when the edge does not
// exist (including any move out of a terminal status) and
// ErrActorNotAllowed when the edge exists but not for this role.
func Transition(from, to Status, role Role) error {
	allowed, ok := transitions[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, from)
	}
	roles, ok := allowed[to]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not move %s -> %s", ErrActorNotAllowed, role, from, to)
}
