package booking

import (
	"errors"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		role Role
		want error
	}{
		{"professional confirms", StatusPending, StatusConfirmed, RoleProfessional, nil},
		{"company confirms", StatusPending, StatusConfirmed, RoleCompany, nil},
		{"client cannot confirm", StatusPending, StatusConfirmed, RoleClient, ErrActorNotAllowed},
		{"client cancels pending", StatusPending, StatusCancelled, RoleClient, nil},
		{"client cancels confirmed", StatusConfirmed, StatusCancelled, RoleClient, nil},
		{"professional completes", StatusConfirmed, StatusCompleted, RoleProfessional, nil},
		{"client cannot complete", StatusConfirmed, StatusCompleted, RoleClient, ErrActorNotAllowed},
		{"professional marks no-show", StatusConfirmed, StatusNoShow, RoleProfessional, nil},
		{"client cannot mark no-show", StatusConfirmed, StatusNoShow, RoleClient, ErrActorNotAllowed},
		{"pending cannot complete", StatusPending, StatusCompleted, RoleCompany, ErrIllegalTransition},
		{"pending cannot no-show", StatusPending, StatusNoShow, RoleCompany, ErrIllegalTransition},
		{"admin anywhere company is", StatusConfirmed, StatusCompleted, RoleAdmin, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Transition(tc.from, tc.to, tc.role)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected allowed, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTerminalStatesHaveNoExit(t *testing.T) {
	terminals := []Status{StatusCompleted, StatusCancelled, StatusNoShow}
	targets := []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}
	roles := []Role{RoleClient, RoleProfessional, RoleCompany, RoleAdmin}

	for _, from := range terminals {
		if !from.Terminal() {
			t.Fatalf("%s should be terminal", from)
		}
		for _, to := range targets {
			for _, role := range roles {
				if err := Transition(from, to, role); !errors.Is(err, ErrIllegalTransition) {
					t.Fatalf("expected ErrIllegalTransition for %s -> %s as %s, got %v", from, to, role, err)
				}
			}
		}
	}
}

func TestCancelledThenComplete(t *testing.T) {
	// Cancel a pending appointment, then try confirmed -> completed on it:
	// the appointment is cancelled, so the move must fail regardless of actor.
	if err := Transition(StatusPending, StatusCancelled, RoleClient); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := Transition(StatusCancelled, StatusCompleted, RoleProfessional); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "confirmed", "completed", "cancelled", "no_show"} {
		if _, err := ParseStatus(s); err != nil {
			t.Fatalf("ParseStatus(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseStatus("booked"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	if _, ok := ParseRole("client"); !ok {
		t.Fatal("client should parse")
	}
	if _, ok := ParseRole("owner"); ok {
		t.Fatal("owner should not parse")
	}
}
