package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dfalmeida/agendo/services/scheduling-service/internal/booking"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/model"
)

func TestActorFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/appointments", nil)
	r.Header.Set("X-Actor-Id", "user-1")
	r.Header.Set("X-Company-Id", "co-1")
	r.Header.Set("X-Actor-Role", "client")

	act, ok := actorFromRequest(r)
	if !ok {
		t.Fatal("expected actor to parse")
	}
	if act.ID != "user-1" || act.CompanyID != "co-1" || act.Role != booking.RoleClient {
		t.Fatalf("unexpected actor: %+v", act)
	}
}

func TestActorFromRequestRejectsMissingIdentity(t *testing.T) {
	cases := []struct {
		name string
		id   string
		role string
	}{
		{"no headers", "", ""},
		{"missing id", "", "client"},
		{"missing role", "user-1", ""},
		{"unknown role", "user-1", "superuser"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tc.id != "" {
				r.Header.Set("X-Actor-Id", tc.id)
			}
			if tc.role != "" {
				r.Header.Set("X-Actor-Role", tc.role)
			}
			if _, ok := actorFromRequest(r); ok {
				t.Fatal("expected actor parse to fail")
			}
		})
	}
}

func TestParseClockMinute(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:00", 540, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{" 12:30 ", 750, false},
		{"24:00", 0, true},
		{"9am", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := parseClockMinute(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseClockMinute(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseClockMinute(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseClockMinute(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseWeeklyHours(t *testing.T) {
	hours, err := parseWeeklyHours(map[string][]clockRangeItem{
		"Monday": {{Start: "09:00", End: "12:00"}, {Start: "13:00", End: "17:00"}},
		"friday": {{Start: "10:00", End: "14:00"}},
	})
	if err != nil {
		t.Fatalf("parseWeeklyHours: %v", err)
	}
	if got := len(hours[time.Monday]); got != 2 {
		t.Fatalf("expected 2 monday ranges, got %d", got)
	}
	if hours[time.Monday][0].StartMinute != 540 || hours[time.Monday][0].EndMinute != 720 {
		t.Fatalf("unexpected monday range: %+v", hours[time.Monday][0])
	}
	if got := len(hours[time.Friday]); got != 1 {
		t.Fatalf("expected 1 friday range, got %d", got)
	}
}

func TestParseWeeklyHoursRejectsUnknownWeekday(t *testing.T) {
	_, err := parseWeeklyHours(map[string][]clockRangeItem{
		"funday": {{Start: "09:00", End: "12:00"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown weekday")
	}
}

func TestAppointmentToResponse(t *testing.T) {
	profID := "pro-1"
	start := time.Date(2027, 3, 1, 9, 0, 0, 0, time.UTC)
	appt := model.Appointment{
		ID:             "appt-1",
		CompanyID:      "co-1",
		ServiceID:      "svc-1",
		ClientID:       "cli-1",
		ProfessionalID: &profID,
		StartTime:      start,
		EndTime:        start.Add(30 * time.Minute),
		Status:         "pending",
	}

	resp := appointmentToResponse(appt)
	if resp.AppointmentID != "appt-1" || resp.ProfessionalID != "pro-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.StartTime != "2027-03-01T09:00:00Z" || resp.EndTime != "2027-03-01T09:30:00Z" {
		t.Fatalf("unexpected times: %s / %s", resp.StartTime, resp.EndTime)
	}

	appt.ProfessionalID = nil
	resp = appointmentToResponse(appt)
	if resp.ProfessionalID != "" {
		t.Fatalf("expected empty professional_id, got %q", resp.ProfessionalID)
	}
}

func TestWriteErrorShape(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, 409, "time slot already booked", ReasonDoubleBooking)

	if w.Code != 409 {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q", ct)
	}
	var body errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if body.Error != "time slot already booked" || body.Reason != "double_booking" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestParseRangeParamsDefaultsAndValidation(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/schedule/blocked-slots", nil)
	from, to, err := parseRangeParams(r)
	if err != nil {
		t.Fatalf("parseRangeParams: %v", err)
	}
	if !to.After(from) {
		t.Fatal("default range must be forward")
	}

	r = httptest.NewRequest("GET", "/x?from=2027-03-02T00:00:00Z&to=2027-03-01T00:00:00Z", nil)
	if _, _, err := parseRangeParams(r); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestBookingCompanyDerivedFromService(t *testing.T) {
	svc := model.Service{ID: "svc-1", CompanyID: "co-1", Duration: 30 * time.Minute}

	// Client tokens carry no company; the service row decides.
	companyID, ok := bookingCompany(actor{ID: "user-1", Role: booking.RoleClient}, svc)
	if !ok || companyID != "co-1" {
		t.Fatalf("client booking: got (%q, %v), want (co-1, true)", companyID, ok)
	}

	companyID, ok = bookingCompany(actor{ID: "staff-1", CompanyID: "co-1", Role: booking.RoleCompany}, svc)
	if !ok || companyID != "co-1" {
		t.Fatalf("staff booking: got (%q, %v), want (co-1, true)", companyID, ok)
	}

	if _, ok := bookingCompany(actor{ID: "staff-2", CompanyID: "co-2", Role: booking.RoleAdmin}, svc); ok {
		t.Fatal("staff must not book another company's service")
	}
}

func TestProfessionalBookable(t *testing.T) {
	cases := []struct {
		name       string
		prof       model.Professional
		companyID  string
		wantReason string
		wantStatus int
	}{
		{"same company active", model.Professional{ID: "p1", CompanyID: "co-1", Active: true}, "co-1", "", 0},
		{"other company", model.Professional{ID: "p1", CompanyID: "co-2", Active: true}, "co-1", ReasonNotFound, http.StatusNotFound},
		{"inactive", model.Professional{ID: "p1", CompanyID: "co-1", Active: false}, "co-1", ReasonSlotUnavailable, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reason, status, _ := professionalBookable(tc.prof, tc.companyID)
			if reason != tc.wantReason || status != tc.wantStatus {
				t.Fatalf("got (%q, %d), want (%q, %d)", reason, status, tc.wantReason, tc.wantStatus)
			}
		})
	}
}

func TestReserveFailure(t *testing.T) {
	status, _, reason := reserveFailure(&pgconn.PgError{Code: "23P01"})
	if status != http.StatusConflict || reason != ReasonDoubleBooking {
		t.Fatalf("exclusion violation: got (%d, %q)", status, reason)
	}

	// Retries exhausted on a serialization failure read as an
	// unavailable slot, not an internal error.
	status, _, reason = reserveFailure(&pgconn.PgError{Code: "40001"})
	if status != http.StatusConflict || reason != ReasonSlotUnavailable {
		t.Fatalf("serialization failure: got (%d, %q)", status, reason)
	}

	status, _, reason = reserveFailure(errors.New("connection reset"))
	if status != http.StatusInternalServerError || reason != "" {
		t.Fatalf("unknown error: got (%d, %q)", status, reason)
	}
}
