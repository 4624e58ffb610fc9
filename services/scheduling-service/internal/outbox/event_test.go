package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dfalmeida/agendo/services/scheduling-service/internal/model"
)

func TestAppointmentBookedEvent(t *testing.T) {
	profID := "pro-1"
	start := time.Date(2027, 3, 1, 9, 0, 0, 0, time.UTC)
	evt := AppointmentBooked(model.Appointment{
		ID:             "appt-1",
		CompanyID:      "co-1",
		ServiceID:      "svc-1",
		ClientID:       "cli-1",
		ProfessionalID: &profID,
		StartTime:      start,
		EndTime:        start.Add(30 * time.Minute),
		Status:         "pending",
	})

	if evt.EventType != EventAppointmentBooked {
		t.Fatalf("event type = %q", evt.EventType)
	}
	if evt.AggregateID != "appt-1" || evt.AggregateType != "appointment" {
		t.Fatalf("unexpected aggregate: %s/%s", evt.AggregateType, evt.AggregateID)
	}

	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("invalid payload json: %v", err)
	}
	if payload["appointment_id"] != "appt-1" || payload["professional_id"] != "pro-1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestStatusChangedRoutesCancellations(t *testing.T) {
	appt := model.Appointment{ID: "appt-1", CompanyID: "co-1", ClientID: "cli-1"}

	evt := StatusChanged(appt, "pending", "confirmed", "company")
	if evt.EventType != EventAppointmentStatusChanged {
		t.Fatalf("confirmed event type = %q", evt.EventType)
	}

	evt = StatusChanged(appt, "confirmed", "cancelled", "client")
	if evt.EventType != EventAppointmentCancelled {
		t.Fatalf("cancelled event type = %q", evt.EventType)
	}

	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("invalid payload json: %v", err)
	}
	if payload["old_status"] != "confirmed" || payload["new_status"] != "cancelled" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["actor_role"] != "client" {
		t.Fatalf("actor_role = %v", payload["actor_role"])
	}
}
