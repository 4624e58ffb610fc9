package outbox

import (
	"encoding/json"
	"time"

	"github.com/dfalmeida/agendo/services/scheduling-service/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventAppointmentBooked        = "scheduling.appointment.booked.v1"
	EventAppointmentStatusChanged = "scheduling.appointment.status_changed.v1"
	EventAppointmentCancelled     = "scheduling.appointment.cancelled.v1"
)

type appointmentBookedPayload struct {
	AppointmentID  string    `json:"appointment_id"`
	CompanyID      string    `json:"company_id"`
	ServiceID      string    `json:"service_id"`
	ClientID       string    `json:"client_id"`
	ProfessionalID *string   `json:"professional_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
}

type statusChangedPayload struct {
	AppointmentID string `json:"appointment_id"`
	CompanyID     string `json:"company_id"`
	ClientID      string `json:"client_id"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
	ActorRole     string `json:"actor_role"`
}

func AppointmentBooked(appt model.Appointment) Event {
	payload, _ := json.Marshal(appointmentBookedPayload{
		AppointmentID:  appt.ID,
		CompanyID:      appt.CompanyID,
		ServiceID:      appt.ServiceID,
		ClientID:       appt.ClientID,
		ProfessionalID: appt.ProfessionalID,
		StartTime:      appt.StartTime,
		EndTime:        appt.EndTime,
		Status:         appt.Status,
	})
	return Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     EventAppointmentBooked,
		Payload:       payload,
	}
}

// StatusChanged maps a transition to its event. Cancellations get a
// dedicated topic so the notification fan-out can treat them separately.
func StatusChanged(appt model.Appointment, oldStatus, newStatus, actorRole string) Event {
	payload, _ := json.Marshal(statusChangedPayload{
		AppointmentID: appt.ID,
		CompanyID:     appt.CompanyID,
		ClientID:      appt.ClientID,
		OldStatus:     oldStatus,
		NewStatus:     newStatus,
		ActorRole:     actorRole,
	})
	eventType := EventAppointmentStatusChanged
	if newStatus == "cancelled" {
		eventType = EventAppointmentCancelled
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}
}
