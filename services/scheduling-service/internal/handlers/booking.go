package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dfalmeida/agendo/services/scheduling-service/internal/availability"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/booking"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/history"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/model"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/outbox"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/storage"
)

// reserveAttempts bounds the retry loop around transient transaction
// failures. Exclusion-constraint conflicts are not retried; the slot is
// genuinely taken.
const reserveAttempts = 3

type BookingHandler struct {
	appointments *storage.AppointmentRepository
	schedule     *storage.ScheduleRepository
	history      *history.Repository
	outboxRepo   *outbox.Repository
	logger       *slog.Logger
	slotStep     time.Duration
	now          func() time.Time
}

func NewBookingHandler(appointments *storage.AppointmentRepository, schedule *storage.ScheduleRepository, historyRepo *history.Repository, outboxRepo *outbox.Repository, logger *slog.Logger, slotStep time.Duration) *BookingHandler {
	return &BookingHandler{
		appointments: appointments,
		schedule:     schedule,
		history:      historyRepo,
		outboxRepo:   outboxRepo,
		logger:       logger,
		slotStep:     slotStep,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// actor is the authenticated caller as forwarded by the gateway.
type actor struct {
	ID        string
	CompanyID string
	Role      booking.Role
}

func actorFromRequest(r *http.Request) (actor, bool) {
	role, ok := booking.ParseRole(strings.TrimSpace(r.Header.Get("X-Actor-Role")))
	if !ok {
		return actor{}, false
	}
	a := actor{
		ID:        strings.TrimSpace(r.Header.Get("X-Actor-Id")),
		CompanyID: strings.TrimSpace(r.Header.Get("X-Company-Id")),
		Role:      role,
	}
	if a.ID == "" {
		return actor{}, false
	}
	return a, true
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Slots is the public availability endpoint: free bookable slots for a
// professional, service and day. No auth required.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	professionalID := strings.TrimSpace(r.URL.Query().Get("professional_id"))
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if professionalID == "" || serviceID == "" || dateStr == "" {
		writeError(w, http.StatusBadRequest, "professional_id, service_id, and date are required", "")
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date (want YYYY-MM-DD)", "")
		return
	}

	ctx := r.Context()
	prof, err := h.schedule.GetProfessional(ctx, professionalID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "professional not found", ReasonNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load professional", "")
		return
	}
	if !prof.Active {
		writeJSON(w, http.StatusOK, []slotItem{})
		return
	}

	duration, err := h.schedule.GetServiceDuration(ctx, prof.CompanyID, serviceID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "service not found", ReasonNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load service", "")
		return
	}

	hours, err := h.schedule.GetWorkingHours(ctx, professionalID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load working hours", "")
		return
	}
	windows := hours.Windows(day)
	if len(windows) == 0 {
		writeJSON(w, http.StatusOK, []slotItem{})
		return
	}

	dayStart := windows[0].Start
	dayEnd := windows[len(windows)-1].End
	blocked, err := h.schedule.ListBlockedIntervals(ctx, professionalID, dayStart, dayEnd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load blocked slots", "")
		return
	}
	booked, err := h.appointments.ListBookedIntervals(ctx, professionalID, dayStart, dayEnd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load booked slots", "")
		return
	}

	busy := append(append([]availability.Interval{}, blocked...), booked...)
	free := availability.FreeSlots(windows, busy, duration, h.slotStep, h.now())

	items := make([]slotItem, 0, len(free))
	for _, s := range free {
		items = append(items, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

type createAppointmentRequest struct {
	ServiceID      string `json:"service_id"`
	ProfessionalID string `json:"professional_id"`
	ClientID       string `json:"client_id"`
	StartTime      string `json:"start_time"`
}

type appointmentResponse struct {
	AppointmentID  string `json:"appointment_id"`
	ServiceID      string `json:"service_id"`
	ClientID       string `json:"client_id"`
	ProfessionalID string `json:"professional_id,omitempty"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at,omitempty"`
}

func appointmentToResponse(appt model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		AppointmentID: appt.ID,
		ServiceID:     appt.ServiceID,
		ClientID:      appt.ClientID,
		StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:       appt.EndTime.UTC().Format(time.RFC3339),
		Status:        appt.Status,
	}
	if appt.ProfessionalID != nil {
		resp.ProfessionalID = *appt.ProfessionalID
	}
	if !appt.CreatedAt.IsZero() {
		resp.CreatedAt = appt.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Create reserves an appointment. The professional may be omitted for
// deferred assignment; the conflict check then runs at assignment time.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	act, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor identity", "")
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", "")
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ServiceID == "" || req.StartTime == "" {
		writeError(w, http.StatusBadRequest, "service_id and start_time are required", "")
		return
	}

	clientID := act.ID
	if req.ClientID != "" && req.ClientID != act.ID {
		// Booking on behalf of a client is a staff privilege.
		if act.Role == booking.RoleClient {
			writeError(w, http.StatusForbidden, "clients may only book for themselves", "")
			return
		}
		clientID = req.ClientID
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time", "")
		return
	}
	start = start.UTC()

	ctx := r.Context()
	svc, err := h.schedule.GetService(ctx, req.ServiceID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "service not found", ReasonNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load service", "")
		return
	}
	companyID, ok := bookingCompany(act, svc)
	if !ok {
		writeError(w, http.StatusNotFound, "service not found", ReasonNotFound)
		return
	}
	end := start.Add(svc.Duration)

	appt := &model.Appointment{
		CompanyID: companyID,
		ServiceID: req.ServiceID,
		ClientID:  clientID,
		StartTime: start,
		EndTime:   end,
		Status:    string(booking.InitialStatus),
	}
	if req.ProfessionalID != "" {
		prof, err := h.schedule.GetProfessional(ctx, req.ProfessionalID)
		if err != nil {
			if storage.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "professional not found", ReasonNotFound)
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load professional", "")
			return
		}
		if reason, status, msg := professionalBookable(prof, appt.CompanyID); reason != "" {
			writeError(w, status, msg, reason)
			return
		}
		if reason, status, msg := h.checkAvailability(r, req.ProfessionalID, start, end); reason != "" {
			writeError(w, status, msg, reason)
			return
		}
		appt.ProfessionalID = &req.ProfessionalID
	}

	var id string
	for attempt := 1; ; attempt++ {
		id, err = h.reserve(r, appt, act)
		if err == nil {
			break
		}
		if storage.IsSerializationFailure(err) && attempt < reserveAttempts {
			h.logger.Warn("reservation retry", "attempt", attempt, "err", err)
			continue
		}
		status, msg, reason := reserveFailure(err)
		writeError(w, status, msg, reason)
		return
	}

	appt.ID = id
	writeJSON(w, http.StatusCreated, appointmentToResponse(*appt))
}

// bookingCompany resolves the tenant a new appointment belongs to.
// Client tokens carry no company, so the service row decides; staff are
// held to their own company and get a not-found for anyone else's
// services.
func bookingCompany(act actor, svc model.Service) (string, bool) {
	if act.Role != booking.RoleClient && act.CompanyID != svc.CompanyID {
		return "", false
	}
	return svc.CompanyID, true
}

// professionalBookable guards assignment targets: same company as the
// appointment, and active.
func professionalBookable(prof model.Professional, companyID string) (reason string, status int, msg string) {
	if prof.CompanyID != companyID {
		return ReasonNotFound, http.StatusNotFound, "professional not found"
	}
	if !prof.Active {
		return ReasonSlotUnavailable, http.StatusUnprocessableEntity, "professional is not active"
	}
	return "", 0, ""
}

// reserveFailure maps a lost reservation to its HTTP response. A race
// that survives the retry budget reads as an unavailable slot.
func reserveFailure(err error) (status int, msg string, reason string) {
	switch {
	case storage.IsConflict(err):
		return http.StatusConflict, "time slot already booked", ReasonDoubleBooking
	case storage.IsSerializationFailure(err):
		return http.StatusConflict, "slot was taken by a concurrent booking", ReasonSlotUnavailable
	default:
		return http.StatusInternalServerError, "failed to create appointment", ""
	}
}

// checkAvailability runs the advisory pre-check against working hours,
// blocked slots, and existing bookings. The exclusion constraint remains
// the authority for double bookings; this produces the precise reason.
func (h *BookingHandler) checkAvailability(r *http.Request, professionalID string, start, end time.Time) (reason string, status int, msg string) {
	ctx := r.Context()
	hours, err := h.schedule.GetWorkingHours(ctx, professionalID)
	if err != nil {
		return ReasonServiceUnavailable, http.StatusInternalServerError, "failed to load working hours"
	}
	windows := hours.Windows(start)
	blocked, err := h.schedule.ListBlockedIntervals(ctx, professionalID, start, end)
	if err != nil {
		return ReasonServiceUnavailable, http.StatusInternalServerError, "failed to load blocked slots"
	}
	booked, err := h.appointments.ListBookedIntervals(ctx, professionalID, start, end)
	if err != nil {
		return ReasonServiceUnavailable, http.StatusInternalServerError, "failed to load booked slots"
	}

	switch availability.Check(windows, blocked, booked, start, end) {
	case availability.ReasonNone:
		return "", 0, ""
	case availability.ReasonOutsideWorkingHours:
		return ReasonOutsideWorkingHours, http.StatusUnprocessableEntity, "requested time is outside working hours"
	case availability.ReasonBlockedInterval:
		return ReasonBlockedInterval, http.StatusConflict, "requested time is blocked"
	default:
		return ReasonDoubleBooking, http.StatusConflict, "time slot already booked"
	}
}

// reserve runs one reservation transaction: insert, history entry, and
// outbox event commit together or not at all.
func (h *BookingHandler) reserve(r *http.Request, appt *model.Appointment, act actor) (string, error) {
	ctx := r.Context()
	tx, err := h.appointments.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.appointments.Create(ctx, tx, appt)
	if err != nil {
		return "", err
	}
	if err := h.history.Record(ctx, tx, history.Entry{
		AppointmentID: id,
		NewStatus:     appt.Status,
		ActorID:       act.ID,
		ActorRole:     string(act.Role),
	}); err != nil {
		return "", err
	}
	created := *appt
	created.ID = id
	if err := h.outboxRepo.Insert(ctx, tx, outbox.AppointmentBooked(created)); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

type assignRequest struct {
	AppointmentID  string `json:"appointment_id"`
	ProfessionalID string `json:"professional_id"`
}

// Assign fills in the professional on an appointment booked without
// one. The conflict check deferred at creation runs here, and the
// exclusion constraint re-fires on the update.
func (h *BookingHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	act, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor identity", "")
		return
	}
	if act.Role != booking.RoleCompany && act.Role != booking.RoleAdmin {
		writeError(w, http.StatusForbidden, "only company staff may assign professionals", "")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", "")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	if req.AppointmentID == "" || req.ProfessionalID == "" {
		writeError(w, http.StatusBadRequest, "appointment_id and professional_id are required", "")
		return
	}

	ctx := r.Context()
	prof, err := h.schedule.GetProfessional(ctx, req.ProfessionalID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "professional not found", ReasonNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load professional", "")
		return
	}

	tx, err := h.appointments.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error", "")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.appointments.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "appointment not found", ReasonNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load appointment", "")
		return
	}
	if appt.CompanyID != act.CompanyID {
		writeError(w, http.StatusNotFound, "appointment not found", ReasonNotFound)
		return
	}
	if reason, status, msg := professionalBookable(prof, appt.CompanyID); reason != "" {
		writeError(w, status, msg, reason)
		return
	}
	if appt.ProfessionalID != nil {
		writeError(w, http.StatusConflict, "appointment already has a professional", ReasonConcurrencyConflict)
		return
	}
	if booking.Status(appt.Status).Terminal() {
		writeError(w, http.StatusConflict, "appointment is in a terminal status", ReasonIllegalTransition)
		return
	}

	if reason, status, msg := h.checkAvailability(r, req.ProfessionalID, appt.StartTime, appt.EndTime); reason != "" {
		writeError(w, status, msg, reason)
		return
	}

	if err := h.appointments.AssignProfessional(ctx, tx, req.AppointmentID, req.ProfessionalID); err != nil {
		if storage.IsConflict(err) {
			writeError(w, http.StatusConflict, "time slot already booked", ReasonDoubleBooking)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to assign professional", "")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			writeError(w, http.StatusConflict, "time slot already booked", ReasonDoubleBooking)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to commit", "")
		return
	}

	appt.ProfessionalID = &req.ProfessionalID
	writeJSON(w, http.StatusOK, appointmentToResponse(appt))
}

type updateStatusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

// UpdateStatus moves an appointment through the status state machine
// and appends the history entry in the same transaction.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	act, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor identity", "")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", "")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointment_id is required", "")
		return
	}
	to, err := booking.ParseStatus(strings.TrimSpace(req.Status))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown status", "")
		return
	}

	ctx := r.Context()
	tx, err := h.appointments.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error", "")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.appointments.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "appointment not found", ReasonNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load appointment", "")
		return
	}
	if !h.actorMaySee(act, appt) {
		writeError(w, http.StatusNotFound, "appointment not found", ReasonNotFound)
		return
	}

	from := booking.Status(appt.Status)
	if err := booking.Transition(from, to, act.Role); err != nil {
		switch {
		case errors.Is(err, booking.ErrActorNotAllowed):
			writeError(w, http.StatusForbidden, err.Error(), ReasonIllegalTransition)
		case errors.Is(err, booking.ErrIllegalTransition):
			writeError(w, http.StatusConflict, err.Error(), ReasonIllegalTransition)
		default:
			writeError(w, http.StatusBadRequest, err.Error(), "")
		}
		return
	}

	if err := h.appointments.UpdateStatus(ctx, tx, req.AppointmentID, string(to)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update status", "")
		return
	}
	if err := h.history.Record(ctx, tx, history.Entry{
		AppointmentID: req.AppointmentID,
		OldStatus:     string(from),
		NewStatus:     string(to),
		ActorID:       act.ID,
		ActorRole:     string(act.Role),
		Reason:        strings.TrimSpace(req.Reason),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record history", "")
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.StatusChanged(appt, string(from), string(to), string(act.Role))); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write outbox event", "")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to commit", "")
		return
	}

	appt.Status = string(to)
	writeJSON(w, http.StatusOK, appointmentToResponse(appt))
}

// History returns the append-only status trail for one appointment.
func (h *BookingHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	act, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor identity", "")
		return
	}

	appointmentID := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if appointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointment_id is required", "")
		return
	}

	appt, err := h.appointments.GetByID(r.Context(), appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "appointment not found", ReasonNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load appointment", "")
		return
	}
	if !h.actorMaySee(act, appt) {
		writeError(w, http.StatusNotFound, "appointment not found", ReasonNotFound)
		return
	}

	entries, err := h.history.List(r.Context(), appointmentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history", "")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// List returns the caller's appointments: own bookings for clients,
// own schedule for professionals, the whole company for staff.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	act, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor identity", "")
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var (
		appts []model.Appointment
		err   error
	)
	switch act.Role {
	case booking.RoleClient:
		appts, err = h.appointments.ListByClient(r.Context(), act.ID, limit)
	case booking.RoleProfessional:
		appts, err = h.appointments.ListByProfessional(r.Context(), act.ID, limit)
	default:
		appts, err = h.appointments.ListByCompany(r.Context(), act.CompanyID, limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list appointments", "")
		return
	}

	items := make([]appointmentResponse, 0, len(appts))
	for _, appt := range appts {
		items = append(items, appointmentToResponse(appt))
	}
	writeJSON(w, http.StatusOK, items)
}

// actorMaySee scopes reads: clients see their own appointments,
// professionals their own schedule, company staff their company.
func (h *BookingHandler) actorMaySee(act actor, appt model.Appointment) bool {
	switch act.Role {
	case booking.RoleClient:
		return appt.ClientID == act.ID
	case booking.RoleProfessional:
		return appt.ProfessionalID != nil && *appt.ProfessionalID == act.ID
	case booking.RoleCompany, booking.RoleAdmin:
		return appt.CompanyID == act.CompanyID
	default:
		return false
	}
}
