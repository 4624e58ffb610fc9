package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dfalmeida/agendo/services/scheduling-service/internal/availability"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/booking"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/model"
	"github.com/dfalmeida/agendo/services/scheduling-service/internal/storage"
)

type ScheduleHandler struct {
	schedule *storage.ScheduleRepository
	logger   *slog.Logger
}

func NewScheduleHandler(schedule *storage.ScheduleRepository, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule, logger: logger}
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

type clockRangeItem struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type workingHoursRequest struct {
	ProfessionalID string                      `json:"professional_id"`
	Hours          map[string][]clockRangeItem `json:"hours"`
}

func parseClockMinute(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q (want HH:MM)", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func parseWeeklyHours(raw map[string][]clockRangeItem) (availability.WeeklyHours, error) {
	hours := availability.WeeklyHours{}
	for name, ranges := range raw {
		weekday, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		for _, item := range ranges {
			startMin, err := parseClockMinute(item.Start)
			if err != nil {
				return nil, err
			}
			endMin, err := parseClockMinute(item.End)
			if err != nil {
				return nil, err
			}
			hours[weekday] = append(hours[weekday], availability.ClockRange{
				StartMinute: startMin,
				EndMinute:   endMin,
			})
		}
	}
	return hours, nil
}

// resolveProfessional checks that the actor may manage the given
// professional's schedule. Professionals manage their own; company
// staff manage any professional in their company.
func (h *ScheduleHandler) resolveProfessional(r *http.Request, act actor, professionalID string) (model.Professional, int, string) {
	if act.Role == booking.RoleProfessional {
		if professionalID == "" {
			professionalID = act.ID
		}
		if professionalID != act.ID {
			return model.Professional{}, http.StatusForbidden, "professionals may only manage their own schedule"
		}
	} else if act.Role != booking.RoleCompany && act.Role != booking.RoleAdmin {
		return model.Professional{}, http.StatusForbidden, "role may not manage schedules"
	}
	if professionalID == "" {
		return model.Professional{}, http.StatusBadRequest, "professional_id is required"
	}

	prof, err := h.schedule.GetProfessional(r.Context(), professionalID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Professional{}, http.StatusNotFound, "professional not found"
		}
		return model.Professional{}, http.StatusInternalServerError, "failed to load professional"
	}
	if act.Role != booking.RoleProfessional && prof.CompanyID != act.CompanyID {
		return model.Professional{}, http.StatusNotFound, "professional not found"
	}
	return prof, 0, ""
}

// WorkingHours replaces a professional's weekly schedule. The whole
// week is validated before anything is written.
func (h *ScheduleHandler) WorkingHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	act, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor identity", "")
		return
	}

	var req workingHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", "")
		return
	}

	prof, status, msg := h.resolveProfessional(r, act, strings.TrimSpace(req.ProfessionalID))
	if status != 0 {
		writeError(w, status, msg, "")
		return
	}

	hours, err := parseWeeklyHours(req.Hours)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), ReasonInvalidConfiguration)
		return
	}
	if err := hours.Validate(); err != nil {
		if errors.Is(err, availability.ErrInvalidSchedule) {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), ReasonInvalidConfiguration)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to validate schedule", "")
		return
	}

	if err := h.schedule.ReplaceWorkingHours(r.Context(), prof.ID, hours); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save working hours", "")
		return
	}
	h.logger.Info("working hours replaced", "professional_id", prof.ID)
	w.WriteHeader(http.StatusNoContent)
}

type createBlockedSlotRequest struct {
	ProfessionalID string `json:"professional_id"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Reason         string `json:"reason"`
}

type blockedSlotItem struct {
	ID        string `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason,omitempty"`
}

// BlockedSlots dispatches the blocked-slot collection: create, list,
// and delete.
func (h *ScheduleHandler) BlockedSlots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createBlockedSlot(w, r)
	case http.MethodGet:
		h.listBlockedSlots(w, r)
	case http.MethodDelete:
		h.deleteBlockedSlot(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

func (h *ScheduleHandler) createBlockedSlot(w http.ResponseWriter, r *http.Request) {
	act, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor identity", "")
		return
	}

	var req createBlockedSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", "")
		return
	}

	prof, status, msg := h.resolveProfessional(r, act, strings.TrimSpace(req.ProfessionalID))
	if status != 0 {
		writeError(w, status, msg, "")
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time", "")
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_time", "")
		return
	}
	if !end.After(start) {
		writeError(w, http.StatusUnprocessableEntity, "end_time must be after start_time", ReasonInvalidConfiguration)
		return
	}

	id, err := h.schedule.CreateBlockedSlot(r.Context(), prof.ID, start.UTC(), end.UTC(), strings.TrimSpace(req.Reason))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create blocked slot", "")
		return
	}
	writeJSON(w, http.StatusCreated, blockedSlotItem{
		ID:        id,
		StartTime: start.UTC().Format(time.RFC3339),
		EndTime:   end.UTC().Format(time.RFC3339),
		Reason:    strings.TrimSpace(req.Reason),
	})
}

func (h *ScheduleHandler) listBlockedSlots(w http.ResponseWriter, r *http.Request) {
	act, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor identity", "")
		return
	}

	prof, status, msg := h.resolveProfessional(r, act, strings.TrimSpace(r.URL.Query().Get("professional_id")))
	if status != 0 {
		writeError(w, status, msg, "")
		return
	}

	from, to, err := parseRangeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	slots, err := h.schedule.ListBlockedSlots(r.Context(), prof.ID, from, to, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list blocked slots", "")
		return
	}

	items := make([]blockedSlotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, blockedSlotItem{
			ID:        s.ID,
			StartTime: s.StartTime.UTC().Format(time.RFC3339),
			EndTime:   s.EndTime.UTC().Format(time.RFC3339),
			Reason:    s.Reason,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ScheduleHandler) deleteBlockedSlot(w http.ResponseWriter, r *http.Request) {
	act, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor identity", "")
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required", "")
		return
	}
	prof, status, msg := h.resolveProfessional(r, act, strings.TrimSpace(r.URL.Query().Get("professional_id")))
	if status != 0 {
		writeError(w, status, msg, "")
		return
	}

	if err := h.schedule.DeleteBlockedSlot(r.Context(), prof.ID, id); err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "blocked slot not found", ReasonNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete blocked slot", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseRangeParams reads optional from/to bounds; the default window is
// the next 30 days.
func parseRangeParams(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now
	to := now.AddDate(0, 0, 30)

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %w", err)
		}
		from = t.UTC()
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %w", err)
		}
		to = t.UTC()
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}
