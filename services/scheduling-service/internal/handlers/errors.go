package handlers

import (
	"encoding/json"
	"net/http"
)

// Machine-readable reason codes carried in error responses so callers
// can branch without parsing the message text.
const (
	ReasonInvalidConfiguration = "invalid_configuration"
	ReasonOutsideWorkingHours  = "outside_working_hours"
	ReasonBlockedInterval      = "blocked_interval"
	ReasonDoubleBooking        = "double_booking"
	ReasonSlotUnavailable      = "slot_unavailable"
	ReasonIllegalTransition    = "illegal_transition"
	ReasonNotFound             = "not_found"
	ReasonConcurrencyConflict  = "concurrency_conflict"
	ReasonServiceUnavailable   = "service_unavailable"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, Reason: reason})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build response", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
