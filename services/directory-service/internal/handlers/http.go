package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dfalmeida/agendo/services/directory-service/internal/storage"
)

type Handler struct {
	repo *storage.Repository
}

func New(repo *storage.Repository) *Handler {
	return &Handler{repo: repo}
}

func companyIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Company-Id"))
}

func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	companyID := companyIDFromHeader(r)
	if companyID == "" {
		http.Error(w, "missing X-Company-Id", http.StatusBadRequest)
		return
	}

	c, err := h.repo.GetOrCreateCompany(r.Context(), companyID)
	if err != nil {
		http.Error(w, "failed to load company", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(c)
}

func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	companyID := companyIDFromHeader(r)
	if companyID == "" {
		http.Error(w, "missing X-Company-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	if err := h.repo.UpdateCompany(r.Context(), companyID, req.Name, req.Timezone); err != nil {
		http.Error(w, "failed to update company", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createService(w, r)
	case http.MethodGet:
		h.listServices(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	companyID := companyIDFromHeader(r)
	if companyID == "" {
		http.Error(w, "missing X-Company-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name         string  `json:"name"`
		DurationMins int     `json:"duration_minutes"`
		Price        float64 `json:"price"`
		Description  string  `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.DurationMins <= 0 {
		http.Error(w, "name and a positive duration_minutes are required", http.StatusBadRequest)
		return
	}
	if req.DurationMins > 24*60 {
		http.Error(w, "duration_minutes may not exceed one day", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateService(r.Context(), companyID, req.Name, req.DurationMins, req.Price, req.Description)
	if err != nil {
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	companyID := companyIDFromHeader(r)
	if companyID == "" {
		http.Error(w, "missing X-Company-Id", http.StatusBadRequest)
		return
	}

	services, err := h.repo.ListServices(r.Context(), companyID, 100)
	if err != nil {
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	if services == nil {
		services = []storage.Service{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(services)
}

func (h *Handler) Professionals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createProfessional(w, r)
	case http.MethodGet:
		h.listProfessionals(w, r)
	case http.MethodPatch:
		h.setProfessionalActive(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createProfessional(w http.ResponseWriter, r *http.Request) {
	companyID := companyIDFromHeader(r)
	if companyID == "" {
		http.Error(w, "missing X-Company-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name     string `json:"name"`
		IsActive *bool  `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	id, err := h.repo.CreateProfessional(r.Context(), companyID, req.Name, active)
	if err != nil {
		http.Error(w, "failed to create professional", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) listProfessionals(w http.ResponseWriter, r *http.Request) {
	companyID := companyIDFromHeader(r)
	if companyID == "" {
		http.Error(w, "missing X-Company-Id", http.StatusBadRequest)
		return
	}

	professionals, err := h.repo.ListProfessionals(r.Context(), companyID, 100)
	if err != nil {
		http.Error(w, "failed to list professionals", http.StatusInternalServerError)
		return
	}
	if professionals == nil {
		professionals = []storage.Professional{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(professionals)
}

func (h *Handler) setProfessionalActive(w http.ResponseWriter, r *http.Request) {
	companyID := companyIDFromHeader(r)
	if companyID == "" {
		http.Error(w, "missing X-Company-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		ID       string `json:"id"`
		IsActive *bool  `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" || req.IsActive == nil {
		http.Error(w, "id and is_active are required", http.StatusBadRequest)
		return
	}

	if err := h.repo.SetProfessionalActive(r.Context(), companyID, req.ID, *req.IsActive); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "professional not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update professional", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
