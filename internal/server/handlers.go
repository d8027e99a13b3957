package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/apptscope/apptscope/pkg/storage"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.GetStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleClinicians(w http.ResponseWriter, r *http.Request) {
	clinicians, err := s.DB.ListClinicians(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(clinicians)
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	clinicianID := r.URL.Query().Get("clinician")
	if clinicianID == "" {
		http.Error(w, "missing clinician parameter", http.StatusBadRequest)
		return
	}
	slots, err := s.DB.ListSlots(r.Context(), clinicianID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(slots)
}

type BookRequest struct {
	ClinicianID string `json:"clinicianId"`
	Href        string `json:"href"`
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ClinicianID == "" || req.Href == "" {
		http.Error(w, "clinicianId and href are required", http.StatusBadRequest)
		return
	}

	err := s.DB.BookSlot(r.Context(), req.ClinicianID, req.Href)
	if errors.Is(err, storage.ErrSlotUnavailable) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]bool{"booked": true})
}
