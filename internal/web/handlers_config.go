package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/classreg/internal/core"
)

func (s *Server) handleConfigOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.service.ConfigOverview(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "Failed to fetch configurations")
		return
	}
	writeData(w, overview)
}

func (s *Server) handleUIConfig(w http.ResponseWriter, r *http.Request) {
	ui, err := s.service.UIConfig(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "Failed to fetch UI configuration")
		return
	}
	writeData(w, ui)
}

// handleUpdateConfig sets one business-rule entry.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var u core.ConfigUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest, "")
		return
	}

	entry, err := s.service.SetConfig(r.Context(), u)
	if err != nil {
		summary := "Failed to update configuration"
		switch {
		case errors.Is(err, core.ErrConfigKeyNotAllowed):
			summary = fmt.Sprintf("Configuration key '%s' is not allowed to be updated via API", u.Key)
		case statusFor(err) == http.StatusBadRequest:
			summary = ""
		}
		s.respondError(w, r, err, statusFor(err), summary)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Success: true,
		Message: fmt.Sprintf("Configuration '%s' updated successfully", entry.Key),
		Data:    entry,
	})
}

type bulkConfigRequest struct {
	Configs []core.ConfigUpdate `json:"configs"`
}

type bulkConfigResponse struct {
	Success bool                `json:"success"`
	Results []core.ConfigResult `json:"results"`
}

// handleBulkUpdateConfig applies each update independently.
func (s *Server) handleBulkUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req bulkConfigRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Configs == nil {
		if err == nil {
			err = core.ErrInvalidRequest
		}
		s.respondError(w, r, err, http.StatusBadRequest, "configs array is required")
		return
	}

	results := s.service.BulkSetConfig(r.Context(), req.Configs)
	writeJSON(w, http.StatusOK, bulkConfigResponse{Success: true, Results: results})
}

type resetConfigRequest struct {
	Key string `json:"key"`
}

// handleResetConfig removes a stored entry so the default applies again.
func (s *Server) handleResetConfig(w http.ResponseWriter, r *http.Request) {
	var req resetConfigRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest, "Key is required")
		return
	}

	if err := s.service.ResetConfig(r.Context(), req.Key); err != nil {
		summary := "Failed to reset configuration"
		if errors.Is(err, core.ErrConfigKeyRequired) {
			summary = "Key is required"
		}
		s.respondError(w, r, err, statusFor(err), summary)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Success: true,
		Message: fmt.Sprintf("Configuration '%s' reset to default", req.Key),
	})
}
