package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/classreg/internal/core"
)

// respondLookupError answers a failed single-record lookup, naming the entity on 404.
func (s *Server) respondLookupError(w http.ResponseWriter, r *http.Request, err error, entity string) {
	if errors.Is(err, core.ErrNotFound) {
		s.respondError(w, r, err, http.StatusNotFound, entity+" not found")
		return
	}
	s.respondError(w, r, err, statusFor(err), "Failed to fetch "+strings.ToLower(entity))
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.service.ListStudents(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "Failed to fetch students")
		return
	}
	writeData(w, students)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	student, err := s.service.GetStudent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondLookupError(w, r, err, "Student")
		return
	}
	writeData(w, student)
}

type autoCreateRequest struct {
	StudentIDs []string `json:"studentIds"`
}

type autoCreateResponse struct {
	Success bool `json:"success"`
	*core.AutoCreateReport
}

// handleAutoCreateStudents creates placeholder students for ids not yet known.
func (s *Server) handleAutoCreateStudents(w http.ResponseWriter, r *http.Request) {
	var req autoCreateRequest
	if err := decodeJSON(w, r, &req); err != nil || req.StudentIDs == nil {
		if err == nil {
			err = core.ErrInvalidRequest
		}
		s.respondError(w, r, err, http.StatusBadRequest, "studentIds array is required")
		return
	}

	report := s.service.AutoCreateStudents(r.Context(), req.StudentIDs)
	writeJSON(w, http.StatusOK, autoCreateResponse{Success: true, AutoCreateReport: report})
}

func (s *Server) handleListInstructors(w http.ResponseWriter, r *http.Request) {
	instructors, err := s.service.ListInstructors(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "Failed to fetch instructors")
		return
	}
	writeData(w, instructors)
}

func (s *Server) handleGetInstructor(w http.ResponseWriter, r *http.Request) {
	instructor, err := s.service.GetInstructor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondLookupError(w, r, err, "Instructor")
		return
	}
	writeData(w, instructor)
}

func (s *Server) handleListClassTypes(w http.ResponseWriter, r *http.Request) {
	classTypes, err := s.service.ListClassTypes(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "Failed to fetch class types")
		return
	}
	writeData(w, classTypes)
}

func (s *Server) handleGetClassType(w http.ResponseWriter, r *http.Request) {
	classType, err := s.service.GetClassType(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondLookupError(w, r, err, "Class type")
		return
	}
	writeData(w, classType)
}
