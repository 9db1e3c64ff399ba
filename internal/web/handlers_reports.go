package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/classreg/internal/core"
)

// defaultStatsDays is the window used when ?days= is absent or invalid.
const defaultStatsDays = 30

type classesReportResponse struct {
	Success bool `json:"success"`
	*core.ClassesReport
}

func (s *Server) handleClassesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := s.service.ClassesReport(r.Context(), core.ReportQuery{
		StartDate:    q.Get("startDate"),
		EndDate:      q.Get("endDate"),
		InstructorID: q.Get("instructorId"),
		StudentID:    q.Get("studentId"),
		ClassType:    q.Get("classType"),
		Page:         parseIntParam(r, "page", 1),
		Limit:        parseIntParam(r, "limit", 10),
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "Failed to fetch class reports")
		return
	}
	writeJSON(w, http.StatusOK, classesReportResponse{Success: true, ClassesReport: report})
}

func (s *Server) handleReportFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := s.service.ReportFilters(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "Failed to fetch filter options")
		return
	}
	writeData(w, filters)
}

type dailyStatsResponse struct {
	Success bool `json:"success"`
	*core.DailyStats
}

func (s *Server) handleDailyClassStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.DailyClassStats(r.Context(), parseIntParam(r, "days", defaultStatsDays))
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "Failed to fetch daily class statistics")
		return
	}
	writeJSON(w, http.StatusOK, dailyStatsResponse{Success: true, DailyStats: stats})
}

type classTypeStatsResponse struct {
	Success bool `json:"success"`
	*core.ClassTypeStats
}

func (s *Server) handleClassTypeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.ClassTypeStats(r.Context(), parseIntParam(r, "days", defaultStatsDays))
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "Failed to fetch class type statistics")
		return
	}
	writeJSON(w, http.StatusOK, classTypeStatsResponse{Success: true, ClassTypeStats: stats})
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.DashboardStats(r.Context(), parseIntParam(r, "days", defaultStatsDays))
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "Failed to fetch dashboard statistics")
		return
	}
	writeData(w, stats)
}

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.DashboardSummary(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "Failed to fetch dashboard summary")
		return
	}
	writeData(w, summary)
}

// healthResponse reports liveness, store reachability and import slots.
type healthResponse struct {
	Status    string                   `json:"status"`
	Message   string                   `json:"message"`
	Database  string                   `json:"database"`
	Imports   core.ImportLimiterStatus `json:"imports"`
	Timestamp time.Time                `json:"timestamp"`
}

// handleHealth answers 503 when the store cannot be pinged.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:    "OK",
		Message:   "Class Scheduling API is running!",
		Database:  "Connected",
		Imports:   s.service.ImportStatus(),
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK
	if err := s.service.Ping(ctx); err != nil {
		resp.Status = "DEGRADED"
		resp.Database = "Disconnected"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
