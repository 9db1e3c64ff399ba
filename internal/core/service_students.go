package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Auto-create outcomes.
const (
	AutoCreateCreated = "created"
	AutoCreateExists  = "exists"
	AutoCreateError   = "error"
)

// AutoCreateResult is the outcome for one requested student id.
type AutoCreateResult struct {
	StudentID string   `json:"studentId"`
	Status    string   `json:"status"`
	Message   string   `json:"message,omitempty"`
	Error     string   `json:"error,omitempty"`
	Data      *Student `json:"data,omitempty"`
}

// AutoCreateSummary totals an auto-create request.
type AutoCreateSummary struct {
	Total    int `json:"total"`
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Errors   int `json:"errors"`
}

// AutoCreateReport is the response of POST /api/students/auto-create.
type AutoCreateReport struct {
	Message string             `json:"message"`
	Summary AutoCreateSummary  `json:"summary"`
	Results []AutoCreateResult `json:"results"`
}

// AutoCreateStudents creates a placeholder for every id that does not exist
// yet. Failures are reported per id.
func (s *Service) AutoCreateStudents(ctx context.Context, studentIDs []string) *AutoCreateReport {
	rep := &AutoCreateReport{Results: make([]AutoCreateResult, 0, len(studentIDs))}
	rep.Summary.Total = len(studentIDs)

	for _, raw := range studentIDs {
		id := strings.TrimSpace(raw)
		res := s.autoCreate(ctx, id)
		switch res.Status {
		case AutoCreateCreated:
			rep.Summary.Created++
		case AutoCreateExists:
			rep.Summary.Existing++
		default:
			rep.Summary.Errors++
		}
		rep.Results = append(rep.Results, res)
	}

	rep.Message = fmt.Sprintf("Created %d new students, %d already existed", rep.Summary.Created, rep.Summary.Existing)
	return rep
}

func (s *Service) autoCreate(ctx context.Context, id string) AutoCreateResult {
	if id == "" {
		return AutoCreateResult{StudentID: id, Status: AutoCreateError, Error: "Student ID is required"}
	}

	_, err := s.store.GetStudent(ctx, id)
	if err == nil {
		return AutoCreateResult{StudentID: id, Status: AutoCreateExists, Message: "Student already exists"}
	}
	if !errors.Is(err, ErrNotFound) {
		s.logger(ctx).Error("auto-create lookup failed", "student_id", id, "error", err)
		return AutoCreateResult{StudentID: id, Status: AutoCreateError, Error: MapError(err).Message}
	}

	st := PlaceholderStudent(id, s.cfg.Schedule.StudentEmailDomain, s.now())
	if err := s.store.CreateStudent(ctx, st); err != nil {
		s.logger(ctx).Error("auto-create failed", "student_id", id, "error", err)
		return AutoCreateResult{StudentID: id, Status: AutoCreateError, Error: MapError(err).Message}
	}
	return AutoCreateResult{StudentID: id, Status: AutoCreateCreated, Message: "Student auto-created successfully", Data: &st}
}
