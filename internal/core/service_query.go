package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ErrInvalidQuery is returned for malformed listing parameters.
var ErrInvalidQuery = errors.New("invalid query parameter")

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	defaultStatsDays = 30
)

// normalizePage clamps page/limit to sane values.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

// parseDay reads a YYYY-MM-DD date as local midnight in loc.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidQuery, s)
	}
	return t, nil
}

// ListStudents returns active students sorted by name.
func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	return s.store.ListStudents(ctx)
}

// GetStudent returns an active student by business id.
func (s *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	st, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !st.IsActive {
		return Student{}, ErrNotFound
	}
	return st, nil
}

// ListInstructors returns active instructors sorted by name.
func (s *Service) ListInstructors(ctx context.Context) ([]Instructor, error) {
	return s.store.ListInstructors(ctx)
}

// GetInstructor returns an active instructor by business id.
func (s *Service) GetInstructor(ctx context.Context, id string) (Instructor, error) {
	in, err := s.store.GetInstructor(ctx, id)
	if err != nil {
		return Instructor{}, err
	}
	if !in.IsActive {
		return Instructor{}, ErrNotFound
	}
	return in, nil
}

// ListClassTypes returns active class types sorted by name.
func (s *Service) ListClassTypes(ctx context.Context) ([]ClassType, error) {
	return s.store.ListClassTypes(ctx)
}

// GetClassType returns an active class type by business id.
func (s *Service) GetClassType(ctx context.Context, id string) (ClassType, error) {
	ct, err := s.store.GetClassType(ctx, id)
	if err != nil {
		return ClassType{}, err
	}
	if !ct.IsActive {
		return ClassType{}, ErrNotFound
	}
	return ct, nil
}

// GetRegistration returns a registration by id, whatever its status.
func (s *Service) GetRegistration(ctx context.Context, id string) (Registration, error) {
	return s.store.GetRegistration(ctx, id)
}

// RegistrationQuery filters GET /api/registrations.
type RegistrationQuery struct {
	Date         string // YYYY-MM-DD, optional
	InstructorID string
	Page         int
	Limit        int
}

// RegistrationPage is one page of registrations.
type RegistrationPage struct {
	Data       []Registration `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// ListRegistrations returns scheduled registrations, newest start first.
func (s *Service) ListRegistrations(ctx context.Context, q RegistrationQuery) (*RegistrationPage, error) {
	page, limit := normalizePage(q.Page, q.Limit)
	f := RegistrationFilter{
		InstructorID: q.InstructorID,
		Limit:        limit,
		Offset:       (page - 1) * limit,
	}
	if q.Date != "" {
		day, err := parseDay(q.Date, s.Location())
		if err != nil {
			return nil, err
		}
		f.From, f.To = day, day.AddDate(0, 0, 1)
	}

	regs, total, err := s.store.ListRegistrations(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return &RegistrationPage{Data: regs, Pagination: NewPagination(page, limit, total)}, nil
}

// ReportQuery filters the classes report. Dates are YYYY-MM-DD and EndDate
// includes its whole day.
type ReportQuery struct {
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`
	InstructorID string `json:"instructorId,omitempty"`
	StudentID    string `json:"studentId,omitempty"`
	ClassType    string `json:"classType,omitempty"`
	Page         int    `json:"-"`
	Limit        int    `json:"-"`
}

// ReportRow is a registration with display names resolved.
type ReportRow struct {
	Registration
	StudentName      string `json:"studentName"`
	InstructorName   string `json:"instructorName"`
	ClassName        string `json:"className"`
	ClassDescription string `json:"classDescription"`
}

// ClassesReport is the response of the classes report.
type ClassesReport struct {
	Data       []ReportRow `json:"data"`
	Pagination Pagination  `json:"pagination"`
	Filters    ReportQuery `json:"filters"`
}

// ClassesReport lists scheduled registrations matching q with names resolved.
// Unknown references are shown as "Unknown Student" and so on.
func (s *Service) ClassesReport(ctx context.Context, q ReportQuery) (*ClassesReport, error) {
	page, limit := normalizePage(q.Page, q.Limit)
	f := RegistrationFilter{
		InstructorID: q.InstructorID,
		StudentID:    q.StudentID,
		ClassType:    q.ClassType,
		Limit:        limit,
		Offset:       (page - 1) * limit,
	}
	if q.StartDate != "" {
		from, err := parseDay(q.StartDate, s.Location())
		if err != nil {
			return nil, err
		}
		f.From = from
	}
	if q.EndDate != "" {
		to, err := parseDay(q.EndDate, s.Location())
		if err != nil {
			return nil, err
		}
		f.To = to.AddDate(0, 0, 1)
	}

	regs, total, err := s.store.ListRegistrations(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	names := newNameCache(s.store)
	rows := make([]ReportRow, len(regs))
	for i, r := range regs {
		rows[i] = ReportRow{Registration: r}
		if rows[i].StudentName, err = names.student(ctx, r.StudentID); err != nil {
			return nil, err
		}
		if rows[i].InstructorName, err = names.instructor(ctx, r.InstructorID); err != nil {
			return nil, err
		}
		if rows[i].ClassName, rows[i].ClassDescription, err = names.classType(ctx, r.ClassType); err != nil {
			return nil, err
		}
	}

	return &ClassesReport{
		Data:       rows,
		Pagination: NewPagination(page, limit, total),
		Filters:    q,
	}, nil
}

// nameCache resolves display names once per report.
type nameCache struct {
	dir         DirectoryStore
	students    map[string]string
	instructors map[string]string
	classes     map[string][2]string
}

func newNameCache(dir DirectoryStore) *nameCache {
	return &nameCache{
		dir:         dir,
		students:    map[string]string{},
		instructors: map[string]string{},
		classes:     map[string][2]string{},
	}
}

func (c *nameCache) student(ctx context.Context, id string) (string, error) {
	if n, ok := c.students[id]; ok {
		return n, nil
	}
	n := "Unknown Student"
	st, err := c.dir.GetStudent(ctx, id)
	switch {
	case err == nil:
		n = st.Name
	case !errors.Is(err, ErrNotFound):
		return "", fmt.Errorf("get student: %w", err)
	}
	c.students[id] = n
	return n, nil
}

func (c *nameCache) instructor(ctx context.Context, id string) (string, error) {
	if n, ok := c.instructors[id]; ok {
		return n, nil
	}
	n := "Unknown Instructor"
	in, err := c.dir.GetInstructor(ctx, id)
	switch {
	case err == nil:
		n = in.Name
	case !errors.Is(err, ErrNotFound):
		return "", fmt.Errorf("get instructor: %w", err)
	}
	c.instructors[id] = n
	return n, nil
}

func (c *nameCache) classType(ctx context.Context, id string) (string, string, error) {
	if v, ok := c.classes[id]; ok {
		return v[0], v[1], nil
	}
	v := [2]string{"Unknown Class", ""}
	ct, err := c.dir.GetClassType(ctx, id)
	switch {
	case err == nil:
		v = [2]string{ct.Name, ct.Description}
	case !errors.Is(err, ErrNotFound):
		return "", "", fmt.Errorf("get class type: %w", err)
	}
	c.classes[id] = v
	return v[0], v[1], nil
}

// ReportFilters lists the values the report UI offers in its dropdowns.
type ReportFilters struct {
	Instructors []Instructor `json:"instructors"`
	Students    []Student    `json:"students"`
	ClassTypes  []ClassType  `json:"classTypes"`
}

// ReportFilters returns active instructors, students and class types.
func (s *Service) ReportFilters(ctx context.Context) (*ReportFilters, error) {
	instructors, err := s.store.ListInstructors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	classTypes, err := s.store.ListClassTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list class types: %w", err)
	}
	return &ReportFilters{Instructors: instructors, Students: students, ClassTypes: classTypes}, nil
}

// Period is the window a statistic covers.
type Period struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Days      int       `json:"days"`
}

// period returns local midnight days ago through now.
func (s *Service) period(days int) Period {
	if days <= 0 {
		days = defaultStatsDays
	}
	now := s.now().In(s.Location())
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -days)
	return Period{StartDate: start, EndDate: now, Days: days}
}

// DailyStats is the per-day count of scheduled classes.
type DailyStats struct {
	Data   []DailyCount `json:"data"`
	Period Period       `json:"period"`
}

// DailyClassStats counts scheduled registrations per day over the last days.
func (s *Service) DailyClassStats(ctx context.Context, days int) (*DailyStats, error) {
	p := s.period(days)
	counts, err := s.store.DailyCounts(ctx, p.StartDate, s.Location())
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}
	return &DailyStats{Data: counts, Period: p}, nil
}

// ClassTypeStat is one class type's share of scheduled classes.
type ClassTypeStat struct {
	ClassType   string  `json:"classType"`
	ClassName   string  `json:"className,omitempty"`
	Description string  `json:"description,omitempty"`
	Count       int     `json:"count"`
	Percentage  float64 `json:"percentage"`
}

// ClassTypeStats is the class-type breakdown with its total.
type ClassTypeStats struct {
	Data         []ClassTypeStat `json:"data"`
	TotalClasses int             `json:"totalClasses"`
	Period       Period          `json:"period"`
}

// ClassTypeStats breaks scheduled registrations down by class type, largest
// first, with each type's percentage to one decimal.
func (s *Service) ClassTypeStats(ctx context.Context, days int) (*ClassTypeStats, error) {
	p := s.period(days)
	counts, err := s.store.ClassTypeCounts(ctx, p.StartDate)
	if err != nil {
		return nil, fmt.Errorf("class type counts: %w", err)
	}

	total := 0
	for _, c := range counts {
		total += c.Count
	}

	stats := make([]ClassTypeStat, 0, len(counts))
	for _, c := range counts {
		st := ClassTypeStat{ClassType: c.ClassType, Count: c.Count}
		if ct, err := s.store.GetClassType(ctx, c.ClassType); err == nil {
			st.ClassName, st.Description = ct.Name, ct.Description
		} else if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("get class type: %w", err)
		}
		if total > 0 {
			st.Percentage = math.Round(float64(c.Count)*1000/float64(total)) / 10
		}
		stats = append(stats, st)
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })

	return &ClassTypeStats{Data: stats, TotalClasses: total, Period: p}, nil
}

// DashboardSummary holds the headline counts.
type DashboardSummary struct {
	TotalClasses      int `json:"totalClasses"`
	ActiveStudents    int `json:"activeStudents"`
	ActiveInstructors int `json:"activeInstructors"`
}

// DashboardSummary counts scheduled classes and active people.
func (s *Service) DashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	_, total, err := s.store.ListRegistrations(ctx, RegistrationFilter{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	instructors, err := s.store.ListInstructors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	return &DashboardSummary{
		TotalClasses:      total,
		ActiveStudents:    len(students),
		ActiveInstructors: len(instructors),
	}, nil
}

// DashboardStats combines the daily series with the headline counts.
type DashboardStats struct {
	DailyStats []DailyCount     `json:"dailyStats"`
	Summary    DashboardSummary `json:"summary"`
	Period     Period           `json:"period"`
}

// DashboardStats returns the daily series for the last days plus the summary.
func (s *Service) DashboardStats(ctx context.Context, days int) (*DashboardStats, error) {
	daily, err := s.DailyClassStats(ctx, days)
	if err != nil {
		return nil, err
	}
	summary, err := s.DashboardSummary(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{DailyStats: daily.Data, Summary: *summary, Period: daily.Period}, nil
}
