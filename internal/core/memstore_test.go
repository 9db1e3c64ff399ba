package core

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu          sync.Mutex
	students    map[string]Student
	instructors map[string]Instructor
	classTypes  map[string]ClassType
	regs        map[string]Registration
	config      map[string]ConfigEntry

	// beforeCount runs before each quota count, outside the store lock.
	beforeCount func(ctx context.Context) error
	// configErr fails ListConfig when set.
	configErr error
}

func newMemStore() *memStore {
	return &memStore{
		students:    map[string]Student{},
		instructors: map[string]Instructor{},
		classTypes:  map[string]ClassType{},
		regs:        map[string]Registration{},
		config:      map[string]ConfigEntry{},
	}
}

// seeded returns a store with instructors I1, I2, class types C1, C2 and
// student S1.
func seeded() *memStore {
	m := newMemStore()
	m.instructors["I1"] = Instructor{InstructorID: "I1", Name: "Ada", IsActive: true}
	m.instructors["I2"] = Instructor{InstructorID: "I2", Name: "Bo", IsActive: true}
	m.classTypes["C1"] = ClassType{ClassID: "C1", Name: "Theory", Duration: 45, IsActive: true}
	m.classTypes["C2"] = ClassType{ClassID: "C2", Name: "Highway", Duration: 45, IsActive: true}
	m.students["S1"] = Student{StudentID: "S1", Name: "Sam", IsActive: true}
	return m
}

func (m *memStore) GetStudent(_ context.Context, id string) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return Student{}, ErrNotFound
	}
	return s, nil
}

func (m *memStore) CreateStudent(_ context.Context, s Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[s.StudentID]; ok {
		return errDuplicate
	}
	m.students[s.StudentID] = s
	return nil
}

func (m *memStore) ListStudents(_ context.Context) ([]Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Student
	for _, s := range m.students {
		if s.IsActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) GetInstructor(_ context.Context, id string) (Instructor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.instructors[id]
	if !ok {
		return Instructor{}, ErrNotFound
	}
	return in, nil
}

func (m *memStore) CreateInstructor(_ context.Context, in Instructor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instructors[in.InstructorID] = in
	return nil
}

func (m *memStore) ListInstructors(_ context.Context) ([]Instructor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Instructor
	for _, in := range m.instructors {
		if in.IsActive {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) GetClassType(_ context.Context, id string) (ClassType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ct, ok := m.classTypes[id]
	if !ok {
		return ClassType{}, ErrNotFound
	}
	return ct, nil
}

func (m *memStore) CreateClassType(_ context.Context, ct ClassType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classTypes[ct.ClassID] = ct
	return nil
}

func (m *memStore) ListClassTypes(_ context.Context) ([]ClassType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ClassType
	for _, ct := range m.classTypes {
		if ct.IsActive {
			out = append(out, ct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) GetRegistration(_ context.Context, id string) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok {
		return Registration{}, ErrNotFound
	}
	return r, nil
}

func (m *memStore) CreateRegistration(_ context.Context, r Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[r.RegistrationID]; ok {
		return errDuplicate
	}
	m.regs[r.RegistrationID] = r
	return nil
}

func (m *memStore) UpdateRegistration(_ context.Context, r Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[r.RegistrationID]; !ok {
		return ErrNotFound
	}
	m.regs[r.RegistrationID] = r
	return nil
}

func (m *memStore) DeleteRegistration(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[id]; !ok {
		return 0, nil
	}
	delete(m.regs, id)
	return 1, nil
}

func (m *memStore) FindOverlapping(_ context.Context, studentID, instructorID string, start, end time.Time) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Registration
	for _, r := range m.regs {
		if r.Status != StatusScheduled || !r.Overlaps(start, end) {
			continue
		}
		if r.StudentID == studentID || r.InstructorID == instructorID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memStore) count(ctx context.Context, match func(Registration) bool, from, to time.Time) (int, error) {
	if m.beforeCount != nil {
		if err := m.beforeCount(ctx); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.regs {
		if r.Status == StatusScheduled && match(r) && !r.StartTime.Before(from) && r.StartTime.Before(to) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountStudentScheduled(ctx context.Context, id string, from, to time.Time) (int, error) {
	return m.count(ctx, func(r Registration) bool { return r.StudentID == id }, from, to)
}

func (m *memStore) CountInstructorScheduled(ctx context.Context, id string, from, to time.Time) (int, error) {
	return m.count(ctx, func(r Registration) bool { return r.InstructorID == id }, from, to)
}

func (m *memStore) CountClassTypeScheduled(ctx context.Context, id string, from, to time.Time) (int, error) {
	return m.count(ctx, func(r Registration) bool { return r.ClassType == id }, from, to)
}

func (m *memStore) ListRegistrations(_ context.Context, f RegistrationFilter) ([]Registration, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Registration
	for _, r := range m.regs {
		switch {
		case r.Status != StatusScheduled,
			!f.From.IsZero() && r.StartTime.Before(f.From),
			!f.To.IsZero() && !r.StartTime.Before(f.To),
			f.StudentID != "" && r.StudentID != f.StudentID,
			f.InstructorID != "" && r.InstructorID != f.InstructorID,
			f.ClassType != "" && r.ClassType != f.ClassType:
			continue
		}
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.After(all[j].StartTime) })

	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (m *memStore) DailyCounts(_ context.Context, since time.Time, loc *time.Location) ([]DailyCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDay := map[string]int{}
	for _, r := range m.regs {
		if r.Status == StatusScheduled && !r.StartTime.Before(since) {
			byDay[r.StartTime.In(loc).Format(time.DateOnly)]++
		}
	}
	out := make([]DailyCount, 0, len(byDay))
	for d, n := range byDay {
		out = append(out, DailyCount{Date: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *memStore) ClassTypeCounts(_ context.Context, since time.Time) ([]ClassTypeCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byType := map[string]int{}
	for _, r := range m.regs {
		if r.Status == StatusScheduled && !r.StartTime.Before(since) {
			byType[r.ClassType]++
		}
	}
	out := make([]ClassTypeCount, 0, len(byType))
	for ct, n := range byType {
		out = append(out, ClassTypeCount{ClassType: ct, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassType < out[j].ClassType })
	return out, nil
}

func (m *memStore) ListConfig(_ context.Context) ([]ConfigEntry, error) {
	if m.configErr != nil {
		return nil, m.configErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ConfigEntry, 0, len(m.config))
	for _, e := range m.config {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) SetConfig(_ context.Context, e ConfigEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.config[e.Key]; ok && e.Description == "" {
		e.Description = old.Description
	}
	m.config[e.Key] = e
	return nil
}

func (m *memStore) DeleteConfig(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.config[key]; !ok {
		return 0, nil
	}
	delete(m.config, key)
	return 1, nil
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students = map[string]Student{}
	m.instructors = map[string]Instructor{}
	m.classTypes = map[string]ClassType{}
	m.regs = map[string]Registration{}
	m.config = map[string]ConfigEntry{}
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) scheduled() []Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Registration
	for _, r := range m.regs {
		if r.Status == StatusScheduled {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

var errDuplicate = duplicateError{}

type duplicateError struct{}

func (duplicateError) Error() string { return "duplicate key value violates unique constraint" }

// at returns the given wall time on 2025-06-01 in UTC.
func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 1, hour, minute, 0, 0, time.UTC)
}

// testRules are the default limits in UTC.
func testRules() Rules {
	r := DefaultRules()
	r.Location = time.UTC
	return r
}

// seqIDs returns a NewID func yielding R1, R2, ...
func seqIDs() func(time.Time) string {
	var mu sync.Mutex
	n := 0
	return func(time.Time) string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "R" + strconv.Itoa(n)
	}
}
