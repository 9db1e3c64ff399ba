package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a keyed lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// DirectoryStore holds the reference entities.
type DirectoryStore interface {
	GetStudent(ctx context.Context, studentID string) (Student, error)
	CreateStudent(ctx context.Context, s Student) error
	ListStudents(ctx context.Context) ([]Student, error)

	GetInstructor(ctx context.Context, instructorID string) (Instructor, error)
	CreateInstructor(ctx context.Context, i Instructor) error
	ListInstructors(ctx context.Context) ([]Instructor, error)

	GetClassType(ctx context.Context, classID string) (ClassType, error)
	CreateClassType(ctx context.Context, c ClassType) error
	ListClassTypes(ctx context.Context) ([]ClassType, error)
}

// RegistrationStore persists registrations and answers the queries the
// validator needs. Listings only return active reference entities; the
// registration queries below only consider StatusScheduled rows.
type RegistrationStore interface {
	GetRegistration(ctx context.Context, id string) (Registration, error)
	CreateRegistration(ctx context.Context, r Registration) error
	// UpdateRegistration replaces the stored row with r, returning
	// ErrNotFound when no row has r.RegistrationID.
	UpdateRegistration(ctx context.Context, r Registration) error
	// DeleteRegistration removes the row and reports how many rows went away.
	DeleteRegistration(ctx context.Context, id string) (int64, error)

	// FindOverlapping returns scheduled registrations of studentID or
	// instructorID whose interval intersects [start, end), ordered by start.
	FindOverlapping(ctx context.Context, studentID, instructorID string, start, end time.Time) ([]Registration, error)

	CountStudentScheduled(ctx context.Context, studentID string, from, to time.Time) (int, error)
	CountInstructorScheduled(ctx context.Context, instructorID string, from, to time.Time) (int, error)
	CountClassTypeScheduled(ctx context.Context, classType string, from, to time.Time) (int, error)

	// ListRegistrations returns one page of scheduled registrations, newest
	// start first, plus the total matching count.
	ListRegistrations(ctx context.Context, f RegistrationFilter) ([]Registration, int, error)

	DailyCounts(ctx context.Context, since time.Time, loc *time.Location) ([]DailyCount, error)
	ClassTypeCounts(ctx context.Context, since time.Time) ([]ClassTypeCount, error)
}

// ConfigStore is the key/value collaborator for business-rule overrides.
type ConfigStore interface {
	ListConfig(ctx context.Context) ([]ConfigEntry, error)
	// SetConfig upserts e by key. An empty Description keeps the stored one.
	SetConfig(ctx context.Context, e ConfigEntry) error
	DeleteConfig(ctx context.Context, key string) (int64, error)
}

// Store is the full record store used by the service.
type Store interface {
	DirectoryStore
	RegistrationStore
	ConfigStore

	Ping(ctx context.Context) error
	// Reset removes every record. Used by the seed tool.
	Reset(ctx context.Context) error
	Close() error
}
