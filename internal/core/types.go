package core

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a registration.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
)

// Student is a learner, keyed by a business identifier.
type Student struct {
	StudentID string    `json:"studentId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Instructor teaches classes. Specialization is free text.
type Instructor struct {
	InstructorID   string    `json:"instructorId"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ClassType describes a kind of class (theory, highway driving, ...).
type ClassType struct {
	ClassID     string    `json:"classId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Duration    int       `json:"duration"`    // minutes
	MaxCapacity int       `json:"maxCapacity"` // informational
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Registration books one student with one instructor for one class type
// over the half-open interval [StartTime, EndTime).
type Registration struct {
	RegistrationID string    `json:"registrationId"`
	StudentID      string    `json:"studentId"`
	InstructorID   string    `json:"instructorId"`
	ClassType      string    `json:"classType"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	Status         Status    `json:"status"`
	Action         Action    `json:"action"`
	Processed      bool      `json:"processed"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Overlaps reports whether r intersects [start, end) under half-open semantics.
func (r Registration) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}

// DataType tags the shape of a config value.
type DataType string

const (
	DataTypeNumber  DataType = "number"
	DataTypeString  DataType = "string"
	DataTypeBoolean DataType = "boolean"
	DataTypeArray   DataType = "array"
	DataTypeObject  DataType = "object"
)

// Valid reports whether d is one of the known data types.
func (d DataType) Valid() bool {
	switch d {
	case DataTypeNumber, DataTypeString, DataTypeBoolean, DataTypeArray, DataTypeObject:
		return true
	}
	return false
}

// ConfigEntry is a stored business-rule override. Value holds raw JSON.
type ConfigEntry struct {
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description,omitempty"`
	DataType    DataType        `json:"dataType"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// RegistrationFilter narrows registration listings. Zero values mean "any".
type RegistrationFilter struct {
	From         time.Time // inclusive
	To           time.Time // exclusive
	StudentID    string
	InstructorID string
	ClassType    string
	Limit        int
	Offset       int
}

// DailyCount is the number of scheduled registrations starting on Date (YYYY-MM-DD).
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ClassTypeCount is the number of scheduled registrations for one class type.
type ClassTypeCount struct {
	ClassType string `json:"classType"`
	Count     int    `json:"count"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination computes the page count for total items.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
