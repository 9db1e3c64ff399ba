package sqlite

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/JonMunkholm/classreg/internal/core"
)

// Times are stored as unix seconds so range queries compare integers.

type studentRow struct {
	StudentID string `gorm:"primaryKey;column:student_id"`
	Name      string `gorm:"not null;index"`
	Email     string `gorm:"not null"`
	Phone     string
	IsActive  bool  `gorm:"not null"`
	Created   int64 `gorm:"column:created_at"`
}

func (studentRow) TableName() string { return "students" }

type instructorRow struct {
	InstructorID   string `gorm:"primaryKey;column:instructor_id"`
	Name           string `gorm:"not null;index"`
	Email          string `gorm:"not null"`
	Phone          string
	Specialization string
	IsActive       bool  `gorm:"not null"`
	Created        int64 `gorm:"column:created_at"`
}

func (instructorRow) TableName() string { return "instructors" }

type classTypeRow struct {
	ClassID     string `gorm:"primaryKey;column:class_id"`
	Name        string `gorm:"not null;index"`
	Description string
	Duration    int   `gorm:"not null;default:45"`
	MaxCapacity int   `gorm:"not null;default:1"`
	IsActive    bool  `gorm:"not null"`
	Created     int64 `gorm:"column:created_at"`
}

func (classTypeRow) TableName() string { return "class_types" }

type registrationRow struct {
	RegistrationID string `gorm:"primaryKey;column:registration_id"`
	StudentID      string `gorm:"not null;index:idx_reg_student_start,priority:1"`
	InstructorID   string `gorm:"not null;index:idx_reg_instructor_start,priority:1"`
	ClassType      string `gorm:"not null;index:idx_reg_class_type_start,priority:1"`
	StartTime      int64  `gorm:"not null;index:idx_reg_student_start,priority:2;index:idx_reg_instructor_start,priority:2;index:idx_reg_class_type_start,priority:2"`
	EndTime        int64  `gorm:"not null"`
	Status         string `gorm:"not null;default:scheduled"`
	Action         string `gorm:"not null;default:new"`
	Processed      bool
	ErrorMessage   string
	Created        int64 `gorm:"column:created_at"`
	Updated        int64 `gorm:"column:updated_at"`
}

func (registrationRow) TableName() string { return "registrations" }

type configRow struct {
	Key         string         `gorm:"primaryKey"`
	Value       datatypes.JSON `gorm:"not null"`
	Description string
	DataType    string `gorm:"not null;default:string"`
	Updated     int64  `gorm:"column:updated_at"`
}

func (configRow) TableName() string { return "app_config" }

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func toStudentRow(s core.Student) studentRow {
	return studentRow{
		StudentID: s.StudentID,
		Name:      s.Name,
		Email:     s.Email,
		Phone:     s.Phone,
		IsActive:  s.IsActive,
		Created:   unix(s.CreatedAt),
	}
}

func (r studentRow) toCore() core.Student {
	return core.Student{
		StudentID: r.StudentID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		IsActive:  r.IsActive,
		CreatedAt: fromUnix(r.Created),
	}
}

func toInstructorRow(in core.Instructor) instructorRow {
	return instructorRow{
		InstructorID:   in.InstructorID,
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		Specialization: in.Specialization,
		IsActive:       in.IsActive,
		Created:        unix(in.CreatedAt),
	}
}

func (r instructorRow) toCore() core.Instructor {
	return core.Instructor{
		InstructorID:   r.InstructorID,
		Name:           r.Name,
		Email:          r.Email,
		Phone:          r.Phone,
		Specialization: r.Specialization,
		IsActive:       r.IsActive,
		CreatedAt:      fromUnix(r.Created),
	}
}

func toClassTypeRow(ct core.ClassType) classTypeRow {
	return classTypeRow{
		ClassID:     ct.ClassID,
		Name:        ct.Name,
		Description: ct.Description,
		Duration:    ct.Duration,
		MaxCapacity: ct.MaxCapacity,
		IsActive:    ct.IsActive,
		Created:     unix(ct.CreatedAt),
	}
}

func (r classTypeRow) toCore() core.ClassType {
	return core.ClassType{
		ClassID:     r.ClassID,
		Name:        r.Name,
		Description: r.Description,
		Duration:    r.Duration,
		MaxCapacity: r.MaxCapacity,
		IsActive:    r.IsActive,
		CreatedAt:   fromUnix(r.Created),
	}
}

func toRegistrationRow(r core.Registration) registrationRow {
	return registrationRow{
		RegistrationID: r.RegistrationID,
		StudentID:      r.StudentID,
		InstructorID:   r.InstructorID,
		ClassType:      r.ClassType,
		StartTime:      unix(r.StartTime),
		EndTime:        unix(r.EndTime),
		Status:         string(r.Status),
		Action:         string(r.Action),
		Processed:      r.Processed,
		ErrorMessage:   r.ErrorMessage,
		Created:        unix(r.CreatedAt),
		Updated:        unix(r.UpdatedAt),
	}
}

func (r registrationRow) toCore() core.Registration {
	return core.Registration{
		RegistrationID: r.RegistrationID,
		StudentID:      r.StudentID,
		InstructorID:   r.InstructorID,
		ClassType:      r.ClassType,
		StartTime:      fromUnix(r.StartTime),
		EndTime:        fromUnix(r.EndTime),
		Status:         core.Status(r.Status),
		Action:         core.Action(r.Action),
		Processed:      r.Processed,
		ErrorMessage:   r.ErrorMessage,
		CreatedAt:      fromUnix(r.Created),
		UpdatedAt:      fromUnix(r.Updated),
	}
}

func (r configRow) toCore() core.ConfigEntry {
	return core.ConfigEntry{
		Key:         r.Key,
		Value:       json.RawMessage(r.Value),
		Description: r.Description,
		DataType:    core.DataType(r.DataType),
		UpdatedAt:   fromUnix(r.Updated),
	}
}
