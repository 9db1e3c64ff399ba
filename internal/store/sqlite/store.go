// Package sqlite implements core.Store on a single SQLite file through GORM.
// It suits local development and small single-instance deployments.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/JonMunkholm/classreg/internal/core"
)

// Store is a core.Store backed by GORM over SQLite.
type Store struct {
	db *gorm.DB
}

var _ core.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates the
// schema. A nil gormLogger logs only warnings and errors.
func Open(path string, gormLogger logger.Interface) (*Store, error) {
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(sqlite.Open(path+"?_journal_mode=WAL&_busy_timeout=5000"), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := db.AutoMigrate(
		&studentRow{},
		&instructorRow{},
		&classTypeRow{},
		&registrationRow{},
		&configRow{},
	); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Reset deletes every row of every table.
func (s *Store) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"registrations", "students", "instructors", "class_types", "app_config"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.ErrNotFound
	}
	return err
}

// ----------------------------------------------------------------------------
// Directory
// ----------------------------------------------------------------------------

func (s *Store) GetStudent(ctx context.Context, studentID string) (core.Student, error) {
	var row studentRow
	if err := s.db.WithContext(ctx).First(&row, "student_id = ?", studentID).Error; err != nil {
		return core.Student{}, notFound(err)
	}
	return row.toCore(), nil
}

func (s *Store) CreateStudent(ctx context.Context, st core.Student) error {
	row := toStudentRow(st)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) ListStudents(ctx context.Context) ([]core.Student, error) {
	var rows []studentRow
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.Student, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out, nil
}

func (s *Store) GetInstructor(ctx context.Context, instructorID string) (core.Instructor, error) {
	var row instructorRow
	if err := s.db.WithContext(ctx).First(&row, "instructor_id = ?", instructorID).Error; err != nil {
		return core.Instructor{}, notFound(err)
	}
	return row.toCore(), nil
}

func (s *Store) CreateInstructor(ctx context.Context, in core.Instructor) error {
	row := toInstructorRow(in)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) ListInstructors(ctx context.Context) ([]core.Instructor, error) {
	var rows []instructorRow
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.Instructor, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out, nil
}

func (s *Store) GetClassType(ctx context.Context, classID string) (core.ClassType, error) {
	var row classTypeRow
	if err := s.db.WithContext(ctx).First(&row, "class_id = ?", classID).Error; err != nil {
		return core.ClassType{}, notFound(err)
	}
	return row.toCore(), nil
}

func (s *Store) CreateClassType(ctx context.Context, ct core.ClassType) error {
	row := toClassTypeRow(ct)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) ListClassTypes(ctx context.Context) ([]core.ClassType, error) {
	var rows []classTypeRow
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.ClassType, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// Registrations
// ----------------------------------------------------------------------------

func (s *Store) GetRegistration(ctx context.Context, id string) (core.Registration, error) {
	var row registrationRow
	if err := s.db.WithContext(ctx).First(&row, "registration_id = ?", id).Error; err != nil {
		return core.Registration{}, notFound(err)
	}
	return row.toCore(), nil
}

func (s *Store) CreateRegistration(ctx context.Context, r core.Registration) error {
	row := toRegistrationRow(r)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) UpdateRegistration(ctx context.Context, r core.Registration) error {
	row := toRegistrationRow(r)
	res := s.db.WithContext(ctx).Model(&registrationRow{}).
		Where("registration_id = ?", r.RegistrationID).
		Select("*").Omit("registration_id", "created_at").
		Updates(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRegistration(ctx context.Context, id string) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&registrationRow{}, "registration_id = ?", id)
	return res.RowsAffected, res.Error
}

func (s *Store) scheduled(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&registrationRow{}).Where("status = ?", string(core.StatusScheduled))
}

func (s *Store) FindOverlapping(ctx context.Context, studentID, instructorID string, start, end time.Time) ([]core.Registration, error) {
	var rows []registrationRow
	err := s.scheduled(ctx).
		Where("(student_id = ? OR instructor_id = ?)", studentID, instructorID).
		Where("start_time < ? AND end_time > ?", unix(end), unix(start)).
		Order("start_time").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return registrations(rows), nil
}

func (s *Store) countScheduled(ctx context.Context, column, value string, from, to time.Time) (int, error) {
	var n int64
	err := s.scheduled(ctx).
		Where(column+" = ?", value).
		Where("start_time >= ? AND start_time < ?", unix(from), unix(to)).
		Count(&n).Error
	return int(n), err
}

func (s *Store) CountStudentScheduled(ctx context.Context, studentID string, from, to time.Time) (int, error) {
	return s.countScheduled(ctx, "student_id", studentID, from, to)
}

func (s *Store) CountInstructorScheduled(ctx context.Context, instructorID string, from, to time.Time) (int, error) {
	return s.countScheduled(ctx, "instructor_id", instructorID, from, to)
}

func (s *Store) CountClassTypeScheduled(ctx context.Context, classType string, from, to time.Time) (int, error) {
	return s.countScheduled(ctx, "class_type", classType, from, to)
}

func (s *Store) ListRegistrations(ctx context.Context, f core.RegistrationFilter) ([]core.Registration, int, error) {
	q := s.scheduled(ctx)
	if f.StudentID != "" {
		q = q.Where("student_id = ?", f.StudentID)
	}
	if f.InstructorID != "" {
		q = q.Where("instructor_id = ?", f.InstructorID)
	}
	if f.ClassType != "" {
		q = q.Where("class_type = ?", f.ClassType)
	}
	if !f.From.IsZero() {
		q = q.Where("start_time >= ?", unix(f.From))
	}
	if !f.To.IsZero() {
		q = q.Where("start_time < ?", unix(f.To))
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := q.Order("start_time DESC").Offset(f.Offset)
	if f.Limit > 0 {
		page = page.Limit(f.Limit)
	}
	var rows []registrationRow
	if err := page.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return registrations(rows), int(total), nil
}

// DailyCounts buckets in Go so days follow loc rather than SQLite's zone.
func (s *Store) DailyCounts(ctx context.Context, since time.Time, loc *time.Location) ([]core.DailyCount, error) {
	var starts []int64
	if err := s.scheduled(ctx).Where("start_time >= ?", unix(since)).Pluck("start_time", &starts).Error; err != nil {
		return nil, err
	}

	byDay := make(map[string]int)
	for _, sec := range starts {
		byDay[time.Unix(sec, 0).In(loc).Format(time.DateOnly)]++
	}

	out := make([]core.DailyCount, 0, len(byDay))
	for day, n := range byDay {
		out = append(out, core.DailyCount{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) ClassTypeCounts(ctx context.Context, since time.Time) ([]core.ClassTypeCount, error) {
	var out []core.ClassTypeCount
	err := s.scheduled(ctx).
		Select("class_type, COUNT(*) AS count").
		Where("start_time >= ?", unix(since)).
		Group("class_type").
		Order("count DESC, class_type").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func registrations(rows []registrationRow) []core.Registration {
	out := make([]core.Registration, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out
}

// ----------------------------------------------------------------------------
// Config
// ----------------------------------------------------------------------------

func (s *Store) ListConfig(ctx context.Context) ([]core.ConfigEntry, error) {
	var rows []configRow
	if err := s.db.WithContext(ctx).Order("`key`").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.ConfigEntry, len(rows))
	for i, r := range rows {
		out[i] = r.toCore()
	}
	return out, nil
}

func (s *Store) SetConfig(ctx context.Context, e core.ConfigEntry) error {
	row := configRow{
		Key:         e.Key,
		Value:       datatypes.JSON(e.Value),
		Description: e.Description,
		DataType:    string(e.DataType),
		Updated:     unix(e.UpdatedAt),
	}

	update := []string{"value", "data_type", "updated_at"}
	if e.Description != "" {
		update = append(update, "description")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns(update),
	}).Create(&row).Error
}

func (s *Store) DeleteConfig(ctx context.Context, key string) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&configRow{}, "`key` = ?", key)
	return res.RowsAffected, res.Error
}
