// Package postgres implements core.Store on PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/classreg/internal/config"
	"github.com/JonMunkholm/classreg/internal/core"
)

// Store is a core.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// Open connects a pool sized from cfg and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Reset truncates every table.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE registrations, students, instructors, class_types, app_config`)
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

// ----------------------------------------------------------------------------
// Directory
// ----------------------------------------------------------------------------

const studentColumns = `student_id, name, email, phone, is_active, created_at`

func scanStudent(row pgx.Row) (core.Student, error) {
	var (
		st    core.Student
		phone pgtype.Text
	)
	if err := row.Scan(&st.StudentID, &st.Name, &st.Email, &phone, &st.IsActive, &st.CreatedAt); err != nil {
		return core.Student{}, err
	}
	st.Phone = fromPgText(phone)
	return st, nil
}

func (s *Store) GetStudent(ctx context.Context, studentID string) (core.Student, error) {
	st, err := scanStudent(s.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE student_id = $1`, studentID))
	return st, notFound(err)
}

func (s *Store) CreateStudent(ctx context.Context, st core.Student) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO students (`+studentColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		st.StudentID, st.Name, st.Email, toPgText(st.Phone), st.IsActive, st.CreatedAt)
	return err
}

func (s *Store) ListStudents(ctx context.Context) ([]core.Student, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+studentColumns+` FROM students WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.Student, 0)
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

const instructorColumns = `instructor_id, name, email, phone, specialization, is_active, created_at`

func scanInstructor(row pgx.Row) (core.Instructor, error) {
	var (
		in                    core.Instructor
		phone, specialization pgtype.Text
	)
	if err := row.Scan(&in.InstructorID, &in.Name, &in.Email, &phone, &specialization, &in.IsActive, &in.CreatedAt); err != nil {
		return core.Instructor{}, err
	}
	in.Phone = fromPgText(phone)
	in.Specialization = fromPgText(specialization)
	return in, nil
}

func (s *Store) GetInstructor(ctx context.Context, instructorID string) (core.Instructor, error) {
	in, err := scanInstructor(s.pool.QueryRow(ctx,
		`SELECT `+instructorColumns+` FROM instructors WHERE instructor_id = $1`, instructorID))
	return in, notFound(err)
}

func (s *Store) CreateInstructor(ctx context.Context, in core.Instructor) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO instructors (`+instructorColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		in.InstructorID, in.Name, in.Email, toPgText(in.Phone), toPgText(in.Specialization), in.IsActive, in.CreatedAt)
	return err
}

func (s *Store) ListInstructors(ctx context.Context) ([]core.Instructor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+instructorColumns+` FROM instructors WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.Instructor, 0)
	for rows.Next() {
		in, err := scanInstructor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

const classTypeColumns = `class_id, name, description, duration, max_capacity, is_active, created_at`

func scanClassType(row pgx.Row) (core.ClassType, error) {
	var (
		ct   core.ClassType
		desc pgtype.Text
	)
	if err := row.Scan(&ct.ClassID, &ct.Name, &desc, &ct.Duration, &ct.MaxCapacity, &ct.IsActive, &ct.CreatedAt); err != nil {
		return core.ClassType{}, err
	}
	ct.Description = fromPgText(desc)
	return ct, nil
}

func (s *Store) GetClassType(ctx context.Context, classID string) (core.ClassType, error) {
	ct, err := scanClassType(s.pool.QueryRow(ctx,
		`SELECT `+classTypeColumns+` FROM class_types WHERE class_id = $1`, classID))
	return ct, notFound(err)
}

func (s *Store) CreateClassType(ctx context.Context, ct core.ClassType) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO class_types (`+classTypeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ct.ClassID, ct.Name, toPgText(ct.Description), ct.Duration, ct.MaxCapacity, ct.IsActive, ct.CreatedAt)
	return err
}

func (s *Store) ListClassTypes(ctx context.Context) ([]core.ClassType, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+classTypeColumns+` FROM class_types WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.ClassType, 0)
	for rows.Next() {
		ct, err := scanClassType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// ----------------------------------------------------------------------------
// Registrations
// ----------------------------------------------------------------------------

const registrationColumns = `registration_id, student_id, instructor_id, class_type, start_time, end_time,
	status, action, processed, error_message, created_at, updated_at`

func scanRegistration(row pgx.Row) (core.Registration, error) {
	var (
		r              core.Registration
		status, action string
		errMsg         pgtype.Text
	)
	err := row.Scan(
		&r.RegistrationID, &r.StudentID, &r.InstructorID, &r.ClassType, &r.StartTime, &r.EndTime,
		&status, &action, &r.Processed, &errMsg, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return core.Registration{}, err
	}
	r.Status = core.Status(status)
	r.Action = core.Action(action)
	r.ErrorMessage = fromPgText(errMsg)
	return r, nil
}

func collectRegistrations(rows pgx.Rows) ([]core.Registration, error) {
	defer rows.Close()
	out := make([]core.Registration, 0)
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRegistration(ctx context.Context, id string) (core.Registration, error) {
	r, err := scanRegistration(s.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE registration_id = $1`, id))
	return r, notFound(err)
}

func (s *Store) CreateRegistration(ctx context.Context, r core.Registration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.RegistrationID, r.StudentID, r.InstructorID, r.ClassType, r.StartTime, r.EndTime,
		string(r.Status), string(r.Action), r.Processed, toPgText(r.ErrorMessage), r.CreatedAt, r.UpdatedAt)
	return err
}

func (s *Store) UpdateRegistration(ctx context.Context, r core.Registration) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE registrations SET student_id = $2, instructor_id = $3, class_type = $4,
			start_time = $5, end_time = $6, status = $7, action = $8, processed = $9,
			error_message = $10, updated_at = $11
		WHERE registration_id = $1`,
		r.RegistrationID, r.StudentID, r.InstructorID, r.ClassType, r.StartTime, r.EndTime,
		string(r.Status), string(r.Action), r.Processed, toPgText(r.ErrorMessage), r.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRegistration(ctx context.Context, id string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM registrations WHERE registration_id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) FindOverlapping(ctx context.Context, studentID, instructorID string, start, end time.Time) ([]core.Registration, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		WHERE status = 'scheduled'
			AND (student_id = $1 OR instructor_id = $2)
			AND start_time < $4 AND end_time > $3
		ORDER BY start_time`,
		studentID, instructorID, start, end)
	if err != nil {
		return nil, err
	}
	return collectRegistrations(rows)
}

func (s *Store) countScheduled(ctx context.Context, column, value string, from, to time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations
		WHERE status = 'scheduled' AND `+column+` = $1 AND start_time >= $2 AND start_time < $3`,
		value, from, to).Scan(&n)
	return n, err
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
	wb := newWhereBuilder()
	wb.add("status", string(core.StatusScheduled))
	wb.add("student_id", f.StudentID)
	wb.add("instructor_id", f.InstructorID)
	wb.add("class_type", f.ClassType)
	wb.addRange("start_time", f.From, f.To)
	whereClause, args := wb.build()

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + registrationColumns + ` FROM registrations` + whereClause +
		fmt.Sprintf(" ORDER BY start_time DESC LIMIT $%d OFFSET $%d", wb.nextArgIndex(), wb.nextArgIndex()+1)
	limit := f.Limit
	if limit <= 0 {
		limit = total
	}
	args = append(args, limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	regs, err := collectRegistrations(rows)
	if err != nil {
		return nil, 0, err
	}
	return regs, total, nil
}

// DailyCounts buckets by calendar day in loc. Bucketing happens here rather
// than in SQL because loc may be time.Local, which has no zone name.
func (s *Store) DailyCounts(ctx context.Context, since time.Time, loc *time.Location) ([]core.DailyCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT start_time FROM registrations WHERE status = 'scheduled' AND start_time >= $1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDay := make(map[string]int)
	for rows.Next() {
		var start time.Time
		if err := rows.Scan(&start); err != nil {
			return nil, err
		}
		byDay[start.In(loc).Format(time.DateOnly)]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]core.DailyCount, 0, len(byDay))
	for day, n := range byDay {
		out = append(out, core.DailyCount{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) ClassTypeCounts(ctx context.Context, since time.Time) ([]core.ClassTypeCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT class_type, COUNT(*) FROM registrations
		WHERE status = 'scheduled' AND start_time >= $1
		GROUP BY class_type ORDER BY COUNT(*) DESC, class_type`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.ClassTypeCount, 0)
	for rows.Next() {
		var c core.ClassTypeCount
		if err := rows.Scan(&c.ClassType, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ----------------------------------------------------------------------------
// Config
// ----------------------------------------------------------------------------

func (s *Store) ListConfig(ctx context.Context) ([]core.ConfigEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value::text, description, data_type, updated_at FROM app_config ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.ConfigEntry, 0)
	for rows.Next() {
		var (
			e     core.ConfigEntry
			value string
			desc  pgtype.Text
			dt    string
		)
		if err := rows.Scan(&e.Key, &value, &desc, &dt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Value = json.RawMessage(value)
		e.Description = fromPgText(desc)
		e.DataType = core.DataType(dt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) SetConfig(ctx context.Context, e core.ConfigEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO app_config (key, value, description, data_type, updated_at)
		VALUES ($1, $2::jsonb, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			description = COALESCE(EXCLUDED.description, app_config.description),
			data_type = EXCLUDED.data_type,
			updated_at = EXCLUDED.updated_at`,
		e.Key, string(e.Value), toPgText(e.Description), string(e.DataType), e.UpdatedAt)
	return err
}

func (s *Store) DeleteConfig(ctx context.Context, key string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM app_config WHERE key = $1`, key)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
