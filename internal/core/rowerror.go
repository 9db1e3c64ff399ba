package core

import (
	"errors"
	"fmt"
)

// Kind classifies a row failure. Kinds are errors themselves so callers can
// test with errors.Is(err, KindOverlap).
type Kind string

const (
	KindMissingAction     Kind = "missing_action"
	KindInvalidAction     Kind = "invalid_action"
	KindIncompleteRow     Kind = "incomplete_row"
	KindInvalidDate       Kind = "invalid_date"
	KindNotFound          Kind = "not_found"
	KindOverlap           Kind = "overlap"
	KindStudentQuota      Kind = "student_quota"
	KindInstructorQuota   Kind = "instructor_quota"
	KindClassTypeCapacity Kind = "class_type_capacity"
	KindMissingID         Kind = "missing_id"
	KindTimeout           Kind = "timeout"
	KindInternal          Kind = "internal"
)

func (k Kind) Error() string { return string(k) }

// RowError is a classified failure of a single batch row. Msg is shown to
// the caller verbatim.
type RowError struct {
	Kind      Kind
	Msg       string
	Entity    string // "student", "instructor", "class type", "registration"
	Limit     int    // violated quota, when Kind is a quota kind
	Retryable bool
	Err       error // underlying cause, if any
}

func (e *RowError) Error() string { return e.Msg }

func (e *RowError) Unwrap() error { return e.Err }

// Is matches a Kind target, so errors.Is(err, KindNotFound) works through wrapping.
func (e *RowError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the row error kind of err, or KindInternal when err is not
// a *RowError.
func KindOf(err error) Kind {
	var re *RowError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

func errMissingAction() *RowError {
	return &RowError{Kind: KindMissingAction, Msg: "Action is required"}
}

func errInvalidAction(raw string) *RowError {
	return &RowError{Kind: KindInvalidAction, Msg: fmt.Sprintf("Invalid action: %s", raw)}
}

func errIncompleteRow() *RowError {
	return &RowError{Kind: KindIncompleteRow, Msg: "All fields are required for new registration"}
}

func errInvalidDate(raw string, cause error) *RowError {
	return &RowError{
		Kind: KindInvalidDate,
		Msg:  "Invalid date format. Use MM/DD/YYYY HH:mm",
		Err:  fmt.Errorf("parse %q: %w", raw, cause),
	}
}

func errNotFound(entity, id string) *RowError {
	return &RowError{
		Kind:   KindNotFound,
		Msg:    fmt.Sprintf("%s with ID %s not found", capitalize(entity), id),
		Entity: entity,
		Err:    ErrNotFound,
	}
}

func errMissingID(a Action) *RowError {
	return &RowError{Kind: KindMissingID, Msg: fmt.Sprintf("Registration ID is required for %s", a)}
}

func errOverlap(entity string) *RowError {
	return &RowError{
		Kind:   KindOverlap,
		Msg:    fmt.Sprintf("%s has an overlapping class scheduled", entity),
		Entity: entity,
	}
}

func errStudentQuota(limit int) *RowError {
	return &RowError{
		Kind:   KindStudentQuota,
		Msg:    fmt.Sprintf("Student daily limit exceeded (max: %d)", limit),
		Entity: "student",
		Limit:  limit,
	}
}

func errInstructorQuota(limit int) *RowError {
	return &RowError{
		Kind:   KindInstructorQuota,
		Msg:    fmt.Sprintf("Instructor daily limit exceeded (max: %d)", limit),
		Entity: "instructor",
		Limit:  limit,
	}
}

func errClassTypeCapacity(limit int) *RowError {
	return &RowError{
		Kind:   KindClassTypeCapacity,
		Msg:    fmt.Sprintf("Class type daily capacity exceeded (max: %d)", limit),
		Entity: "class type",
		Limit:  limit,
	}
}

func errRowTimeout(cause error) *RowError {
	return &RowError{
		Kind:      KindTimeout,
		Msg:       "Row processing timed out, please retry",
		Retryable: true,
		Err:       cause,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}

// MalformedBatchError means the upload could not be decoded as CSV at all.
// No rows are processed when it is returned.
type MalformedBatchError struct {
	Line int // physical line in the file where decoding failed, 0 if unknown
	Err  error
}

func (e *MalformedBatchError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid csv at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("invalid csv: %v", e.Err)
}

func (e *MalformedBatchError) Unwrap() error { return e.Err }
