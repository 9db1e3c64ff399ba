package core

import (
	"strings"
	"time"
)

// Action is the per-row operation of a batch.
type Action string

const (
	ActionNew    Action = "new"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction reads an action tag case-insensitively. An empty tag yields a
// missing-action error; anything other than new/update/delete is invalid.
func ParseAction(raw string) (Action, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errMissingAction()
	}
	switch a := Action(strings.ToLower(trimmed)); a {
	case ActionNew, ActionUpdate, ActionDelete:
		return a, nil
	}
	return "", errInvalidAction(raw)
}

// nullSentinel is the literal cell value meaning "no value supplied".
const nullSentinel = "null"

// Field is an optional cell value. A field is unset when its column is
// absent, its cell is empty, or its cell holds the literal "null".
type Field struct {
	Value string
	Set   bool
}

// FieldOf builds a Field from a raw cell.
func FieldOf(raw string, present bool) Field {
	v := strings.TrimSpace(raw)
	if !present || v == "" || v == nullSentinel {
		return Field{}
	}
	return Field{Value: v, Set: true}
}

// Or returns the field value, or fallback when unset.
func (f Field) Or(fallback string) string {
	if f.Set {
		return f.Value
	}
	return fallback
}

// RowInput is a batch row with every cell lifted into a Field.
type RowInput struct {
	RegistrationID Field
	StudentID      Field
	InstructorID   Field
	ClassID        Field
	StartTime      Field
	Action         string // raw, parsed by ParseAction
}

// InputOf extracts the registration columns of row.
func InputOf(row Row) RowInput {
	field := func(col string) Field {
		v, ok := row.Get(col)
		return FieldOf(v, ok)
	}
	action, _ := row.Get(ColAction)
	return RowInput{
		RegistrationID: field(ColRegistrationID),
		StudentID:      field(ColStudentID),
		InstructorID:   field(ColInstructorID),
		ClassID:        field(ColClassID),
		StartTime:      field(ColStartTime),
		Action:         action,
	}
}

// StartTimeLayout is the fixed "MM/DD/YYYY HH:mm" batch date format. Single
// digit months, days and hours are accepted.
const StartTimeLayout = "1/2/2006 15:04"

// ParseStartTime parses a batch start time in loc.
func ParseStartTime(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(StartTimeLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, errInvalidDate(raw, err)
	}
	return t, nil
}
