package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name: "nil error returns empty",
		},
		{
			name:        "overlap keeps row message",
			err:         errOverlap("student"),
			wantCode:    "REG006",
			wantMessage: "student has an overlapping class scheduled",
		},
		{
			name:        "wrapped quota error",
			err:         fmt.Errorf("line 4: %w", errStudentQuota(3)),
			wantCode:    "REG007",
			wantMessage: "Student daily limit exceeded (max: 3)",
		},
		{
			name:        "class type capacity",
			err:         errClassTypeCapacity(10),
			wantCode:    "REG009",
			wantMessage: "Class type daily capacity exceeded (max: 10)",
		},
		{
			name:        "not found",
			err:         errNotFound("registration", "REG1"),
			wantCode:    "REG005",
			wantMessage: "Registration with ID REG1 not found",
		},
		{
			name:        "malformed batch",
			err:         &MalformedBatchError{Line: 3, Err: errors.New(`bare " in non-quoted field`)},
			wantCode:    "FILE002",
			wantMessage: "File is not a valid CSV",
		},
		{
			name:        "limiter busy",
			err:         fmt.Errorf("acquire: %w", ErrTooManyUploads),
			wantCode:    "UPL002",
			wantMessage: "System is busy processing other imports",
		},
		{
			name:        "duplicate key pattern",
			err:         errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:        "connection refused",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB003",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "deadline",
			err:         fmt.Errorf("query: %w", context.DeadlineExceeded),
			wantCode:    "UPL003",
			wantMessage: "Request timed out",
		},
		{
			name:        "config key",
			err:         fmt.Errorf("%w: UI_THEME", ErrConfigKeyNotAllowed),
			wantCode:    "CFG001",
			wantMessage: "Configuration key is not allowed to be updated via API",
		},
		{
			name:        "no file",
			err:         ErrNoFile,
			wantCode:    "FILE003",
			wantMessage: "No CSV file uploaded",
		},
		{
			name:        "internal row error falls back",
			err:         &RowError{Kind: KindInternal, Msg: "boom"},
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestRowError_IsKind(t *testing.T) {
	err := fmt.Errorf("row 2: %w", errNotFound("instructor", "2999"))

	if !errors.Is(err, KindNotFound) {
		t.Error("errors.Is(err, KindNotFound) = false")
	}
	if errors.Is(err, KindOverlap) {
		t.Error("errors.Is(err, KindOverlap) = true")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("not-found row error should unwrap to ErrNotFound")
	}
	if got := KindOf(err); got != KindNotFound {
		t.Errorf("KindOf() = %q, want %q", got, KindNotFound)
	}
	if got := KindOf(errors.New("x")); got != KindInternal {
		t.Errorf("KindOf(plain) = %q, want %q", got, KindInternal)
	}
}
