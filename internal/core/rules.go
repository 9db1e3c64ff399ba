package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Config keys that may be overridden through the config store.
const (
	KeyClassDuration              = "CLASS_DURATION"
	KeyMaxStudentClassesPerDay    = "MAX_STUDENT_CLASSES_PER_DAY"
	KeyMaxInstructorClassesPerDay = "MAX_INSTRUCTOR_CLASSES_PER_DAY"
	KeyMaxClassesPerType          = "MAX_CLASSES_PER_TYPE"
)

// RuleKeys lists the writable business-rule keys in display order.
var RuleKeys = []string{
	KeyClassDuration,
	KeyMaxStudentClassesPerDay,
	KeyMaxInstructorClassesPerDay,
	KeyMaxClassesPerType,
}

// IsRuleKey reports whether key names a writable business rule.
func IsRuleKey(key string) bool {
	for _, k := range RuleKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Rules is the immutable business-rule snapshot handed to the validator and
// processor for one batch or request.
type Rules struct {
	ClassDuration       time.Duration
	MaxStudentPerDay    int
	MaxInstructorPerDay int
	MaxPerClassType     int // 0 disables the class-type check
	Location            *time.Location
}

// DefaultRules returns the built-in defaults in the server's local zone.
func DefaultRules() Rules {
	return Rules{
		ClassDuration:       45 * time.Minute,
		MaxStudentPerDay:    3,
		MaxInstructorPerDay: 5,
		MaxPerClassType:     10,
		Location:            time.Local,
	}
}

// EndTime returns start plus the class duration.
func (r Rules) EndTime(start time.Time) time.Time {
	return start.Add(r.ClassDuration)
}

// DayBounds returns the local midnight that starts t's calendar day and the
// following midnight.
func (r Rules) DayBounds(t time.Time) (time.Time, time.Time) {
	loc := r.location()
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func (r Rules) location() *time.Location {
	if r.Location == nil {
		return time.Local
	}
	return r.Location
}

// Values returns the rules keyed by config key, durations in minutes.
func (r Rules) Values() map[string]int {
	return map[string]int{
		KeyClassDuration:              int(r.ClassDuration / time.Minute),
		KeyMaxStudentClassesPerDay:    r.MaxStudentPerDay,
		KeyMaxInstructorClassesPerDay: r.MaxInstructorPerDay,
		KeyMaxClassesPerType:          r.MaxPerClassType,
	}
}

// ApplyEntries overlays stored config entries on base. Unknown keys are
// ignored. Values that do not parse, or non-positive values for keys that
// must be positive, keep the base value and are logged.
func (r Rules) ApplyEntries(entries []ConfigEntry, logger *slog.Logger) Rules {
	out := r
	for _, e := range entries {
		if !IsRuleKey(e.Key) {
			continue
		}
		n, err := ParseRuleValue(e.Value)
		if err != nil {
			logger.Warn("ignoring config override", "key", e.Key, "error", err)
			continue
		}

		switch e.Key {
		case KeyClassDuration:
			if n <= 0 {
				logger.Warn("ignoring non-positive config override", "key", e.Key, "value", n)
				continue
			}
			out.ClassDuration = time.Duration(n) * time.Minute
		case KeyMaxStudentClassesPerDay:
			if n <= 0 {
				logger.Warn("ignoring non-positive config override", "key", e.Key, "value", n)
				continue
			}
			out.MaxStudentPerDay = n
		case KeyMaxInstructorClassesPerDay:
			if n <= 0 {
				logger.Warn("ignoring non-positive config override", "key", e.Key, "value", n)
				continue
			}
			out.MaxInstructorPerDay = n
		case KeyMaxClassesPerType:
			if n < 0 {
				n = 0
			}
			out.MaxPerClassType = n
		}
	}
	return out
}

// ParseRuleValue reads an integer from a JSON config value. Numbers and
// numeric strings ("45") are accepted; fractional parts are truncated.
func ParseRuleValue(raw []byte) (int, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}

	switch x := v.(type) {
	case float64:
		return int(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", x)
		}
		return int(f), nil
	default:
		return 0, fmt.Errorf("invalid number: unsupported %T value", v)
	}
}
