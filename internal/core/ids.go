package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRegistrationID returns "REG" followed by the millisecond timestamp and a
// short random suffix, upper-cased. Collisions are not checked.
func NewRegistrationID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
	return strings.ToUpper("REG" + strconv.FormatInt(now.UnixMilli(), 10) + suffix)
}
