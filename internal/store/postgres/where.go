package postgres

import (
	"fmt"
	"strings"
	"time"
)

// whereBuilder assembles a parameterized WHERE clause. Columns are trusted
// identifiers; values always travel as $n arguments.
type whereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{argIndex: 1}
}

// add appends "column = $n". Empty values are skipped.
func (wb *whereBuilder) add(column, value string) {
	if value == "" {
		return
	}
	wb.addCond(column+" = $%d", value)
}

// addRange appends a half-open [from, to) bound on column. Zero times are skipped.
func (wb *whereBuilder) addRange(column string, from, to time.Time) {
	if !from.IsZero() {
		wb.addCond(column+" >= $%d", from)
	}
	if !to.IsZero() {
		wb.addCond(column+" < $%d", to)
	}
}

// addCond appends a condition with one placeholder verb.
func (wb *whereBuilder) addCond(format string, value any) {
	wb.conditions = append(wb.conditions, fmt.Sprintf(format, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// nextArgIndex is the placeholder number of the next argument.
func (wb *whereBuilder) nextArgIndex() int {
	return wb.argIndex
}

// build returns " WHERE a AND b" and its args, or "" and nil.
func (wb *whereBuilder) build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}
