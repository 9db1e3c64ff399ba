package core

// batch.go turns an uploaded CSV stream into ordered rows keyed by header.
//
// Files exported from spreadsheets often start with a UTF-8 BOM and may carry
// stray non-UTF-8 bytes; the reader strips the former and replaces the latter
// with '?' so cell values are always valid strings.

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CSV column headers of a registration batch.
const (
	ColRegistrationID = "Registration ID"
	ColStudentID      = "Student ID"
	ColInstructorID   = "Instructor ID"
	ColClassID        = "Class ID"
	ColStartTime      = "Class Start Time"
	ColAction         = "Action"
)

// BatchColumns is the header row of a registration batch, in template order.
var BatchColumns = []string{
	ColRegistrationID,
	ColStudentID,
	ColInstructorID,
	ColClassID,
	ColStartTime,
	ColAction,
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one data row of a batch. Line is the 1-based data row index, so the
// first row after the header is line 1. Values holds trimmed, valid UTF-8
// cells; Raw holds the cells exactly as the CSV reader returned them.
type Row struct {
	Line   int
	Values map[string]string
	Raw    map[string]string
}

// Get returns the trimmed value of column, and whether the column was present.
func (r Row) Get(column string) (string, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Payload is the row as uploaded, for echoing back in results.
func (r Row) Payload() map[string]string {
	if r.Raw != nil {
		return r.Raw
	}
	return r.Values
}

// BatchReader yields rows from a CSV stream one at a time. It is not
// restartable; once Next returns io.EOF the reader is exhausted.
type BatchReader struct {
	csv    *csv.Reader
	header []string
	line   int
	done   bool
}

// NewBatchReader wraps r, skipping a leading BOM.
func NewBatchReader(r io.Reader) *BatchReader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && string(prefix) == string(utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1 // short rows leave trailing columns absent
	cr.TrimLeadingSpace = true

	return &BatchReader{csv: cr}
}

// Next returns the next data row. It returns io.EOF after the last row and a
// *MalformedBatchError when the stream is not valid CSV. Errors from the
// underlying reader are returned wrapped. Blank lines are skipped.
func (b *BatchReader) Next() (Row, error) {
	if b.done {
		return Row{}, io.EOF
	}

	if b.header == nil {
		rec, err := b.read()
		if err != nil {
			return Row{}, err
		}
		b.header = make([]string, len(rec))
		for i, h := range rec {
			b.header[i] = strings.TrimSpace(strings.ToValidUTF8(h, "?"))
		}
	}

	rec, err := b.read()
	if err != nil {
		return Row{}, err
	}

	b.line++
	values := make(map[string]string, len(b.header))
	raw := make(map[string]string, len(b.header))
	for i, h := range b.header {
		if i < len(rec) {
			raw[h] = rec[i]
			values[h] = strings.TrimSpace(strings.ToValidUTF8(rec[i], "?"))
		}
	}
	return Row{Line: b.line, Values: values, Raw: raw}, nil
}

func (b *BatchReader) read() ([]string, error) {
	rec, err := b.csv.Read()
	if errors.Is(err, io.EOF) {
		b.done = true
		return nil, io.EOF
	}
	if err != nil {
		b.done = true
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, &MalformedBatchError{Line: pe.Line, Err: pe.Err}
		}
		return nil, fmt.Errorf("read batch: %w", err)
	}
	return rec, nil
}

// ReadAll drains the reader. A malformed stream yields no rows at all so that
// nothing is processed from a file that cannot be read to the end.
func (b *BatchReader) ReadAll() ([]Row, error) {
	var rows []Row
	for {
		row, err := b.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
