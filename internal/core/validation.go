package core

// validation.go decides whether a proposed registration may be admitted.
//
// Four checks run in order and the first failure wins:
//  1. Overlap: no scheduled registration of the same student or instructor
//     intersects [start, start+duration)
//  2. Student daily quota
//  3. Instructor daily quota
//  4. Class-type daily capacity (skipped when the limit is 0)
//
// Checks read the store at call time and reserve nothing. Callers that need
// check and insert to be atomic hold AdmissionLocks around both.

import (
	"context"
	"fmt"
	"time"
)

// Proposal is a registration the validator is asked to admit.
type Proposal struct {
	StudentID    string
	InstructorID string
	ClassType    string
	Start        time.Time
}

// Validator runs the admission checks against a RegistrationStore.
type Validator struct {
	store RegistrationStore
}

// NewValidator creates a validator reading from store.
func NewValidator(store RegistrationStore) *Validator {
	return &Validator{store: store}
}

// Admit returns nil when p passes every check under rules, or a *RowError
// describing the first violated rule. Store failures are returned wrapped.
func (v *Validator) Admit(ctx context.Context, p Proposal, rules Rules) error {
	end := rules.EndTime(p.Start)

	if err := v.checkOverlap(ctx, p, end); err != nil {
		return err
	}

	dayStart, dayEnd := rules.DayBounds(p.Start)

	n, err := v.store.CountStudentScheduled(ctx, p.StudentID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("count student classes: %w", err)
	}
	if n >= rules.MaxStudentPerDay {
		return errStudentQuota(rules.MaxStudentPerDay)
	}

	n, err = v.store.CountInstructorScheduled(ctx, p.InstructorID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("count instructor classes: %w", err)
	}
	if n >= rules.MaxInstructorPerDay {
		return errInstructorQuota(rules.MaxInstructorPerDay)
	}

	if rules.MaxPerClassType <= 0 {
		return nil
	}
	n, err = v.store.CountClassTypeScheduled(ctx, p.ClassType, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("count class type classes: %w", err)
	}
	if n >= rules.MaxPerClassType {
		return errClassTypeCapacity(rules.MaxPerClassType)
	}

	return nil
}

func (v *Validator) checkOverlap(ctx context.Context, p Proposal, end time.Time) error {
	existing, err := v.store.FindOverlapping(ctx, p.StudentID, p.InstructorID, p.Start, end)
	if err != nil {
		return fmt.Errorf("find overlapping classes: %w", err)
	}

	for _, r := range existing {
		if r.Status != StatusScheduled || !r.Overlaps(p.Start, end) {
			continue
		}
		if r.StudentID == p.StudentID {
			return errOverlap("student")
		}
		return errOverlap("instructor")
	}
	return nil
}
