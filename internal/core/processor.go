package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RowResult is the outcome of one batch row. Exactly one of Message (on
// success) or Error (on failure) is set.
type RowResult struct {
	Line           int               `json:"line"`
	Success        bool              `json:"success"`
	Message        string            `json:"message,omitempty"`
	Error          string            `json:"error,omitempty"`
	Kind           Kind              `json:"kind,omitempty"`
	Code           string            `json:"code,omitempty"`
	Retryable      bool              `json:"retryable,omitempty"`
	RegistrationID string            `json:"registrationId,omitempty"`
	Data           map[string]string `json:"data"`
}

// outcome is what a successful action reports back.
type outcome struct {
	message        string
	registrationID string
}

// Processor applies one batch row to the store.
type Processor struct {
	dir       DirectoryStore
	regs      RegistrationStore
	validator *Validator
	locks     *AdmissionLocks // nil leaves check-then-insert unguarded

	emailDomain string
	rowTimeout  time.Duration
	now         func() time.Time
	newID       func(time.Time) string
}

// ProcessorOptions tunes a Processor. Zero values pick sensible defaults.
type ProcessorOptions struct {
	Locks       *AdmissionLocks
	EmailDomain string
	RowTimeout  time.Duration
	Now         func() time.Time
	NewID       func(time.Time) string
}

// NewProcessor builds a processor over the given stores.
func NewProcessor(dir DirectoryStore, regs RegistrationStore, opts ProcessorOptions) *Processor {
	p := &Processor{
		dir:         dir,
		regs:        regs,
		validator:   NewValidator(regs),
		locks:       opts.Locks,
		emailDomain: opts.EmailDomain,
		rowTimeout:  opts.RowTimeout,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if p.emailDomain == "" {
		p.emailDomain = "example.com"
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = NewRegistrationID
	}
	return p
}

// Process applies row under rules and always returns a result; no failure
// escapes the row.
func (p *Processor) Process(ctx context.Context, row Row, rules Rules, logger *slog.Logger) RowResult {
	if logger == nil {
		logger = slog.Default()
	}
	in := InputOf(row)
	logger.Debug("processing row", "line", row.Line, "action", in.Action)

	rowCtx := ctx
	if p.rowTimeout > 0 {
		var cancel context.CancelFunc
		rowCtx, cancel = context.WithTimeout(ctx, p.rowTimeout)
		defer cancel()
	}

	out, err := p.run(rowCtx, in, rules)
	if err == nil {
		return RowResult{
			Line:           row.Line,
			Success:        true,
			Message:        out.message,
			RegistrationID: out.registrationID,
			Data:           row.Payload(),
		}
	}

	re := classify(err)
	if re.Kind == KindInternal {
		logger.Error("row failed unexpectedly", "line", row.Line, "error", err)
	} else {
		logger.Warn("row rejected", "line", row.Line, "kind", re.Kind, "error", re.Msg)
	}

	return RowResult{
		Line:      row.Line,
		Error:     re.Msg,
		Kind:      re.Kind,
		Code:      MapError(re).Code,
		Retryable: re.Retryable,
		Data:      row.Payload(),
	}
}

// classify turns any row error into a *RowError. Deadline and cancellation
// become retryable timeouts; unknown errors get the generic user message.
func classify(err error) *RowError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errRowTimeout(err)
	}
	var re *RowError
	if errors.As(err, &re) {
		return re
	}
	return &RowError{Kind: KindInternal, Msg: MapError(err).Message, Err: err}
}

// run dispatches the row, turning a panic into an internal row error so the
// rest of the batch still runs.
func (p *Processor) run(ctx context.Context, in RowInput, rules Rules) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RowError{
				Kind: KindInternal,
				Msg:  defaultMessage.Message,
				Err:  fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return p.dispatch(ctx, in, rules)
}

func (p *Processor) dispatch(ctx context.Context, in RowInput, rules Rules) (outcome, error) {
	action, err := ParseAction(in.Action)
	if err != nil {
		return outcome{}, err
	}

	switch action {
	case ActionNew:
		return p.create(ctx, in, rules)
	case ActionUpdate:
		return p.update(ctx, in, rules)
	case ActionDelete:
		return p.delete(ctx, in)
	}
	return outcome{}, errInvalidAction(in.Action)
}

func (p *Processor) create(ctx context.Context, in RowInput, rules Rules) (outcome, error) {
	if !in.StudentID.Set || !in.InstructorID.Set || !in.ClassID.Set || !in.StartTime.Set {
		return outcome{}, errIncompleteRow()
	}

	start, err := ParseStartTime(in.StartTime.Value, rules.Location)
	if err != nil {
		return outcome{}, err
	}

	if _, err := p.dir.GetInstructor(ctx, in.InstructorID.Value); err != nil {
		return outcome{}, lookupErr(err, "instructor", in.InstructorID.Value)
	}
	if _, err := p.dir.GetClassType(ctx, in.ClassID.Value); err != nil {
		return outcome{}, lookupErr(err, "class type", in.ClassID.Value)
	}
	if err := p.ensureStudent(ctx, in.StudentID.Value); err != nil {
		return outcome{}, err
	}

	proposal := Proposal{
		StudentID:    in.StudentID.Value,
		InstructorID: in.InstructorID.Value,
		ClassType:    in.ClassID.Value,
		Start:        start,
	}

	unlock := p.locks.Lock(AdmissionKeys(proposal, rules)...)
	defer unlock()

	if err := p.validator.Admit(ctx, proposal, rules); err != nil {
		return outcome{}, err
	}

	now := p.now()
	reg := Registration{
		RegistrationID: p.newID(now),
		StudentID:      proposal.StudentID,
		InstructorID:   proposal.InstructorID,
		ClassType:      proposal.ClassType,
		StartTime:      start,
		EndTime:        rules.EndTime(start),
		Status:         StatusScheduled,
		Action:         ActionNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.regs.CreateRegistration(ctx, reg); err != nil {
		return outcome{}, fmt.Errorf("create registration: %w", err)
	}

	return outcome{message: "Registration created successfully", registrationID: reg.RegistrationID}, nil
}

// ensureStudent creates a placeholder student for an unknown id.
func (p *Processor) ensureStudent(ctx context.Context, studentID string) error {
	_, err := p.dir.GetStudent(ctx, studentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("get student: %w", err)
	}

	if err := p.dir.CreateStudent(ctx, PlaceholderStudent(studentID, p.emailDomain, p.now())); err != nil {
		// Another request may have created it first.
		if _, getErr := p.dir.GetStudent(ctx, studentID); getErr == nil {
			return nil
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// PlaceholderStudent synthesizes a student for an id first seen in a batch.
func PlaceholderStudent(studentID, emailDomain string, now time.Time) Student {
	return Student{
		StudentID: studentID,
		Name:      "Student " + studentID,
		Email:     "student" + studentID + "@" + emailDomain,
		IsActive:  true,
		CreatedAt: now,
	}
}

func (p *Processor) update(ctx context.Context, in RowInput, rules Rules) (outcome, error) {
	if !in.RegistrationID.Set {
		return outcome{}, errMissingID(ActionUpdate)
	}
	id := in.RegistrationID.Value

	existing, err := p.regs.GetRegistration(ctx, id)
	if err != nil {
		return outcome{}, lookupErr(err, "registration", id)
	}

	merged := existing
	if in.StartTime.Set {
		start, err := ParseStartTime(in.StartTime.Value, rules.Location)
		if err != nil {
			return outcome{}, err
		}
		merged.StartTime = start
		merged.EndTime = rules.EndTime(start)
	}
	merged.StudentID = in.StudentID.Or(existing.StudentID)
	merged.InstructorID = in.InstructorID.Or(existing.InstructorID)
	merged.ClassType = in.ClassID.Or(existing.ClassType)
	merged.UpdatedAt = p.now()

	if err := p.regs.UpdateRegistration(ctx, merged); err != nil {
		return outcome{}, lookupErr(err, "registration", id)
	}

	return outcome{message: "Registration updated successfully", registrationID: id}, nil
}

func (p *Processor) delete(ctx context.Context, in RowInput) (outcome, error) {
	if !in.RegistrationID.Set {
		return outcome{}, errMissingID(ActionDelete)
	}
	id := in.RegistrationID.Value

	n, err := p.regs.DeleteRegistration(ctx, id)
	if err != nil {
		return outcome{}, fmt.Errorf("delete registration: %w", err)
	}
	if n == 0 {
		return outcome{}, errNotFound("registration", id)
	}

	return outcome{message: "Registration deleted successfully", registrationID: id}, nil
}

func lookupErr(err error, entity, id string) error {
	if errors.Is(err, ErrNotFound) {
		return errNotFound(entity, id)
	}
	return fmt.Errorf("get %s %s: %w", entity, id, err)
}
