package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/classreg/internal/config"
	"github.com/JonMunkholm/classreg/internal/logging"
)

// Service is the entry point for everything above the store: batch imports,
// reference lookups, listings, reports and config.
type Service struct {
	store     Store
	cfg       *config.Config
	defaults  Rules
	processor *Processor
	limiter   *ImportLimiter
	now       func() time.Time
}

// NewService wires a Service over store. Rule defaults come from
// cfg.Schedule and are overridden per request by stored config entries.
func NewService(store Store, cfg *config.Config) (*Service, error) {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, fmt.Errorf("schedule timezone: %w", err)
	}

	defaults := Rules{
		ClassDuration:       time.Duration(cfg.Schedule.ClassDuration) * time.Minute,
		MaxStudentPerDay:    cfg.Schedule.MaxStudentClassesPerDay,
		MaxInstructorPerDay: cfg.Schedule.MaxInstructorClassesPerDay,
		MaxPerClassType:     cfg.Schedule.MaxClassesPerType,
		Location:            loc,
	}
	defaults = sanitizeRules(defaults, DefaultRules())

	var locks *AdmissionLocks
	if cfg.Schedule.SerializeAdmissions {
		locks = NewAdmissionLocks()
	}

	return &Service{
		store:    store,
		cfg:      cfg,
		defaults: defaults,
		processor: NewProcessor(store, store, ProcessorOptions{
			Locks:       locks,
			EmailDomain: cfg.Schedule.StudentEmailDomain,
			RowTimeout:  cfg.Upload.RowTimeout,
		}),
		limiter: NewImportLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		now:     time.Now,
	}, nil
}

// sanitizeRules replaces non-positive values that must be positive.
func sanitizeRules(r, fallback Rules) Rules {
	if r.ClassDuration <= 0 {
		r.ClassDuration = fallback.ClassDuration
	}
	if r.MaxStudentPerDay <= 0 {
		r.MaxStudentPerDay = fallback.MaxStudentPerDay
	}
	if r.MaxInstructorPerDay <= 0 {
		r.MaxInstructorPerDay = fallback.MaxInstructorPerDay
	}
	if r.MaxPerClassType < 0 {
		r.MaxPerClassType = 0
	}
	if r.Location == nil {
		r.Location = fallback.Location
	}
	return r
}

// Rules builds the business-rule snapshot for one request: stored config
// entries over environment defaults.
func (s *Service) Rules(ctx context.Context) (Rules, error) {
	entries, err := s.store.ListConfig(ctx)
	if err != nil {
		return s.defaults, fmt.Errorf("load config: %w", err)
	}
	return s.defaults.ApplyEntries(entries, s.logger(ctx)), nil
}

// DefaultRules returns the environment-level rules, ignoring stored overrides.
func (s *Service) DefaultRules() Rules {
	return s.defaults
}

// Location is the zone start times and calendar days are read in.
func (s *Service) Location() *time.Location {
	return s.defaults.Location
}

// BatchResult is the response to a registration import.
type BatchResult struct {
	BatchID   string        `json:"batchId"`
	Message   string        `json:"message"`
	Results   []RowResult   `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"-"`
}

// ImportRegistrations processes a CSV batch row by row, in file order.
//
// A stream that is not valid CSV returns *MalformedBatchError before any row
// is touched. Otherwise every row yields exactly one RowResult, and row
// failures never stop later rows. Imports beyond the concurrency limit wait
// and then fail with ErrTooManyUploads.
func (s *Service) ImportRegistrations(ctx context.Context, r io.Reader) (*BatchResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.cfg.Upload.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Upload.Timeout)
		defer cancel()
	}

	start := s.now()
	batchID := uuid.NewString()
	logger := logging.WithFields(ctx,
		"batch_id", batchID,
		"client_ip", ClientIPFromContext(ctx),
	)

	rows, err := NewBatchReader(r).ReadAll()
	if err != nil {
		logger.Warn("batch rejected", "error", err)
		return nil, err
	}

	rules, err := s.Rules(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("import started", "rows", len(rows))

	res := &BatchResult{
		BatchID: batchID,
		Message: fmt.Sprintf("Processed %d rows", len(rows)),
		Results: make([]RowResult, 0, len(rows)),
	}
	for _, row := range rows {
		rr := s.processor.Process(ctx, row, rules, logger)
		if rr.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
		res.Results = append(res.Results, rr)
	}
	res.Duration = s.now().Sub(start)

	logger.Info("import finished",
		"rows", len(rows),
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// ImportStatus reports import slot usage.
func (s *Service) ImportStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}

// Ping checks the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) logger(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
