package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/classreg/internal/config"
	"github.com/JonMunkholm/classreg/internal/core"
	"github.com/JonMunkholm/classreg/internal/store"
)

func TestSampleBatch(t *testing.T) {
	today := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	rows, err := core.NewBatchReader(strings.NewReader(sampleBatch(today))).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != len(registrationRows) {
		t.Fatalf("got %d rows, want %d", len(rows), len(registrationRows))
	}
	if got, _ := rows[0].Get(core.ColStartTime); got != "06/02/2025 09:00" {
		t.Errorf("first start = %q", got)
	}
}

func TestRun(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "seed.db")},
		Upload:   config.UploadConfig{MaxConcurrent: 1, MaxWaitTime: time.Second, Timeout: time.Minute},
		Schedule: config.ScheduleConfig{
			ClassDuration:              45,
			MaxStudentClassesPerDay:    3,
			MaxInstructorClassesPerDay: 5,
			MaxClassesPerType:          10,
			Timezone:                   "UTC",
			StudentEmailDomain:         "school.test",
		},
	}
	ctx := context.Background()

	if err := run(ctx, cfg, false, true); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// Seeding twice without -reset collides on the student ids.
	if err := run(ctx, cfg, false, false); err == nil {
		t.Error("expected duplicate key error without reset")
	}
	if err := run(ctx, cfg, true, true); err != nil {
		t.Fatalf("run with reset: %v", err)
	}

	backend, err := store.Open(ctx, cfg.Database, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer backend.Close()

	regs, total, err := backend.ListRegistrations(ctx, core.RegistrationFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != len(registrationRows) || len(regs) != total {
		t.Errorf("registrations = %d, want %d", total, len(registrationRows))
	}
	seeded, err := backend.ListStudents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(seeded) != len(students) {
		t.Errorf("students = %d, want %d", len(seeded), len(students))
	}
}
