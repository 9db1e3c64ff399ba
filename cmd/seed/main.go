// Command seed loads demo students, instructors, class types, config entries
// and a few registrations into the configured store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/classreg/internal/config"
	"github.com/JonMunkholm/classreg/internal/core"
	"github.com/JonMunkholm/classreg/internal/logging"
	"github.com/JonMunkholm/classreg/internal/store"
)

// seedTimeout bounds the whole run.
const seedTimeout = time.Minute

var students = []core.Student{
	{StudentID: "1001", Name: "Alex Johnson", Email: "alex.johnson@example.com"},
	{StudentID: "1002", Name: "Sarah Williams", Email: "sarah.williams@example.com"},
	{StudentID: "1003", Name: "Mike Chen", Email: "mike.chen@example.com"},
	{StudentID: "1004", Name: "Emily Davis", Email: "emily.davis@example.com"},
	{StudentID: "1005", Name: "James Wilson", Email: "james.wilson@example.com"},
}

var instructors = []core.Instructor{
	{InstructorID: "2001", Name: "Mr. Robert Anderson", Email: "robert.anderson@example.com", Specialization: "Beginner Training"},
	{InstructorID: "2002", Name: "Ms. Maria Garcia", Email: "maria.garcia@example.com", Specialization: "Highway & Defensive Driving"},
	{InstructorID: "2003", Name: "Mr. David Chen", Email: "david.chen@example.com", Specialization: "Parking & Maneuvering"},
	{InstructorID: "2004", Name: "Mrs. Lisa Thompson", Email: "lisa.thompson@example.com", Specialization: "Night & Adverse Conditions"},
}

var classTypes = []core.ClassType{
	{ClassID: "DRV101", Name: "Beginner Driving Theory", Description: "Basic traffic rules, signs, and road safety fundamentals", Duration: 60, MaxCapacity: 20},
	{ClassID: "DRV102", Name: "Highway Driving", Description: "Highway safety, lane changing, and high-speed techniques", Duration: 90, MaxCapacity: 12},
	{ClassID: "DRV103", Name: "Parallel Parking", Description: "Master parallel parking and tight space maneuvering", Duration: 45, MaxCapacity: 8},
	{ClassID: "DRV104", Name: "Night Driving", Description: "Driving in low-light conditions and using headlights properly", Duration: 60, MaxCapacity: 10},
	{ClassID: "DRV105", Name: "Defensive Driving", Description: "Advanced safety techniques and hazard anticipation", Duration: 75, MaxCapacity: 15},
	{ClassID: "DRV106", Name: "Emergency Maneuvers", Description: "Handling emergency situations and quick decision making", Duration: 60, MaxCapacity: 10},
}

var configEntries = []core.ConfigEntry{
	{Key: "UI_THEME", Value: json.RawMessage(`"light"`), Description: "Interface color theme", DataType: core.DataTypeString},
	{Key: "UI_LANGUAGE", Value: json.RawMessage(`"en"`), Description: "Interface language", DataType: core.DataTypeString},
	{Key: "NOTIFICATION_ENABLED", Value: json.RawMessage(`true`), Description: "Enable email notifications", DataType: core.DataTypeBoolean},
}

type sampleRegistration struct {
	student, instructor, class string
	inDays                     int
	at                         string // HH:mm
}

var registrationRows = []sampleRegistration{
	{"1001", "2001", "DRV101", 1, "09:00"},
	{"1002", "2002", "DRV102", 1, "10:00"},
	{"1003", "2003", "DRV103", 1, "14:00"},
	{"1004", "2004", "DRV104", 2, "19:00"},
	{"1005", "2002", "DRV105", 2, "11:00"},
	{"1001", "2003", "DRV106", 3, "15:00"},
}

func main() {
	reset := flag.Bool("reset", false, "delete all existing data before seeding")
	withRegistrations := flag.Bool("registrations", true, "import sample registrations through the batch processor")
	flag.Parse()

	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	if err := run(ctx, cfg, *reset, *withRegistrations); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, reset, withRegistrations bool) error {
	backend, err := store.Open(ctx, cfg.Database, slog.Default())
	if err != nil {
		return err
	}
	defer backend.Close()

	logger := logging.WithFields(ctx, "driver", cfg.Database.Driver)

	if reset {
		if err := backend.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		logger.Info("store reset")
	}

	now := time.Now()
	for _, st := range students {
		st.IsActive, st.CreatedAt = true, now
		if err := backend.CreateStudent(ctx, st); err != nil {
			return fmt.Errorf("student %s: %w", st.StudentID, err)
		}
	}
	logger.Info("students seeded", "count", len(students))

	for _, in := range instructors {
		in.IsActive, in.CreatedAt = true, now
		if err := backend.CreateInstructor(ctx, in); err != nil {
			return fmt.Errorf("instructor %s: %w", in.InstructorID, err)
		}
	}
	logger.Info("instructors seeded", "count", len(instructors))

	for _, ct := range classTypes {
		ct.IsActive, ct.CreatedAt = true, now
		if err := backend.CreateClassType(ctx, ct); err != nil {
			return fmt.Errorf("class type %s: %w", ct.ClassID, err)
		}
	}
	logger.Info("class types seeded", "count", len(classTypes))

	for _, e := range configEntries {
		e.UpdatedAt = now
		if err := backend.SetConfig(ctx, e); err != nil {
			return fmt.Errorf("config %s: %w", e.Key, err)
		}
	}
	logger.Info("configurations seeded", "count", len(configEntries))

	if !withRegistrations {
		return nil
	}

	service, err := core.NewService(backend, cfg)
	if err != nil {
		return err
	}
	res, err := service.ImportRegistrations(ctx, strings.NewReader(sampleBatch(now.In(service.Location()))))
	if err != nil {
		return fmt.Errorf("registrations: %w", err)
	}
	for _, rr := range res.Results {
		if !rr.Success {
			logger.Warn("sample registration rejected", "line", rr.Line, "error", rr.Error)
		}
	}
	logger.Info("registrations seeded", "count", res.Succeeded, "rejected", res.Failed)
	return nil
}

// sampleBatch renders registrationRows as an import CSV relative to today.
func sampleBatch(today time.Time) string {
	var b strings.Builder
	b.WriteString(strings.Join(core.BatchColumns, ",") + "\n")
	for _, row := range registrationRows {
		day := today.AddDate(0, 0, row.inDays).Format("01/02/2006")
		fmt.Fprintf(&b, ",%s,%s,%s,%s %s,new\n", row.student, row.instructor, row.class, day, row.at)
	}
	return b.String()
}
