package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/classreg/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{
			MaxConcurrent: 2,
			MaxWaitTime:   50 * time.Millisecond,
			Timeout:       time.Minute,
			RowTimeout:    time.Second,
		},
		Schedule: config.ScheduleConfig{
			ClassDuration:              45,
			MaxStudentClassesPerDay:    3,
			MaxInstructorClassesPerDay: 5,
			MaxClassesPerType:          10,
			Timezone:                   "UTC",
			StudentEmailDomain:         "school.test",
		},
	}
}

func newTestService(t *testing.T, m *memStore) *Service {
	t.Helper()
	svc, err := NewService(m, testConfig())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	svc.now = func() time.Time { return at(7, 0) }
	return svc
}

const batchHeader = "Registration ID,Student ID,Instructor ID,Class ID,Class Start Time,Action\n"

func TestImportRegistrations_OrderAndIsolation(t *testing.T) {
	m := seeded()
	svc := newTestService(t, m)

	csv := batchHeader +
		",S1,I1,C1,06/01/2025 09:00,new\n" +
		",S1,I404,C1,06/01/2025 10:00,new\n" +
		",S1,I1,C1,06/01/2025 09:30,new\n" +
		",S1,I2,C2,06/01/2025 11:00,new\n" +
		",S1,I2,C2,06/01/2025 13:00,new\n" +
		",S1,I2,C2,06/01/2025 15:00,new\n"

	res, err := svc.ImportRegistrations(context.Background(), strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportRegistrations: %v", err)
	}
	if res.Message != "Processed 6 rows" {
		t.Errorf("Message = %q", res.Message)
	}
	if len(res.Results) != 6 {
		t.Fatalf("got %d results", len(res.Results))
	}

	want := []struct {
		success bool
		kind    Kind
	}{
		{true, ""},
		{false, KindNotFound},
		{false, KindOverlap},
		{true, ""},
		{true, ""},
		{false, KindStudentQuota},
	}
	for i, w := range want {
		r := res.Results[i]
		if r.Line != i+1 {
			t.Errorf("result %d: Line = %d", i, r.Line)
		}
		if r.Success != w.success || r.Kind != w.kind {
			t.Errorf("row %d: success=%v kind=%s, want success=%v kind=%s (%s)", i+1, r.Success, r.Kind, w.success, w.kind, r.Error)
		}
	}
	if res.Succeeded != 3 || res.Failed != 3 {
		t.Errorf("succeeded/failed = %d/%d", res.Succeeded, res.Failed)
	}
	if res.Results[5].Error != "Student daily limit exceeded (max: 3)" {
		t.Errorf("quota message = %q", res.Results[5].Error)
	}
	if got := len(m.scheduled()); got != 3 {
		t.Errorf("scheduled = %d, want 3", got)
	}
}

func TestImportRegistrations_Empty(t *testing.T) {
	svc := newTestService(t, seeded())

	for _, input := range []string{"", batchHeader} {
		res, err := svc.ImportRegistrations(context.Background(), strings.NewReader(input))
		if err != nil {
			t.Fatalf("ImportRegistrations(%q): %v", input, err)
		}
		if len(res.Results) != 0 || res.Message != "Processed 0 rows" {
			t.Errorf("result = %+v", res)
		}
	}
}

func TestImportRegistrations_MalformedAbortsBatch(t *testing.T) {
	m := seeded()
	svc := newTestService(t, m)

	csv := batchHeader +
		",S1,I1,C1,06/01/2025 09:00,new\n" +
		",S1,I1,C1,\"06/01/2025 11:00,new\n"

	_, err := svc.ImportRegistrations(context.Background(), strings.NewReader(csv))
	var mbe *MalformedBatchError
	if !errors.As(err, &mbe) {
		t.Fatalf("expected *MalformedBatchError, got %v", err)
	}
	if MapError(err).Code != "FILE002" {
		t.Errorf("code = %s", MapError(err).Code)
	}
	if got := len(m.scheduled()); got != 0 {
		t.Errorf("malformed batch wrote %d registrations", got)
	}
}

func TestImportRegistrations_ConfigOverridesApply(t *testing.T) {
	m := seeded()
	m.config[KeyClassDuration] = ConfigEntry{Key: KeyClassDuration, Value: json.RawMessage(`60`)}
	m.config[KeyMaxStudentClassesPerDay] = ConfigEntry{Key: KeyMaxStudentClassesPerDay, Value: json.RawMessage(`"1"`)}
	svc := newTestService(t, m)

	csv := batchHeader +
		",S1,I1,C1,06/01/2025 09:00,new\n" +
		",S1,I2,C1,06/01/2025 12:00,new\n"

	res, err := svc.ImportRegistrations(context.Background(), strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportRegistrations: %v", err)
	}
	if !res.Results[0].Success || res.Results[1].Kind != KindStudentQuota {
		t.Fatalf("results = %+v", res.Results)
	}
	reg := m.scheduled()[0]
	if !reg.EndTime.Equal(at(10, 0)) {
		t.Errorf("EndTime = %v, want 10:00", reg.EndTime)
	}
}

func TestImportRegistrations_RulesLoadFailure(t *testing.T) {
	m := seeded()
	m.configErr = errors.New("connection refused")
	svc := newTestService(t, m)

	_, err := svc.ImportRegistrations(context.Background(), strings.NewReader(batchHeader+",S1,I1,C1,06/01/2025 09:00,new\n"))
	if err == nil {
		t.Fatal("expected error when rules cannot be loaded")
	}
	if len(m.scheduled()) != 0 {
		t.Error("rows ran without rules")
	}
}

// blockingReader blocks Read until released.
type blockingReader struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingReader) Read(p []byte) (int, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return 0, errors.New("closed")
}

func TestImportRegistrations_Busy(t *testing.T) {
	svc := newTestService(t, seeded())

	var readers []*blockingReader
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		br := &blockingReader{started: make(chan struct{}), release: make(chan struct{})}
		readers = append(readers, br)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.ImportRegistrations(context.Background(), br)
		}()
		<-br.started
	}

	if st := svc.ImportStatus(); st.Active != 2 || st.Available != 0 {
		t.Errorf("status = %+v", st)
	}

	_, err := svc.ImportRegistrations(context.Background(), strings.NewReader(batchHeader))
	if !errors.Is(err, ErrTooManyUploads) {
		t.Errorf("expected ErrTooManyUploads, got %v", err)
	}
	if MapError(err).Code != "UPL002" {
		t.Errorf("code = %s", MapError(err).Code)
	}

	for _, br := range readers {
		close(br.release)
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.WaitForImports(ctx); err != nil {
		t.Errorf("WaitForImports: %v", err)
	}
}

func TestNewService_InvalidTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.Timezone = "Mars/Olympus"
	if _, err := NewService(seeded(), cfg); err == nil {
		t.Error("expected timezone error")
	}
}

func TestNewService_SanitizesDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.ClassDuration = 0
	cfg.Schedule.MaxStudentClassesPerDay = -1
	cfg.Schedule.MaxClassesPerType = -5

	svc, err := NewService(seeded(), cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	r := svc.DefaultRules()
	if r.ClassDuration != 45*time.Minute || r.MaxStudentPerDay != 3 || r.MaxPerClassType != 0 {
		t.Errorf("rules = %+v", r)
	}
}

func TestSetConfig(t *testing.T) {
	tests := []struct {
		name    string
		update  ConfigUpdate
		wantErr error
	}{
		{"number", ConfigUpdate{Key: KeyClassDuration, Value: json.RawMessage(`60`), DataType: DataTypeNumber}, nil},
		{"numeric string", ConfigUpdate{Key: KeyMaxStudentClassesPerDay, Value: json.RawMessage(`"4"`)}, nil},
		{"missing value", ConfigUpdate{Key: KeyClassDuration}, ErrConfigValueRequired},
		{"null value", ConfigUpdate{Key: KeyClassDuration, Value: json.RawMessage(`null`)}, ErrConfigValueRequired},
		{"missing key", ConfigUpdate{Value: json.RawMessage(`1`)}, ErrConfigValueRequired},
		{"key not allowed", ConfigUpdate{Key: "DATABASE_URL", Value: json.RawMessage(`"x"`)}, ErrConfigKeyNotAllowed},
		{"bad data type", ConfigUpdate{Key: KeyClassDuration, Value: json.RawMessage(`1`), DataType: "date"}, ErrInvalidDataType},
		{"not a number", ConfigUpdate{Key: KeyClassDuration, Value: json.RawMessage(`"long"`)}, ErrInvalidConfigValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := seeded()
			svc := newTestService(t, m)

			entry, err := svc.SetConfig(context.Background(), tt.update)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if len(m.config) != 0 {
					t.Error("rejected update was stored")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if entry.DataType == "" {
				t.Error("DataType not defaulted")
			}
			if _, ok := m.config[tt.update.Key]; !ok {
				t.Error("entry not stored")
			}
		})
	}
}

func TestSetConfig_KeepsDescription(t *testing.T) {
	m := seeded()
	svc := newTestService(t, m)
	ctx := context.Background()

	if _, err := svc.SetConfig(ctx, ConfigUpdate{Key: KeyClassDuration, Value: json.RawMessage(`50`), Description: "Minutes per class"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetConfig(ctx, ConfigUpdate{Key: KeyClassDuration, Value: json.RawMessage(`55`)}); err != nil {
		t.Fatal(err)
	}
	if got := m.config[KeyClassDuration].Description; got != "Minutes per class" {
		t.Errorf("Description = %q", got)
	}

	rules, err := svc.Rules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rules.ClassDuration != 55*time.Minute {
		t.Errorf("ClassDuration = %v", rules.ClassDuration)
	}
}

func TestBulkSetConfig(t *testing.T) {
	m := seeded()
	svc := newTestService(t, m)

	results := svc.BulkSetConfig(context.Background(), []ConfigUpdate{
		{Key: KeyMaxInstructorClassesPerDay, Value: json.RawMessage(`6`)},
		{Key: "SECRET", Value: json.RawMessage(`1`)},
	})
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Status != "success" || results[0].Data == nil {
		t.Errorf("first = %+v", results[0])
	}
	if results[1].Status != "error" || results[1].Error == "" {
		t.Errorf("second = %+v", results[1])
	}
}

func TestResetConfig(t *testing.T) {
	m := seeded()
	m.config[KeyClassDuration] = ConfigEntry{Key: KeyClassDuration, Value: json.RawMessage(`90`)}
	svc := newTestService(t, m)
	ctx := context.Background()

	if err := svc.ResetConfig(ctx, KeyClassDuration); err != nil {
		t.Fatal(err)
	}
	rules, err := svc.Rules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rules.ClassDuration != 45*time.Minute {
		t.Errorf("ClassDuration = %v after reset", rules.ClassDuration)
	}
	if err := svc.ResetConfig(ctx, KeyClassDuration); err != nil {
		t.Errorf("second reset: %v", err)
	}
	if err := svc.ResetConfig(ctx, " "); !errors.Is(err, ErrConfigKeyRequired) {
		t.Errorf("blank key: %v", err)
	}
}

func TestConfigOverview(t *testing.T) {
	m := seeded()
	m.config[KeyMaxClassesPerType] = ConfigEntry{Key: KeyMaxClassesPerType, Value: json.RawMessage(`4`), DataType: DataTypeNumber}
	cfg := testConfig()
	cfg.Database.URL = "postgres://user:secret@db/classreg"
	svc, err := NewService(m, cfg)
	if err != nil {
		t.Fatal(err)
	}

	ov, err := svc.ConfigOverview(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ov.Environment["DATABASE_URL"] != "***" {
		t.Errorf("DATABASE_URL not masked: %q", ov.Environment["DATABASE_URL"])
	}
	if ov.BusinessRules[KeyMaxClassesPerType] != 4 || ov.BusinessRules[KeyClassDuration] != 45 {
		t.Errorf("BusinessRules = %v", ov.BusinessRules)
	}
	if _, ok := ov.DatabaseConfigs[KeyMaxClassesPerType]; !ok {
		t.Error("stored entry missing")
	}

	ui, err := svc.UIConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ui.ClassDuration != 45 || ui.MaxStudentClasses != 3 || ui.MaxInstructorClasses != 5 {
		t.Errorf("UIConfig = %+v", ui)
	}
}

func TestAutoCreateStudents(t *testing.T) {
	m := seeded()
	svc := newTestService(t, m)

	rep := svc.AutoCreateStudents(context.Background(), []string{"S1", "1001", " ", "1002"})

	if rep.Summary != (AutoCreateSummary{Total: 4, Created: 2, Existing: 1, Errors: 1}) {
		t.Errorf("Summary = %+v", rep.Summary)
	}
	if rep.Message != "Created 2 new students, 1 already existed" {
		t.Errorf("Message = %q", rep.Message)
	}
	wantStatus := []string{AutoCreateExists, AutoCreateCreated, AutoCreateError, AutoCreateCreated}
	for i, s := range wantStatus {
		if rep.Results[i].Status != s {
			t.Errorf("result %d status = %s, want %s", i, rep.Results[i].Status, s)
		}
	}
	st, err := m.GetStudent(context.Background(), "1001")
	if err != nil {
		t.Fatal(err)
	}
	if st.Email != "student1001@school.test" {
		t.Errorf("Email = %q", st.Email)
	}
}
