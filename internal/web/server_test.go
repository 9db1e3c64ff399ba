package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"github.com/JonMunkholm/classreg/internal/config"
	"github.com/JonMunkholm/classreg/internal/core"
	"github.com/JonMunkholm/classreg/internal/store/sqlite"
)

const batchHeader = "Registration ID,Student ID,Instructor ID,Class ID,Class Start Time,Action\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
		},
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       time.Minute,
			RowTimeout:    5 * time.Second,
		},
		Schedule: config.ScheduleConfig{
			ClassDuration:              45,
			MaxStudentClassesPerDay:    3,
			MaxInstructorClassesPerDay: 5,
			MaxClassesPerType:          10,
			Timezone:                   "UTC",
			StudentEmailDomain:         "school.test",
		},
		Security: config.SecurityConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
}

// newTestServer serves a seeded SQLite store in a temp dir.
func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "web.db"), logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	seed := []error{
		store.CreateStudent(ctx, core.Student{StudentID: "1001", Name: "Ann Lee", Email: "ann@school.test", IsActive: true}),
		store.CreateInstructor(ctx, core.Instructor{InstructorID: "2001", Name: "Ivy Stone", Email: "ivy@school.test", IsActive: true}),
		store.CreateClassType(ctx, core.ClassType{ClassID: "DRV101", Name: "Basics", Duration: 45, MaxCapacity: 5, IsActive: true}),
	}
	for _, err := range seed {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	svc, err := core.NewService(store, cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, field, csv string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "batch.csv")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(csv))
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/registrations/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type uploadBody struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Results []core.RowResult `json:"results"`
}

func TestUpload(t *testing.T) {
	srv := newTestServer(t, testConfig())

	csv := batchHeader +
		",1001,2001,DRV101,06/01/2025 09:00,new\n" +
		",1001,2001,DRV101,06/01/2025 09:30,new\n" +
		",1002,2999,DRV101,06/01/2025 12:00,new\n"
	rec := do(t, srv, uploadRequest(t, "csvFile", csv))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := decode[uploadBody](t, rec)
	if !got.Success || got.Message != "Processed 3 rows" || len(got.Results) != 3 {
		t.Fatalf("got %+v", got)
	}

	wantSuccess := []bool{true, false, false}
	for i, rr := range got.Results {
		if rr.Line != i+1 || rr.Success != wantSuccess[i] {
			t.Errorf("row %d = %+v", i, rr)
		}
	}
	if got.Results[0].RegistrationID == "" {
		t.Error("expected a registration id on the created row")
	}
	if got.Results[1].Code != "REG006" {
		t.Errorf("overlap code = %q", got.Results[1].Code)
	}
	if got.Results[2].Code != "REG005" {
		t.Errorf("missing instructor code = %q", got.Results[2].Code)
	}

	t.Run("registration lookups", func(t *testing.T) {
		id := got.Results[0].RegistrationID

		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/registrations/"+id, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("get status = %d", rec.Code)
		}

		rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/registrations/"+id+"/qr.png?size=64", nil))
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
			t.Fatalf("qr status = %d, type %q", rec.Code, rec.Header().Get("Content-Type"))
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
			t.Error("qr body is not a PNG")
		}

		rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/registrations?date=2025-06-01", nil))
		page := decode[struct {
			Success    bool              `json:"success"`
			Data       []json.RawMessage `json:"data"`
			Pagination core.Pagination   `json:"pagination"`
		}](t, rec)
		if !page.Success || len(page.Data) != 1 || page.Pagination.Total != 1 {
			t.Errorf("list = %+v", page)
		}
	})
}

func TestUpload_Errors(t *testing.T) {
	srv := newTestServer(t, testConfig())

	tests := []struct {
		name    string
		req     *http.Request
		status  int
		errText string
		code    string
	}{
		{
			name:    "wrong field",
			req:     uploadRequest(t, "file", batchHeader),
			status:  http.StatusBadRequest,
			errText: "No CSV file uploaded",
			code:    "FILE003",
		},
		{
			name:    "not multipart",
			req:     jsonRequest(http.MethodPost, "/api/registrations/upload", `{}`),
			status:  http.StatusBadRequest,
			errText: "No CSV file uploaded",
			code:    "FILE003",
		},
		{
			name:    "malformed csv",
			req:     uploadRequest(t, "csvFile", batchHeader+`"unterminated,1001`+"\n"),
			status:  http.StatusBadRequest,
			errText: "File is not a valid CSV",
			code:    "FILE002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			got := decode[ErrorResponse](t, rec)
			if got.Success || got.Error != tt.errText || got.Code != tt.code {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestUpload_HTML(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := uploadRequest(t, "csvFile", batchHeader+",1001,2001,DRV101,06/01/2025 09:00,new\n")
	req.Header.Set("Accept", "text/html")
	rec := do(t, srv, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("content type %q", rec.Header().Get("Content-Type"))
	}
	if body := rec.Body.String(); !strings.Contains(body, "Upload results") || !strings.Contains(body, "1 succeeded") {
		t.Errorf("unexpected body %s", body)
	}
}

func TestIndexPage(t *testing.T) {
	srv := newTestServer(t, testConfig())
	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`name="csvFile"`, "Registration ID,Student ID", "Class length: 45 minutes"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestDirectoryRoutes(t *testing.T) {
	srv := newTestServer(t, testConfig())

	tests := []struct {
		path    string
		status  int
		errText string
	}{
		{"/api/students", http.StatusOK, ""},
		{"/api/students/1001", http.StatusOK, ""},
		{"/api/students/9999", http.StatusNotFound, "Student not found"},
		{"/api/instructors/2001", http.StatusOK, ""},
		{"/api/instructors/2999", http.StatusNotFound, "Instructor not found"},
		{"/api/class-types", http.StatusOK, ""},
		{"/api/class-types/NOPE", http.StatusNotFound, "Class type not found"},
		{"/api/registrations/NOPE", http.StatusNotFound, "Registration not found"},
		{"/api/registrations?date=june", http.StatusBadRequest, "Failed to fetch registrations"},
		{"/api/nowhere", http.StatusNotFound, "Route not found"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, srv, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.errText != "" {
				got := decode[ErrorResponse](t, rec)
				if got.Error != tt.errText {
					t.Errorf("error = %q, want %q", got.Error, tt.errText)
				}
			}
		})
	}
}

func TestAutoCreateStudents(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := do(t, srv, jsonRequest(http.MethodPost, "/api/students/auto-create", `{"studentIds":["1001","1002"]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Summary core.AutoCreateSummary `json:"summary"`
	}](t, rec)
	if !got.Success || got.Summary.Created != 1 || got.Summary.Existing != 1 {
		t.Errorf("got %+v", got)
	}
	if got.Message != "Created 1 new students, 1 already existed" {
		t.Errorf("message = %q", got.Message)
	}

	rec = do(t, srv, jsonRequest(http.MethodPost, "/api/students/auto-create", `{"ids":["1"]}`))
	if rec.Code != http.StatusBadRequest || decode[ErrorResponse](t, rec).Error != "studentIds array is required" {
		t.Errorf("missing ids: %d %s", rec.Code, rec.Body.String())
	}
}

func TestConfigRoutes(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := do(t, srv, jsonRequest(http.MethodPut, "/api/config", `{"key":"CLASS_DURATION","value":60,"dataType":"number","description":"Minutes"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	if msg := decode[dataResponse](t, rec).Message; msg != "Configuration 'CLASS_DURATION' updated successfully" {
		t.Errorf("message = %q", msg)
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/config/ui", nil))
	ui := decode[struct {
		Data core.UIConfig `json:"data"`
	}](t, rec)
	if ui.Data.ClassDuration != 60 || ui.Data.MaxStudentClasses != 3 {
		t.Errorf("ui = %+v", ui.Data)
	}

	rec = do(t, srv, jsonRequest(http.MethodPut, "/api/config", `{"key":"PORT","value":1}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("disallowed status = %d", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Error != "Configuration key 'PORT' is not allowed to be updated via API" || got.Code != "CFG001" {
		t.Errorf("disallowed = %+v", got)
	}

	rec = do(t, srv, jsonRequest(http.MethodPut, "/api/config/bulk", `{"configs":[{"key":"MAX_CLASSES_PER_TYPE","value":4,"dataType":"number"},{"key":"NOPE","value":1}]}`))
	bulk := decode[bulkConfigResponse](t, rec)
	if !bulk.Success || len(bulk.Results) != 2 || bulk.Results[0].Status != "success" || bulk.Results[1].Status != "error" {
		t.Errorf("bulk = %+v", bulk)
	}

	rec = do(t, srv, jsonRequest(http.MethodPut, "/api/config/bulk", `{}`))
	if rec.Code != http.StatusBadRequest || decode[ErrorResponse](t, rec).Error != "configs array is required" {
		t.Errorf("bulk without configs: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, jsonRequest(http.MethodDelete, "/api/config/reset", `{"key":"CLASS_DURATION"}`))
	if msg := decode[dataResponse](t, rec).Message; msg != "Configuration 'CLASS_DURATION' reset to default" {
		t.Errorf("reset message = %q", msg)
	}

	rec = do(t, srv, jsonRequest(http.MethodDelete, "/api/config/reset", `{}`))
	if rec.Code != http.StatusBadRequest || decode[ErrorResponse](t, rec).Error != "Key is required" {
		t.Errorf("reset without key: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	overview := decode[struct {
		Data core.ConfigOverview `json:"data"`
	}](t, rec)
	if overview.Data.BusinessRules[core.KeyClassDuration] != 45 || overview.Data.BusinessRules[core.KeyMaxClassesPerType] != 4 {
		t.Errorf("business rules = %v", overview.Data.BusinessRules)
	}
}

func TestMutatingRoutesRequireKey(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	srv := newTestServer(t, cfg)

	rec := do(t, srv, jsonRequest(http.MethodPut, "/api/config", `{"key":"CLASS_DURATION","value":50}`))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without key = %d", rec.Code)
	}

	req := jsonRequest(http.MethodPut, "/api/config", `{"key":"CLASS_DURATION","value":50,"dataType":"number"}`)
	req.Header.Set("X-API-Key", "secret")
	if rec := do(t, srv, req); rec.Code != http.StatusOK {
		t.Errorf("with key = %d, body %s", rec.Code, rec.Body.String())
	}

	if rec := do(t, srv, uploadRequest(t, "csvFile", batchHeader)); rec.Code != http.StatusUnauthorized {
		t.Errorf("upload without key = %d", rec.Code)
	}

	if rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/students", nil)); rec.Code != http.StatusOK {
		t.Errorf("reads stay open, got %d", rec.Code)
	}
}

func TestReportsAndStats(t *testing.T) {
	srv := newTestServer(t, testConfig())

	now := time.Now().UTC().Add(24 * time.Hour)
	start := now.Format("01/02/2006") + " 10:00"
	if rec := do(t, srv, uploadRequest(t, "csvFile", batchHeader+",1001,2001,DRV101,"+start+",new\n")); rec.Code != http.StatusOK {
		t.Fatalf("upload = %d", rec.Code)
	}

	paths := []string{
		"/api/reports/classes",
		"/api/reports/filters",
		"/api/stats/daily-classes?days=7",
		"/api/stats/class-types",
		"/api/dashboard/stats",
		"/api/dashboard/summary",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			rec := do(t, srv, httptest.NewRequest(http.MethodGet, p, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if !decode[struct {
				Success bool `json:"success"`
			}](t, rec).Success {
				t.Error("success = false")
			}
		})
	}

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/reports/classes", nil))
	report := decode[struct {
		Data []core.ReportRow `json:"data"`
	}](t, rec)
	if len(report.Data) != 1 || report.Data[0].StudentName != "Ann Lee" || report.Data[0].ClassName != "Basics" {
		t.Errorf("report = %+v", report.Data)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[healthResponse](t, rec)
	if got.Status != "OK" || got.Database != "Connected" || got.Imports.MaxConcurrent != 2 {
		t.Errorf("got %+v", got)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestRateLimiter(t *testing.T) {
	clock := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return clock }

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.2.3.4") {
		t.Error("third request in the window should be limited")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("other clients have their own budget")
	}

	clock = clock.Add(61 * time.Second)
	if !rl.allow("1.2.3.4") {
		t.Error("budget should reset after the window")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, UploadLimit: 1}
	srv := newTestServer(t, cfg)

	first := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/students", nil))
	second := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/students", nil))
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Errorf("codes = %d, %d", first.Code, second.Code)
	}
	if got := decode[ErrorResponse](t, second); got.Code != "RATE001" {
		t.Errorf("got %+v", got)
	}
}
