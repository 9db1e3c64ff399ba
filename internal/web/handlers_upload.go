package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/JonMunkholm/classreg/internal/core"
	"github.com/JonMunkholm/classreg/internal/logging"
	"github.com/JonMunkholm/classreg/internal/web/templates"
)

// uploadFormField is the multipart field carrying the CSV batch.
const uploadFormField = "csvFile"

// multipartMemory is how much of a form is held in memory before spilling to disk.
const multipartMemory = 8 << 20

// uploadResponse is {"success": true, "message": ..., "results": [...]}.
type uploadResponse struct {
	Success bool `json:"success"`
	*core.BatchResult
}

// handleUpload runs a CSV registration batch. The response is a success as
// long as the file parsed; callers inspect each row's success flag.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, err, http.StatusRequestEntityTooLarge, "")
			return
		}
		s.respondError(w, r, core.ErrNoFile, http.StatusBadRequest, "No CSV file uploaded")
		return
	}

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		s.respondError(w, r, core.ErrNoFile, http.StatusBadRequest, "No CSV file uploaded")
		return
	}
	defer file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	logging.FromContext(ctx).Info("import received",
		"file", header.Filename,
		"size", header.Size,
	)

	result, err := s.service.ImportRegistrations(ctx, file)
	if err != nil {
		status := statusFor(err)
		summary := ""
		if status == http.StatusInternalServerError {
			summary = "Failed to process CSV file"
		}
		s.respondError(w, r, err, status, summary)
		return
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = templates.UploadResults(result, requestID(r)).Render(ctx, w)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Success: true, BatchResult: result})
}

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rules, err := s.service.Rules(r.Context())
	if err != nil {
		rules = s.service.DefaultRules()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = templates.UploadPage(templates.UploadPageData{
		FieldName:     uploadFormField,
		Columns:       core.BatchColumns,
		ClassDuration: int(rules.ClassDuration.Minutes()),
		MaxStudent:    rules.MaxStudentPerDay,
		MaxInstructor: rules.MaxInstructorPerDay,
		MaxPerType:    rules.MaxPerClassType,
	}).Render(r.Context(), w)
}

type registrationListResponse struct {
	Success bool `json:"success"`
	*core.RegistrationPage
}

// handleListRegistrations lists scheduled registrations, newest start first.
func (s *Server) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.service.ListRegistrations(r.Context(), core.RegistrationQuery{
		Date:         q.Get("date"),
		InstructorID: q.Get("instructorId"),
		Page:         parseIntParam(r, "page", 1),
		Limit:        parseIntParam(r, "limit", 10),
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err), "Failed to fetch registrations")
		return
	}
	writeJSON(w, http.StatusOK, registrationListResponse{Success: true, RegistrationPage: page})
}

func (s *Server) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := s.service.GetRegistration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondLookupError(w, r, err, "Registration")
		return
	}
	writeData(w, reg)
}

// handleRegistrationQR serves a PNG QR code of the registration id, for
// printing on a class badge. ?size= is clamped to 128..1024 pixels.
func (s *Server) handleRegistrationQR(w http.ResponseWriter, r *http.Request) {
	reg, err := s.service.GetRegistration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondLookupError(w, r, err, "Registration")
		return
	}

	size := min(max(parseIntParam(r, "size", 256), 128), 1024)
	png, err := qrcode.Encode(reg.RegistrationID, qrcode.Medium, size)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
