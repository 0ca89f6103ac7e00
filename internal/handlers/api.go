package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/abrezinsky/autobid/internal/models"
	"github.com/abrezinsky/autobid/internal/services"
)

// maxImportSize bounds uploaded course lists
const maxImportSize = 1 << 20

// defaultHistoryLimit is how many runs the history endpoint returns without ?limit
const defaultHistoryLimit = 20

// ==================== Catalog ====================

func (h *Handlers) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Catalog.ListCourses(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if courses == nil {
		courses = []models.CourseSpec{}
	}
	respondOK(w, CoursesResponse{Courses: courses, Count: len(courses)})
}

func (h *Handlers) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.Catalog.GetCourse(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, course)
}

func (h *Handlers) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req models.CourseSpec
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	course, err := h.Catalog.AddCourse(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, course)
}

func (h *Handlers) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req models.CourseSpec
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	course, err := h.Catalog.UpdateCourse(r.Context(), chi.URLParam(r, "code"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, course)
}

func (h *Handlers) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteCourse(r.Context(), chi.URLParam(r, "code")); err != nil {
		respondError(w, err)
		return
	}
	respondDeleted(w)
}

func (h *Handlers) handleMoveCourse(w http.ResponseWriter, r *http.Request) {
	var req MoveCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Delta == 0 {
		respondError(w, BadRequest("delta must not be zero"))
		return
	}

	if err := h.Catalog.MoveCourse(r.Context(), chi.URLParam(r, "code"), req.Delta); err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Course moved")
}

// handleImportCourses accepts a multipart "file" upload, or the raw file as
// the request body with its name in ?name=
func (h *Handlers) handleImportCourses(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)

	var name string
	var body io.Reader
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		name, body = header.Filename, file
	} else {
		name = r.URL.Query().Get("name")
		if name == "" {
			respondError(w, BadRequest("Upload a file or pass ?name= with the file name"))
			return
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			respondError(w, BadRequest("Failed to read upload: "+err.Error()))
			return
		}
		body = bytes.NewReader(data)
	}

	courses, err := h.Catalog.Import(r.Context(), filepath.Base(name), body)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, CoursesResponse{Courses: courses, Count: len(courses)})
}

func (h *Handlers) handleExportCourses(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.Catalog.Export(r.Context(), &buf); err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="courses.json"`)
	w.Write(buf.Bytes())
}

// ==================== Run Control ====================

func (h *Handlers) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Runs.Status(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, status)
}

func (h *Handlers) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, err)
			return
		}
	}

	run, err := h.Runs.Start(r.Context(), req.options())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, run)
}

func (h *Handlers) handleStopRun(w http.ResponseWriter, r *http.Request) {
	if err := h.Runs.Stop(); err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Stop requested")
}

func (h *Handlers) handleScheduleRun(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Spec == "" {
		respondError(w, BadRequest("spec is required"))
		return
	}

	schedule, err := h.Runs.ScheduleRun(req.Spec, req.options())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, schedule)
}

func (h *Handlers) handleUnscheduleRun(w http.ResponseWriter, r *http.Request) {
	if err := h.Runs.Unschedule(); err != nil {
		respondError(w, err)
		return
	}
	respondDeleted(w)
}

// ==================== History ====================

func (h *Handlers) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntQuery(r, "limit", defaultHistoryLimit)
	if err != nil {
		respondError(w, err)
		return
	}
	if limit <= 0 {
		respondError(w, BadRequest("limit must be positive"))
		return
	}

	runs, err := h.Runs.History(r.Context(), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if runs == nil {
		runs = []models.Run{}
	}
	respondOK(w, RunsResponse{Runs: runs})
}

func (h *Handlers) handleGetRun(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Runs.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, detail)
}

func (h *Handlers) handleExportRunResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var buf bytes.Buffer
	if err := h.Runs.ExportResults(r.Context(), id, &buf); err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="run-%s.csv"`, id))
	w.Write(buf.Bytes())
}

// ==================== Settings ====================

func (h *Handlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Settings.AllSettings(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, settings)
}

func (h *Handlers) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	update := services.SettingsUpdate{
		StudentID:  req.StudentID,
		Password:   req.Password,
		Method:     req.Method,
		Headless:   req.Headless,
		MaxRetries: req.MaxRetries,
	}
	if err := h.Settings.Update(r.Context(), update); err != nil {
		respondError(w, err)
		return
	}

	respondSuccess(w, "Settings updated")
}

// ==================== Database Management ====================

func (h *Handlers) handleResetDatabase(w http.ResponseWriter, r *http.Request) {
	var req DatabaseResetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := h.Settings.ResetTables(r.Context(), req.Tables)
	if err != nil {
		respondError(w, err)
		return
	}

	respondOK(w, ResetResponse{Message: result.Message, Tables: result.Tables})
}

// ==================== QR Codes ====================

// handleDashboardQR renders the dashboard address for opening it on a phone
func (h *Handlers) handleDashboardQR(w http.ResponseWriter, r *http.Request) {
	if h.BaseURL == "" {
		respondError(w, NotFound("Dashboard address is not known"))
		return
	}

	png, err := qrcode.Encode(h.BaseURL, qrcode.Medium, 256)
	if err != nil {
		respondError(w, InternalError(err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}
