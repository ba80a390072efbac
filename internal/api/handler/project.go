package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
	"github.com/zoomcut-dev/zoomcut/internal/domain/repository"
	"github.com/zoomcut-dev/zoomcut/internal/infrastructure/cache"
	"github.com/zoomcut-dev/zoomcut/internal/plan"
	"github.com/zoomcut-dev/zoomcut/internal/usecase"
)

// Request/Response types

type CreateProjectRequest struct {
	OwnerID  string `json:"owner_id"`
	Title    string `json:"title"`
	FileName string `json:"file_name"`
}

type CreateProjectResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	UploadURL string `json:"upload_url"`
	CreatedAt string `json:"created_at"`
}

type MediaResponse struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

type ProjectResponse struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"owner_id"`
	Title      string         `json:"title"`
	Status     string         `json:"status"`
	SourceName string         `json:"source_name,omitempty"`
	Media      MediaResponse  `json:"media"`
	Timeline   model.Timeline `json:"timeline"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

type AddEffectRequest struct {
	Playhead float64 `json:"playhead"`
}

type AddTrimRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type AddCutRequest struct {
	At float64 `json:"at"`
}

type TriggerExportRequest struct {
	Backend string `json:"backend,omitempty"`
}

type DownloadResponse struct {
	DownloadURL string `json:"download_url"`
}

// ProjectHandler handles project and timeline HTTP requests.
type ProjectHandler struct {
	svc      usecase.ProjectService
	progress cache.ProgressStore
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(svc usecase.ProjectService, progress cache.ProgressStore) *ProjectHandler {
	return &ProjectHandler{svc: svc, progress: progress}
}

// Routes mounts all project endpoints on a chi router.
func (h *ProjectHandler) Routes(r chi.Router) {
	r.Post("/projects", h.Create)
	r.Get("/projects", h.List)
	r.Route("/projects/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/ingest", h.TriggerIngest)
		r.Post("/effects", h.AddEffect)
		r.Patch("/effects/{effectID}", h.UpdateEffect)
		r.Delete("/effects/{effectID}", h.DeleteEffect)
		r.Post("/trims", h.AddTrim)
		r.Post("/cuts", h.AddCut)
		r.Get("/preview", h.Preview)
		r.Post("/export", h.TriggerExport)
		r.Get("/export/progress", h.ExportProgress)
		r.Get("/download", h.Download)
	})
}

// Create handles POST /v1/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_owner_id", "Owner ID must be a valid UUID")
		return
	}

	if req.Title == "" {
		Error(w, http.StatusBadRequest, "invalid_title", "Title is required")
		return
	}

	if req.FileName == "" {
		Error(w, http.StatusBadRequest, "invalid_file_name", "File name is required")
		return
	}

	output, err := h.svc.CreateProject(r.Context(), usecase.CreateProjectInput{
		OwnerID:  ownerID,
		Title:    req.Title,
		FileName: req.FileName,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusCreated, CreateProjectResponse{
		ID:        output.Project.ID.String(),
		OwnerID:   output.Project.OwnerID.String(),
		Title:     output.Project.Title,
		Status:    output.Project.Status.String(),
		UploadURL: output.UploadURL,
		CreatedAt: output.Project.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// List handles GET /v1/projects?owner_id={uuid}
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuid.Parse(r.URL.Query().Get("owner_id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_owner_id", "owner_id query parameter must be a valid UUID")
		return
	}

	projects, err := h.svc.ListProjects(r.Context(), ownerID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	responses := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		responses = append(responses, toProjectResponse(p))
	}

	JSON(w, http.StatusOK, responses)
}

// Get handles GET /v1/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	project, err := h.svc.GetProject(r.Context(), projectID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toProjectResponse(project))
}

// TriggerIngest handles POST /v1/projects/{id}/ingest
func (h *ProjectHandler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	if err := h.svc.TriggerIngest(r.Context(), projectID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// AddEffect handles POST /v1/projects/{id}/effects
func (h *ProjectHandler) AddEffect(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var req AddEffectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	project, err := h.svc.AddZoomEffect(r.Context(), projectID, req.Playhead)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusCreated, toProjectResponse(project))
}

// UpdateEffect handles PATCH /v1/projects/{id}/effects/{effectID}
func (h *ProjectHandler) UpdateEffect(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	effectID, err := uuid.Parse(chi.URLParam(r, "effectID"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_effect_id", "Effect ID must be a valid UUID")
		return
	}

	var patch model.ZoomEffectPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	project, err := h.svc.UpdateZoomEffect(r.Context(), projectID, effectID, patch)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toProjectResponse(project))
}

// DeleteEffect handles DELETE /v1/projects/{id}/effects/{effectID}
func (h *ProjectHandler) DeleteEffect(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	effectID, err := uuid.Parse(chi.URLParam(r, "effectID"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_effect_id", "Effect ID must be a valid UUID")
		return
	}

	project, err := h.svc.DeleteZoomEffect(r.Context(), projectID, effectID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toProjectResponse(project))
}

// AddTrim handles POST /v1/projects/{id}/trims
func (h *ProjectHandler) AddTrim(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var req AddTrimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	project, err := h.svc.AddTrimSegment(r.Context(), projectID, req.Start, req.End)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusCreated, toProjectResponse(project))
}

// AddCut handles POST /v1/projects/{id}/cuts
func (h *ProjectHandler) AddCut(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var req AddCutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	project, err := h.svc.AddCutPoint(r.Context(), projectID, req.At)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusCreated, toProjectResponse(project))
}

// Preview handles GET /v1/projects/{id}/preview?t={seconds}
func (h *ProjectHandler) Preview(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var t float64
	if raw := r.URL.Query().Get("t"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			Error(w, http.StatusBadRequest, "invalid_time", "t query parameter must be a number")
			return
		}
		t = parsed
	}

	view, err := h.svc.Preview(r.Context(), projectID, t)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, view)
}

// TriggerExport handles POST /v1/projects/{id}/export
func (h *ProjectHandler) TriggerExport(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	// Body is optional; an empty body selects the default backend.
	var req TriggerExportRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
			return
		}
	}

	if err := h.svc.TriggerExport(r.Context(), projectID, req.Backend); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// ExportProgress handles GET /v1/projects/{id}/export/progress
func (h *ProjectHandler) ExportProgress(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	progress, err := h.progress.GetExportProgress(r.Context(), projectID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}
	if progress == nil {
		Error(w, http.StatusNotFound, "no_export_progress", "No export run is being tracked for this project")
		return
	}

	JSON(w, http.StatusOK, progress)
}

// Download handles GET /v1/projects/{id}/download
func (h *ProjectHandler) Download(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	url, err := h.svc.GetExportDownloadURL(r.Context(), projectID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, DownloadResponse{DownloadURL: url})
}

func (h *ProjectHandler) projectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_project_id", "Project ID must be a valid UUID")
		return uuid.Nil, false
	}
	return projectID, true
}

func (h *ProjectHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrProjectNotFound):
		Error(w, http.StatusNotFound, "project_not_found", "Project not found")
	case errors.Is(err, model.ErrInvalidOwnerID):
		Error(w, http.StatusBadRequest, "invalid_owner_id", "Owner ID cannot be empty")
	case errors.Is(err, model.ErrEmptyTitle):
		Error(w, http.StatusBadRequest, "invalid_title", "Title cannot be empty")
	case errors.Is(err, model.ErrTitleTooLong):
		Error(w, http.StatusBadRequest, "invalid_title", "Title exceeds maximum length")
	case errors.Is(err, model.ErrInvalidTrimRange):
		Error(w, http.StatusBadRequest, "invalid_trim_range", "Trim start must precede end within media bounds")
	case errors.Is(err, plan.ErrUnknownBackend):
		Error(w, http.StatusBadRequest, "invalid_backend", "Export backend must be filtergraph or framerender")
	case errors.Is(err, usecase.ErrProjectNotReady):
		Error(w, http.StatusConflict, "project_not_ready", "Project has no imported media yet")
	case errors.Is(err, usecase.ErrSourceNotUploaded):
		Error(w, http.StatusConflict, "source_not_uploaded", "Source file has not been uploaded")
	case errors.Is(err, usecase.ErrExportInProgress):
		Error(w, http.StatusConflict, "export_in_progress", "An export is already in progress")
	case errors.Is(err, usecase.ErrNoExportedOutput):
		Error(w, http.StatusNotFound, "no_exported_output", "Project has no exported output")
	default:
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func toProjectResponse(p *model.Project) ProjectResponse {
	return ProjectResponse{
		ID:         p.ID.String(),
		OwnerID:    p.OwnerID.String(),
		Title:      p.Title,
		Status:     p.Status.String(),
		SourceName: p.SourceName,
		Media: MediaResponse{
			Duration: p.Media.Duration,
			Width:    p.Media.Width,
			Height:   p.Media.Height,
		},
		Timeline:  p.Timeline,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
