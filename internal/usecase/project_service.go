package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
	"github.com/zoomcut-dev/zoomcut/internal/domain/repository"
	"github.com/zoomcut-dev/zoomcut/internal/plan"
)

var (
	// ErrProjectNotReady is returned for operations that need imported media
	// while the project is still awaiting its upload.
	ErrProjectNotReady = errors.New("project has no imported media yet")

	// ErrExportInProgress is returned when a second export is requested
	// while one is already running.
	ErrExportInProgress = errors.New("an export is already in progress")

	// ErrSourceNotUploaded is returned when ingest is triggered before the
	// presigned upload completed.
	ErrSourceNotUploaded = errors.New("source file has not been uploaded")

	// ErrNoExportedOutput is returned when a download URL is requested and
	// no finished export exists.
	ErrNoExportedOutput = errors.New("project has no exported output")
)

// CreateProjectInput contains the input parameters for creating a project.
type CreateProjectInput struct {
	OwnerID  uuid.UUID
	Title    string
	FileName string
}

// CreateProjectOutput contains the result of creating a project.
type CreateProjectOutput struct {
	Project   *model.Project
	UploadURL string
}

// ProjectService defines the interface for project and timeline business
// logic operations.
type ProjectService interface {
	// CreateProject creates project metadata and returns a presigned upload URL
	// for the source video.
	CreateProject(ctx context.Context, input CreateProjectInput) (*CreateProjectOutput, error)

	// TriggerIngest initiates probing of an uploaded source.
	// This operation is idempotent - calling it on an already ingested project returns nil.
	TriggerIngest(ctx context.Context, projectID uuid.UUID) error

	// GetProject retrieves project information by ID.
	GetProject(ctx context.Context, projectID uuid.UUID) (*model.Project, error)

	// ListProjects retrieves all projects belonging to an owner.
	ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*model.Project, error)

	// AddZoomEffect inserts a zoom effect at the playhead and returns the
	// updated project.
	AddZoomEffect(ctx context.Context, projectID uuid.UUID, playhead float64) (*model.Project, error)

	// UpdateZoomEffect applies a partial update to one effect. Unknown
	// effect IDs leave the timeline untouched.
	UpdateZoomEffect(ctx context.Context, projectID, effectID uuid.UUID, patch model.ZoomEffectPatch) (*model.Project, error)

	// DeleteZoomEffect removes one effect. Unknown effect IDs leave the
	// timeline untouched.
	DeleteZoomEffect(ctx context.Context, projectID, effectID uuid.UUID) (*model.Project, error)

	// AddTrimSegment records a kept range of the source.
	AddTrimSegment(ctx context.Context, projectID uuid.UUID, start, end float64) (*model.Project, error)

	// AddCutPoint records a cut marker at the given time.
	AddCutPoint(ctx context.Context, projectID uuid.UUID, at float64) (*model.Project, error)

	// Preview returns the viewport state the player should show at time t.
	Preview(ctx context.Context, projectID uuid.UUID, t float64) (plan.View, error)

	// TriggerExport initiates an async export run over the project timeline.
	// Returns ErrExportInProgress while a run is in flight.
	TriggerExport(ctx context.Context, projectID uuid.UUID, backend string) error

	// GetExportDownloadURL returns a presigned URL for the exported result.
	GetExportDownloadURL(ctx context.Context, projectID uuid.UUID) (string, error)
}

// ProjectServiceConfig holds configuration for ProjectService.
type ProjectServiceConfig struct {
	UploadURLExpiry   time.Duration
	DownloadURLExpiry time.Duration
}

// DefaultProjectServiceConfig returns the default configuration.
func DefaultProjectServiceConfig() ProjectServiceConfig {
	return ProjectServiceConfig{
		UploadURLExpiry:   15 * time.Minute,
		DownloadURLExpiry: 1 * time.Hour,
	}
}

type projectService struct {
	repo    repository.ProjectRepository
	storage repository.ObjectStorage
	queue   repository.MessageQueue

	uploadURLExpiry   time.Duration
	downloadURLExpiry time.Duration
}

// NewProjectService creates a new ProjectService instance.
func NewProjectService(
	repo repository.ProjectRepository,
	storage repository.ObjectStorage,
	queue repository.MessageQueue,
	cfg ProjectServiceConfig,
) ProjectService {
	return &projectService{
		repo:              repo,
		storage:           storage,
		queue:             queue,
		uploadURLExpiry:   cfg.UploadURLExpiry,
		downloadURLExpiry: cfg.DownloadURLExpiry,
	}
}

// CreateProject creates project metadata and generates a presigned upload URL.
func (s *projectService) CreateProject(ctx context.Context, input CreateProjectInput) (*CreateProjectOutput, error) {
	project, err := model.NewProject(input.OwnerID, input.Title)
	if err != nil {
		return nil, err
	}

	key := s.generateSourceKey(project.ID, input.FileName)

	uploadURL, err := s.storage.GeneratePresignedUploadURL(ctx, key, s.uploadURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("generate presigned upload URL: %w", err)
	}

	project.SetSource(key, input.FileName)

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	return &CreateProjectOutput{
		Project:   project,
		UploadURL: uploadURL,
	}, nil
}

// TriggerIngest initiates async probing of the uploaded source.
// Idempotency: returns nil if the project has already been ingested.
func (s *projectService) TriggerIngest(ctx context.Context, projectID uuid.UUID) error {
	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return err
	}

	if project.Status != model.StatusPendingUpload {
		return nil
	}

	exists, err := s.storage.Exists(ctx, project.SourceKey)
	if err != nil {
		return fmt.Errorf("check source upload: %w", err)
	}
	if !exists {
		return ErrSourceNotUploaded
	}

	task := repository.EditTask{
		Kind:      repository.TaskIngest,
		ProjectID: project.ID,
		SourceKey: project.SourceKey,
	}

	if err := s.queue.PublishEditTask(ctx, task); err != nil {
		return fmt.Errorf("publish ingest task: %w", err)
	}

	return nil
}

// GetProject retrieves project information by ID.
func (s *projectService) GetProject(ctx context.Context, projectID uuid.UUID) (*model.Project, error) {
	return s.repo.GetByID(ctx, projectID)
}

// ListProjects retrieves all projects belonging to an owner.
func (s *projectService) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*model.Project, error) {
	return s.repo.GetByOwnerID(ctx, ownerID)
}

// AddZoomEffect inserts a zoom effect at the playhead.
func (s *projectService) AddZoomEffect(ctx context.Context, projectID uuid.UUID, playhead float64) (*model.Project, error) {
	return s.mutateTimeline(ctx, projectID, func(project *model.Project) error {
		project.Timeline.AddZoomEffect(playhead)
		return nil
	})
}

// UpdateZoomEffect applies a partial update to one effect.
func (s *projectService) UpdateZoomEffect(ctx context.Context, projectID, effectID uuid.UUID, patch model.ZoomEffectPatch) (*model.Project, error) {
	return s.mutateTimeline(ctx, projectID, func(project *model.Project) error {
		project.Timeline.UpdateZoomEffect(effectID, patch)
		return nil
	})
}

// DeleteZoomEffect removes one effect from the timeline.
func (s *projectService) DeleteZoomEffect(ctx context.Context, projectID, effectID uuid.UUID) (*model.Project, error) {
	return s.mutateTimeline(ctx, projectID, func(project *model.Project) error {
		project.Timeline.DeleteZoomEffect(effectID)
		return nil
	})
}

// AddTrimSegment records a kept range of the source.
func (s *projectService) AddTrimSegment(ctx context.Context, projectID uuid.UUID, start, end float64) (*model.Project, error) {
	return s.mutateTimeline(ctx, projectID, func(project *model.Project) error {
		_, err := project.Timeline.AddTrimSegment(start, end)
		return err
	})
}

// AddCutPoint records a cut marker at the given time.
func (s *projectService) AddCutPoint(ctx context.Context, projectID uuid.UUID, at float64) (*model.Project, error) {
	return s.mutateTimeline(ctx, projectID, func(project *model.Project) error {
		project.Timeline.AddCutPoint(at)
		return nil
	})
}

// Preview returns the viewport state for the playhead time.
func (s *projectService) Preview(ctx context.Context, projectID uuid.UUID, t float64) (plan.View, error) {
	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return plan.View{}, err
	}
	return plan.Preview(project.Timeline.Effects, t), nil
}

// TriggerExport initiates an async export run.
// Only one export may run per project; a second trigger while EXPORTING
// fails with ErrExportInProgress.
func (s *projectService) TriggerExport(ctx context.Context, projectID uuid.UUID, backend string) error {
	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return err
	}

	if project.IsExporting() {
		return ErrExportInProgress
	}
	if !project.CanExport() {
		return ErrProjectNotReady
	}

	parsed, err := plan.ParseBackend(backend)
	if err != nil {
		return err
	}

	if err := project.TransitionTo(model.StatusExporting); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return fmt.Errorf("update project status: %w", err)
	}

	task := repository.EditTask{
		Kind:      repository.TaskExport,
		ProjectID: project.ID,
		SourceKey: project.SourceKey,
		OutputKey: s.generateOutputKey(project),
		Backend:   string(parsed),
	}

	if err := s.queue.PublishEditTask(ctx, task); err != nil {
		return fmt.Errorf("publish export task: %w", err)
	}

	return nil
}

// GetExportDownloadURL returns a presigned URL for the exported result.
func (s *projectService) GetExportDownloadURL(ctx context.Context, projectID uuid.UUID) (string, error) {
	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return "", err
	}

	if project.Status != model.StatusExported || project.OutputKey == "" {
		return "", ErrNoExportedOutput
	}

	url, err := s.storage.GeneratePresignedDownloadURL(ctx, project.OutputKey, s.downloadURLExpiry)
	if err != nil {
		return "", fmt.Errorf("generate presigned download URL: %w", err)
	}

	return url, nil
}

// mutateTimeline loads the project, applies the mutation and persists the
// updated timeline document.
func (s *projectService) mutateTimeline(ctx context.Context, projectID uuid.UUID, fn func(*model.Project) error) (*model.Project, error) {
	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if project.Status == model.StatusPendingUpload {
		return nil, ErrProjectNotReady
	}

	if err := fn(project); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}

	return project, nil
}

// generateSourceKey creates the storage key for uploaded source files.
// Format: sources/{project_id}/{filename}
func (s *projectService) generateSourceKey(projectID uuid.UUID, filename string) string {
	return path.Join("sources", projectID.String(), filename)
}

// generateOutputKey creates the storage key for the exported result.
// The filename keeps the source name prefixed with "edited_".
// Format: exports/{project_id}/edited_{filename}
func (s *projectService) generateOutputKey(project *model.Project) string {
	name := project.SourceName
	if name == "" {
		name = "export.mp4"
	}
	return path.Join("exports", project.ID.String(), "edited_"+name)
}
