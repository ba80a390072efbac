package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
	"github.com/zoomcut-dev/zoomcut/internal/domain/repository"
	"github.com/zoomcut-dev/zoomcut/internal/infrastructure/cache"
	"github.com/zoomcut-dev/zoomcut/internal/infrastructure/metrics"
	"github.com/zoomcut-dev/zoomcut/internal/plan"
	"github.com/zoomcut-dev/zoomcut/internal/transcoder"
)

const (
	// DefaultMaxRetries is the default maximum number of retry attempts before marking as failed.
	DefaultMaxRetries = 3

	// DefaultExportTimeout bounds a single export run end to end.
	DefaultExportTimeout = 30 * time.Minute
)

var (
	// ErrEmptyOutput is returned when an export run produced a missing or
	// zero-byte result file.
	ErrEmptyOutput = errors.New("export produced empty output")

	// ErrExportTimeout is returned when an export run exceeded its time budget.
	ErrExportTimeout = errors.New("export exceeded time budget")
)

// FrameRenderer executes the frame-by-frame export path.
// *render.Renderer satisfies this interface.
type FrameRenderer interface {
	Render(ctx context.Context, schedule *plan.FrameSchedule, inputPath, workDir, outputPath string, onProgress transcoder.ProgressFunc) error
}

// ExportServiceConfig holds configuration for ExportService.
type ExportServiceConfig struct {
	// TempDir is the base directory for scratch files during export runs.
	TempDir string
	// MaxRetries is the maximum number of retry attempts before marking the export as failed.
	MaxRetries int
	// ExportTimeout bounds one export run.
	ExportTimeout time.Duration
	// Planner carries the plan compilation parameters (backend, codec, rate).
	Planner plan.Config
}

// DefaultExportServiceConfig returns the default configuration.
func DefaultExportServiceConfig() ExportServiceConfig {
	return ExportServiceConfig{
		TempDir:       os.TempDir(),
		MaxRetries:    DefaultMaxRetries,
		ExportTimeout: DefaultExportTimeout,
		Planner:       plan.DefaultConfig(),
	}
}

// ExportService defines the interface for worker-side task processing.
type ExportService interface {
	// ProcessTask handles an ingest or export task from the message queue.
	// Returns nil on success or permanent failure (max retries exceeded,
	// timeout, empty output).
	// Returns error for transient failures that should trigger a retry.
	ProcessTask(ctx context.Context, task repository.EditTask) error
}

type exportService struct {
	repo     repository.ProjectRepository
	storage  repository.ObjectStorage
	engine   transcoder.Engine
	renderer FrameRenderer
	progress cache.ProgressStore

	tempDir       string
	maxRetries    int
	exportTimeout time.Duration
	plannerCfg    plan.Config
}

// NewExportService creates a new ExportService instance.
func NewExportService(
	repo repository.ProjectRepository,
	storage repository.ObjectStorage,
	engine transcoder.Engine,
	renderer FrameRenderer,
	progress cache.ProgressStore,
	cfg ExportServiceConfig,
) ExportService {
	return &exportService{
		repo:          repo,
		storage:       storage,
		engine:        engine,
		renderer:      renderer,
		progress:      progress,
		tempDir:       cfg.TempDir,
		maxRetries:    cfg.MaxRetries,
		exportTimeout: cfg.ExportTimeout,
		plannerCfg:    cfg.Planner,
	}
}

// ProcessTask dispatches a queued task by kind.
func (s *exportService) ProcessTask(ctx context.Context, task repository.EditTask) error {
	switch task.Kind {
	case repository.TaskIngest:
		return s.processIngest(ctx, task)
	case repository.TaskExport:
		return s.processExport(ctx, task)
	default:
		// Unknown kind - ack and drop rather than requeue forever
		slog.Error("dropping task with unknown kind",
			"kind", task.Kind,
			"project_id", task.ProjectID,
		)
		return nil
	}
}

// processIngest downloads and probes the uploaded source, then records the
// media properties and moves the project to READY.
func (s *exportService) processIngest(ctx context.Context, task repository.EditTask) error {
	if task.RetryCount >= s.maxRetries {
		// Give up; the project stays in PENDING_UPLOAD and the client may
		// re-trigger ingest.
		slog.Error("ingest retries exhausted",
			"project_id", task.ProjectID,
			"retry_count", task.RetryCount,
		)
		return nil
	}

	project, err := s.repo.GetByID(ctx, task.ProjectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if project.Status != model.StatusPendingUpload {
		return nil // Already ingested
	}

	workDir, err := s.createWorkDir(task.ProjectID)
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer s.cleanup(workDir)

	inputPath, err := s.downloadSource(ctx, task.SourceKey, workDir)
	if err != nil {
		return fmt.Errorf("download source: %w", err)
	}

	info, err := s.engine.Probe(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("probe source: %w", err)
	}

	project.ImportMedia(info)
	if err := project.TransitionTo(model.StatusReady); err != nil {
		return fmt.Errorf("transition to ready: %w", err)
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return fmt.Errorf("update project: %w", err)
	}

	return nil
}

// processExport compiles the timeline into a plan and executes it.
// Timeout and empty output are permanent failures: the project is marked
// EXPORT_FAILED and the message is acked.
func (s *exportService) processExport(ctx context.Context, task repository.EditTask) error {
	if task.RetryCount >= s.maxRetries {
		s.failExport(ctx, task.ProjectID, plan.Strategy("unknown"), metrics.ExportStatusFailed, "retries exhausted")
		return nil
	}

	project, err := s.repo.GetByID(ctx, task.ProjectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if !project.IsExporting() {
		// Export was never triggered or already finished - stale message
		return nil
	}

	workDir, err := s.createWorkDir(task.ProjectID)
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer s.cleanup(workDir)

	inputPath, err := s.downloadSource(ctx, task.SourceKey, workDir)
	if err != nil {
		return fmt.Errorf("download source: %w", err)
	}

	cfg := s.plannerCfg
	if task.Backend != "" {
		backend, err := plan.ParseBackend(task.Backend)
		if err != nil {
			s.failExport(ctx, task.ProjectID, plan.Strategy(task.Backend), metrics.ExportStatusFailed, err.Error())
			return nil
		}
		cfg.Backend = backend
	}

	outputPath := filepath.Join(workDir, filepath.Base(task.OutputKey))
	src := plan.Source{Path: inputPath, Info: project.Media}

	p, err := plan.Build(&project.Timeline, src, outputPath, workDir, cfg)
	if err != nil {
		// Plan compilation is deterministic; retrying cannot help.
		s.failExport(ctx, task.ProjectID, plan.Strategy("none"), metrics.ExportStatusFailed, err.Error())
		return nil
	}
	metrics.PlanBuildsTotal.WithLabelValues(string(p.Strategy)).Inc()

	started := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, s.exportTimeout)
	defer cancel()

	onProgress := func(fraction float64) {
		s.publishProgress(ctx, task.ProjectID, cache.ExportProgress{
			State:    "running",
			Fraction: fraction,
		})
	}

	if p.Frames != nil {
		err = s.renderer.Render(runCtx, p.Frames, inputPath, workDir, p.OutputPath, onProgress)
	} else {
		err = s.engine.Execute(runCtx, p.Steps, p.Aux, onProgress)
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			s.failExport(ctx, task.ProjectID, p.Strategy, metrics.ExportStatusTimeout, ErrExportTimeout.Error())
			return nil
		}
		metrics.ExportRunsTotal.WithLabelValues(string(p.Strategy), metrics.ExportStatusFailed).Inc()
		return fmt.Errorf("execute plan: %w", err)
	}

	if err := validateOutput(p.OutputPath); err != nil {
		s.failExport(ctx, task.ProjectID, p.Strategy, metrics.ExportStatusEmptyOutput, err.Error())
		return nil
	}

	if err := s.uploadOutput(ctx, p.OutputPath, task.OutputKey); err != nil {
		metrics.ExportRunsTotal.WithLabelValues(string(p.Strategy), metrics.ExportStatusFailed).Inc()
		return fmt.Errorf("upload output: %w", err)
	}

	if err := s.markExported(ctx, task.ProjectID, task.OutputKey); err != nil {
		return fmt.Errorf("update project: %w", err)
	}

	s.publishProgress(ctx, task.ProjectID, cache.ExportProgress{
		State:    "done",
		Fraction: 1,
	})
	metrics.ExportRunsTotal.WithLabelValues(string(p.Strategy), metrics.ExportStatusSuccess).Inc()
	metrics.ExportDurationSeconds.WithLabelValues(string(p.Strategy)).Observe(time.Since(started).Seconds())

	return nil
}

// validateOutput guards against the engine exiting zero while writing
// nothing usable.
func validateOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEmptyOutput, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyOutput, path)
	}
	return nil
}

// createWorkDir creates a scratch directory for processing a specific project.
func (s *exportService) createWorkDir(projectID uuid.UUID) (string, error) {
	workDir := filepath.Join(s.tempDir, "zoomcut", projectID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	return workDir, nil
}

// cleanup removes the scratch directory.
func (s *exportService) cleanup(workDir string) {
	_ = os.RemoveAll(workDir)
}

// downloadSource downloads the source video from object storage to a local file.
func (s *exportService) downloadSource(ctx context.Context, key, workDir string) (string, error) {
	reader, err := s.storage.Download(ctx, key)
	if err != nil {
		return "", fmt.Errorf("storage download: %w", err)
	}
	defer func() { _ = reader.Close() }()

	// Extract filename from key or use default
	filename := filepath.Base(key)
	if filename == "." || filename == "/" {
		filename = "source.mp4"
	}

	localPath := filepath.Join(workDir, filename)
	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("copy to local file: %w", err)
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close local file: %w", err)
	}

	return localPath, nil
}

// uploadOutput uploads the finished result to object storage.
func (s *exportService) uploadOutput(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := s.storage.Upload(ctx, key, file, "video/mp4"); err != nil {
		return fmt.Errorf("storage upload: %w", err)
	}

	return nil
}

// markExported records the output key and moves the project to EXPORTED.
func (s *exportService) markExported(ctx context.Context, projectID uuid.UUID, outputKey string) error {
	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}

	if !project.IsExporting() {
		// Project is not in expected state - log but don't fail
		return nil
	}

	project.SetOutputKey(outputKey)
	if err := project.TransitionTo(model.StatusExported); err != nil {
		return fmt.Errorf("transition to exported: %w", err)
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return fmt.Errorf("update project: %w", err)
	}

	return nil
}

// failExport marks the export as permanently failed: status EXPORT_FAILED,
// failure published to the progress store, metric recorded.
func (s *exportService) failExport(ctx context.Context, projectID uuid.UUID, strategy plan.Strategy, status, reason string) {
	metrics.ExportRunsTotal.WithLabelValues(string(strategy), status).Inc()

	s.publishProgress(ctx, projectID, cache.ExportProgress{
		State: "failed",
		Error: reason,
	})

	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		slog.Error("failed to load project for failure transition",
			"project_id", projectID,
			"error", err,
		)
		return
	}
	if !project.IsExporting() {
		return
	}

	if err := project.TransitionTo(model.StatusExportFailed); err != nil {
		slog.Error("failed to transition project to EXPORT_FAILED",
			"project_id", projectID,
			"error", err,
		)
		return
	}

	if err := s.repo.Update(ctx, project); err != nil {
		slog.Error("failed to persist EXPORT_FAILED status",
			"project_id", projectID,
			"error", err,
		)
	}
}

// publishProgress best-effort records export progress; failures are logged
// and never fail the run.
func (s *exportService) publishProgress(ctx context.Context, projectID uuid.UUID, progress cache.ExportProgress) {
	if s.progress == nil {
		return
	}
	if err := s.progress.SetExportProgress(ctx, projectID, progress); err != nil {
		slog.Warn("failed to publish export progress",
			"project_id", projectID,
			"error", err,
		)
	}
}
