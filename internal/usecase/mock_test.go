package usecase

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
	"github.com/zoomcut-dev/zoomcut/internal/domain/repository"
	"github.com/zoomcut-dev/zoomcut/internal/infrastructure/cache"
	"github.com/zoomcut-dev/zoomcut/internal/plan"
	"github.com/zoomcut-dev/zoomcut/internal/transcoder"
)

// mockProjectRepository provides a configurable mock for ProjectRepository.
type mockProjectRepository struct {
	createFn       func(ctx context.Context, project *model.Project) error
	getByIDFn      func(ctx context.Context, id uuid.UUID) (*model.Project, error)
	getByOwnerIDFn func(ctx context.Context, ownerID uuid.UUID) ([]*model.Project, error)
	updateFn       func(ctx context.Context, project *model.Project) error
	updateStatusFn func(ctx context.Context, id uuid.UUID, status model.Status) error
}

func (m *mockProjectRepository) Create(ctx context.Context, project *model.Project) error {
	if m.createFn != nil {
		return m.createFn(ctx, project)
	}
	return nil
}

func (m *mockProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockProjectRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*model.Project, error) {
	if m.getByOwnerIDFn != nil {
		return m.getByOwnerIDFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockProjectRepository) Update(ctx context.Context, project *model.Project) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, project)
	}
	return nil
}

func (m *mockProjectRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
type mockObjectStorage struct {
	generatePresignedUploadURLFn   func(ctx context.Context, key string, expiry time.Duration) (string, error)
	generatePresignedDownloadURLFn func(ctx context.Context, key string, expiry time.Duration) (string, error)
	uploadFn                       func(ctx context.Context, key string, reader io.Reader, contentType string) error
	downloadFn                     func(ctx context.Context, key string) (io.ReadCloser, error)
	deleteFn                       func(ctx context.Context, key string) error
	existsFn                       func(ctx context.Context, key string) (bool, error)
}

func (m *mockObjectStorage) GeneratePresignedUploadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.generatePresignedUploadURLFn != nil {
		return m.generatePresignedUploadURLFn(ctx, key, expiry)
	}
	return "http://example.com/upload", nil
}

func (m *mockObjectStorage) GeneratePresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.generatePresignedDownloadURLFn != nil {
		return m.generatePresignedDownloadURLFn(ctx, key, expiry)
	}
	return "http://example.com/download", nil
}

func (m *mockObjectStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, reader, contentType)
	}
	return nil
}

func (m *mockObjectStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, key)
	}
	return io.NopCloser(strings.NewReader("video bytes")), nil
}

func (m *mockObjectStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return true, nil
}

// mockMessageQueue provides a configurable mock for MessageQueue.
type mockMessageQueue struct {
	publishEditTaskFn  func(ctx context.Context, task repository.EditTask) error
	consumeEditTasksFn func(ctx context.Context, handler func(task repository.EditTask) error) error
}

func (m *mockMessageQueue) PublishEditTask(ctx context.Context, task repository.EditTask) error {
	if m.publishEditTaskFn != nil {
		return m.publishEditTaskFn(ctx, task)
	}
	return nil
}

func (m *mockMessageQueue) ConsumeEditTasks(ctx context.Context, handler func(task repository.EditTask) error) error {
	if m.consumeEditTasksFn != nil {
		return m.consumeEditTasksFn(ctx, handler)
	}
	return nil
}

func (m *mockMessageQueue) Close() error {
	return nil
}

// mockEngine provides a configurable mock for the transcoding engine.
type mockEngine struct {
	probeFn   func(ctx context.Context, inputPath string) (model.MediaInfo, error)
	executeFn func(ctx context.Context, steps []plan.Step, aux []plan.AuxFile, onProgress transcoder.ProgressFunc) error
}

func (m *mockEngine) Probe(ctx context.Context, inputPath string) (model.MediaInfo, error) {
	if m.probeFn != nil {
		return m.probeFn(ctx, inputPath)
	}
	return model.MediaInfo{Duration: 60, Width: 1920, Height: 1080}, nil
}

func (m *mockEngine) Execute(ctx context.Context, steps []plan.Step, aux []plan.AuxFile, onProgress transcoder.ProgressFunc) error {
	if m.executeFn != nil {
		return m.executeFn(ctx, steps, aux, onProgress)
	}
	return nil
}

// mockRenderer provides a configurable mock for the frame-render path.
type mockRenderer struct {
	renderFn func(ctx context.Context, schedule *plan.FrameSchedule, inputPath, workDir, outputPath string, onProgress transcoder.ProgressFunc) error
}

func (m *mockRenderer) Render(ctx context.Context, schedule *plan.FrameSchedule, inputPath, workDir, outputPath string, onProgress transcoder.ProgressFunc) error {
	if m.renderFn != nil {
		return m.renderFn(ctx, schedule, inputPath, workDir, outputPath, onProgress)
	}
	return nil
}

// mockProjectCache provides a configurable mock for ProjectCache.
type mockProjectCache struct {
	getFn    func(ctx context.Context, projectID uuid.UUID) (*model.Project, error)
	setFn    func(ctx context.Context, project *model.Project, ttl time.Duration) error
	deleteFn func(ctx context.Context, projectID uuid.UUID) error
}

func (m *mockProjectCache) Get(ctx context.Context, projectID uuid.UUID) (*model.Project, error) {
	if m.getFn != nil {
		return m.getFn(ctx, projectID)
	}
	return nil, nil
}

func (m *mockProjectCache) Set(ctx context.Context, project *model.Project, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, project, ttl)
	}
	return nil
}

func (m *mockProjectCache) Delete(ctx context.Context, projectID uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, projectID)
	}
	return nil
}

// mockProgressStore provides a configurable mock for ProgressStore.
type mockProgressStore struct {
	setFn func(ctx context.Context, projectID uuid.UUID, progress cache.ExportProgress) error
	getFn func(ctx context.Context, projectID uuid.UUID) (*cache.ExportProgress, error)
}

func (m *mockProgressStore) SetExportProgress(ctx context.Context, projectID uuid.UUID, progress cache.ExportProgress) error {
	if m.setFn != nil {
		return m.setFn(ctx, projectID, progress)
	}
	return nil
}

func (m *mockProgressStore) GetExportProgress(ctx context.Context, projectID uuid.UUID) (*cache.ExportProgress, error) {
	if m.getFn != nil {
		return m.getFn(ctx, projectID)
	}
	return nil, nil
}
