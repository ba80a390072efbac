package cache

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
)

// ProjectCache defines the interface for caching project metadata, including
// the timeline document.
// Implementations should handle serialization/deserialization transparently.
type ProjectCache interface {
	// Get retrieves a project from cache by ID.
	// Returns nil, nil if the project is not found in cache (cache miss).
	Get(ctx context.Context, projectID uuid.UUID) (*model.Project, error)

	// Set stores a project in cache with the specified TTL.
	Set(ctx context.Context, project *model.Project, ttl time.Duration) error

	// Delete removes a project from cache by ID.
	// Returns nil if the project was not in cache.
	Delete(ctx context.Context, projectID uuid.UUID) error
}

// ExportProgress is the live progress of an export run, published by the
// worker and polled by the API.
type ExportProgress struct {
	State     string    `json:"state"`
	Fraction  float64   `json:"fraction"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressStore publishes and reads export progress. Entries are transient;
// implementations should expire them shortly after the run finishes.
type ProgressStore interface {
	// SetExportProgress records the current progress of a project's export.
	SetExportProgress(ctx context.Context, projectID uuid.UUID, progress ExportProgress) error

	// GetExportProgress returns the last recorded progress.
	// Returns nil, nil when no export is being tracked for the project.
	GetExportProgress(ctx context.Context, projectID uuid.UUID) (*ExportProgress, error)
}
