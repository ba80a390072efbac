package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
)

// ProjectRepository defines the interface for project persistence operations.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type ProjectRepository interface {
	// Create persists a new project entity.
	// Returns error if the project already exists or persistence fails.
	Create(ctx context.Context, project *model.Project) error

	// GetByID retrieves a project by its unique identifier.
	// Returns nil and ErrProjectNotFound if the project does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error)

	// GetByOwnerID retrieves all projects belonging to an owner.
	// Returns empty slice if no projects exist for the owner.
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*model.Project, error)

	// Update persists changes to an existing project entity, including its
	// timeline document.
	// Returns ErrProjectNotFound if the project does not exist.
	Update(ctx context.Context, project *model.Project) error

	// UpdateStatus updates only the status field of a project.
	// This is optimized for status transitions without full entity update.
	// Returns ErrProjectNotFound if the project does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error
}
