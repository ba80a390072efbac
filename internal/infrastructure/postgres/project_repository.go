package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
	"github.com/zoomcut-dev/zoomcut/internal/domain/repository"
	"github.com/zoomcut-dev/zoomcut/internal/infrastructure/metrics"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProjectRepository implements repository.ProjectRepository using PostgreSQL.
// The timeline document is persisted as a JSONB column alongside the scalar
// project fields.
type ProjectRepository struct {
	db DBTX
}

// NewProjectRepository creates a new ProjectRepository instance.
func NewProjectRepository(db DBTX) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create persists a new project entity.
func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	const query = `
		INSERT INTO projects (id, owner_id, title, source_key, source_name, output_key,
			status, duration, width, height, timeline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	timeline, err := json.Marshal(project.Timeline)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryInsert, metrics.TableProjects).Inc()
	_, err = r.db.Exec(ctx, query,
		project.ID,
		project.OwnerID,
		project.Title,
		nullString(project.SourceKey),
		nullString(project.SourceName),
		nullString(project.OutputKey),
		project.Status.String(),
		project.Media.Duration,
		project.Media.Width,
		project.Media.Height,
		timeline,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateProject
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetByID retrieves a project by its unique identifier.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	const query = `
		SELECT id, owner_id, title, source_key, source_name, output_key,
			status, duration, width, height, timeline, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableProjects).Inc()
	project, err := scanProject(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project by ID: %w", err)
	}

	return project, nil
}

// GetByOwnerID retrieves all projects belonging to an owner.
func (r *ProjectRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*model.Project, error) {
	const query = `
		SELECT id, owner_id, title, source_key, source_name, output_key,
			status, duration, width, height, timeline, created_at, updated_at
		FROM projects
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableProjects).Inc()
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects by owner ID: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// Update persists changes to an existing project entity, including its
// timeline document.
func (r *ProjectRepository) Update(ctx context.Context, project *model.Project) error {
	const query = `
		UPDATE projects
		SET title = $2, source_key = $3, source_name = $4, output_key = $5,
			status = $6, duration = $7, width = $8, height = $9, timeline = $10,
			updated_at = $11
		WHERE id = $1
	`

	timeline, err := json.Marshal(project.Timeline)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}

	project.UpdatedAt = time.Now()

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpdate, metrics.TableProjects).Inc()
	tag, err := r.db.Exec(ctx, query,
		project.ID,
		project.Title,
		nullString(project.SourceKey),
		nullString(project.SourceName),
		nullString(project.OutputKey),
		project.Status.String(),
		project.Media.Duration,
		project.Media.Width,
		project.Media.Height,
		timeline,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrProjectNotFound
	}

	return nil
}

// UpdateStatus updates only the status field of a project.
func (r *ProjectRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	const query = `
		UPDATE projects
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpdate, metrics.TableProjects).Inc()
	tag, err := r.db.Exec(ctx, query, id, status.String(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrProjectNotFound
	}

	return nil
}

// scanProject scans a single row into a Project model.
func scanProject(row pgx.Row) (*model.Project, error) {
	var (
		project    model.Project
		status     string
		sourceKey  *string
		sourceName *string
		outputKey  *string
		timeline   []byte
	)

	err := row.Scan(
		&project.ID,
		&project.OwnerID,
		&project.Title,
		&sourceKey,
		&sourceName,
		&outputKey,
		&status,
		&project.Media.Duration,
		&project.Media.Width,
		&project.Media.Height,
		&timeline,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	project.Status = model.Status(status)
	if sourceKey != nil {
		project.SourceKey = *sourceKey
	}
	if sourceName != nil {
		project.SourceName = *sourceName
	}
	if outputKey != nil {
		project.OutputKey = *outputKey
	}
	if len(timeline) > 0 {
		if err := json.Unmarshal(timeline, &project.Timeline); err != nil {
			return nil, fmt.Errorf("failed to unmarshal timeline: %w", err)
		}
	}

	return &project, nil
}

// nullString returns nil for empty strings, otherwise returns a pointer to the string.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time verification that ProjectRepository implements repository.ProjectRepository.
var _ repository.ProjectRepository = (*ProjectRepository)(nil)
