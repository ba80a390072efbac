package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
	"github.com/zoomcut-dev/zoomcut/internal/infrastructure/cache"
	"github.com/zoomcut-dev/zoomcut/internal/infrastructure/metrics"
	"github.com/zoomcut-dev/zoomcut/internal/plan"
)

// CachedProjectServiceConfig holds configuration for CachedProjectService.
type CachedProjectServiceConfig struct {
	// CacheTTL is the TTL for cached project metadata.
	CacheTTL time.Duration
}

// DefaultCachedProjectServiceConfig returns the default configuration.
func DefaultCachedProjectServiceConfig() CachedProjectServiceConfig {
	return CachedProjectServiceConfig{
		CacheTTL: 5 * time.Minute,
	}
}

// cachedProjectService wraps ProjectService with caching capabilities.
// It implements the decorator pattern to add caching without modifying the
// original service. Every timeline mutation invalidates the cached entry
// before delegating, so a read after a write never sees the stale timeline.
type cachedProjectService struct {
	delegate ProjectService
	cache    cache.ProjectCache
	sfGroup  singleflight.Group

	cacheTTL time.Duration
}

// NewCachedProjectService creates a new CachedProjectService wrapping the provided ProjectService.
func NewCachedProjectService(
	delegate ProjectService,
	projectCache cache.ProjectCache,
	cfg CachedProjectServiceConfig,
) ProjectService {
	return &cachedProjectService{
		delegate: delegate,
		cache:    projectCache,
		cacheTTL: cfg.CacheTTL,
	}
}

// CreateProject delegates to the underlying service.
// No caching for create operations - the project is immediately returned.
func (s *cachedProjectService) CreateProject(ctx context.Context, input CreateProjectInput) (*CreateProjectOutput, error) {
	return s.delegate.CreateProject(ctx, input)
}

// TriggerIngest invalidates the cache and delegates to the underlying service.
// Invalidation happens before the worker flips the project to READY, so the
// next GetProject fetches fresh data.
func (s *cachedProjectService) TriggerIngest(ctx context.Context, projectID uuid.UUID) error {
	s.invalidate(ctx, projectID)
	return s.delegate.TriggerIngest(ctx, projectID)
}

// GetProject retrieves project information with caching.
// Uses singleflight to prevent cache stampede on concurrent requests for the same project.
func (s *cachedProjectService) GetProject(ctx context.Context, projectID uuid.UUID) (*model.Project, error) {
	key := projectID.String()
	result, err, shared := s.sfGroup.Do(key, func() (any, error) {
		return s.getProjectWithCache(ctx, projectID)
	})

	// Record singleflight metrics
	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return nil, err
	}

	return result.(*model.Project), nil
}

// getProjectWithCache implements the cache-aside pattern.
func (s *cachedProjectService) getProjectWithCache(ctx context.Context, projectID uuid.UUID) (*model.Project, error) {
	// Try cache first
	project, err := s.cache.Get(ctx, projectID)
	if err != nil {
		// Log cache error but continue to database
		slog.Warn("cache get failed, falling back to database",
			"project_id", projectID,
			"error", err,
		)
	}

	if project != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, metrics.CacheTypeRedis).Inc()
		return project, nil // Cache hit
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeRedis).Inc()

	// Cache miss - fetch from database
	project, err = s.delegate.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	// Store in cache (async-safe: errors logged but not propagated)
	if err := s.cache.Set(ctx, project, s.cacheTTL); err != nil {
		slog.Warn("failed to cache project",
			"project_id", projectID,
			"error", err,
		)
	}

	return project, nil
}

// ListProjects delegates to the underlying service.
// Listings are not cached; they change with every project mutation.
func (s *cachedProjectService) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*model.Project, error) {
	return s.delegate.ListProjects(ctx, ownerID)
}

// AddZoomEffect invalidates the cache and delegates.
func (s *cachedProjectService) AddZoomEffect(ctx context.Context, projectID uuid.UUID, playhead float64) (*model.Project, error) {
	s.invalidate(ctx, projectID)
	return s.delegate.AddZoomEffect(ctx, projectID, playhead)
}

// UpdateZoomEffect invalidates the cache and delegates.
func (s *cachedProjectService) UpdateZoomEffect(ctx context.Context, projectID, effectID uuid.UUID, patch model.ZoomEffectPatch) (*model.Project, error) {
	s.invalidate(ctx, projectID)
	return s.delegate.UpdateZoomEffect(ctx, projectID, effectID, patch)
}

// DeleteZoomEffect invalidates the cache and delegates.
func (s *cachedProjectService) DeleteZoomEffect(ctx context.Context, projectID, effectID uuid.UUID) (*model.Project, error) {
	s.invalidate(ctx, projectID)
	return s.delegate.DeleteZoomEffect(ctx, projectID, effectID)
}

// AddTrimSegment invalidates the cache and delegates.
func (s *cachedProjectService) AddTrimSegment(ctx context.Context, projectID uuid.UUID, start, end float64) (*model.Project, error) {
	s.invalidate(ctx, projectID)
	return s.delegate.AddTrimSegment(ctx, projectID, start, end)
}

// AddCutPoint invalidates the cache and delegates.
func (s *cachedProjectService) AddCutPoint(ctx context.Context, projectID uuid.UUID, at float64) (*model.Project, error) {
	s.invalidate(ctx, projectID)
	return s.delegate.AddCutPoint(ctx, projectID, at)
}

// Preview delegates to the underlying service. Preview is a pure function
// of the timeline; the underlying GetByID read stays uncached so a preview
// immediately after a mutation reflects it.
func (s *cachedProjectService) Preview(ctx context.Context, projectID uuid.UUID, t float64) (plan.View, error) {
	return s.delegate.Preview(ctx, projectID, t)
}

// TriggerExport invalidates the cache and delegates.
// Invalidation covers the READY to EXPORTING transition.
func (s *cachedProjectService) TriggerExport(ctx context.Context, projectID uuid.UUID, backend string) error {
	s.invalidate(ctx, projectID)
	return s.delegate.TriggerExport(ctx, projectID, backend)
}

// GetExportDownloadURL delegates to the underlying service.
func (s *cachedProjectService) GetExportDownloadURL(ctx context.Context, projectID uuid.UUID) (string, error) {
	return s.delegate.GetExportDownloadURL(ctx, projectID)
}

// invalidate removes a project from the cache, logging failures.
// Cache invalidation failure is non-critical; the entry expires by TTL.
func (s *cachedProjectService) invalidate(ctx context.Context, projectID uuid.UUID) {
	if err := s.cache.Delete(ctx, projectID); err != nil {
		slog.Warn("failed to invalidate project cache",
			"project_id", projectID,
			"error", err,
		)
		return
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpDelete, metrics.CacheStatusSuccess, metrics.CacheTypeRedis).Inc()
}
