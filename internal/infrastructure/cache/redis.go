package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
)

const (
	// projectCacheKeyPrefix is the prefix for project cache keys in Redis.
	projectCacheKeyPrefix = "project:"

	// exportProgressKeySuffix marks the progress entry of an export run.
	exportProgressKeySuffix = ":export:progress"

	// exportProgressTTL bounds how long a stale progress entry lingers after
	// a run finishes or a worker dies mid-export.
	exportProgressTTL = 10 * time.Minute
)

// projectJSON is the JSON representation of a Project for caching.
// Using explicit struct avoids coupling to domain model's JSON tags.
type projectJSON struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"owner_id"`
	Title      string         `json:"title"`
	SourceKey  string         `json:"source_key"`
	SourceName string         `json:"source_name"`
	OutputKey  string         `json:"output_key"`
	Status     string         `json:"status"`
	Duration   float64        `json:"duration"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Timeline   model.Timeline `json:"timeline"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

// RedisProjectCache implements ProjectCache using Redis as the backing store.
type RedisProjectCache struct {
	client *redis.Client
}

// NewRedisProjectCache creates a new Redis-backed project cache.
func NewRedisProjectCache(client *redis.Client) *RedisProjectCache {
	return &RedisProjectCache{
		client: client,
	}
}

// Get retrieves a project from Redis cache.
// Returns nil, nil on cache miss.
func (c *RedisProjectCache) Get(ctx context.Context, projectID uuid.UUID) (*model.Project, error) {
	key := c.buildKey(projectID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	project, err := c.deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("deserialize project: %w", err)
	}

	return project, nil
}

// Set stores a project in Redis cache with the specified TTL.
func (c *RedisProjectCache) Set(ctx context.Context, project *model.Project, ttl time.Duration) error {
	key := c.buildKey(project.ID)

	data, err := c.serialize(project)
	if err != nil {
		return fmt.Errorf("serialize project: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a project from Redis cache.
func (c *RedisProjectCache) Delete(ctx context.Context, projectID uuid.UUID) error {
	key := c.buildKey(projectID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// buildKey constructs the Redis key for a project.
func (c *RedisProjectCache) buildKey(projectID uuid.UUID) string {
	return projectCacheKeyPrefix + projectID.String()
}

// serialize converts a Project to JSON bytes.
func (c *RedisProjectCache) serialize(project *model.Project) ([]byte, error) {
	p := projectJSON{
		ID:         project.ID.String(),
		OwnerID:    project.OwnerID.String(),
		Title:      project.Title,
		SourceKey:  project.SourceKey,
		SourceName: project.SourceName,
		OutputKey:  project.OutputKey,
		Status:     string(project.Status),
		Duration:   project.Media.Duration,
		Width:      project.Media.Width,
		Height:     project.Media.Height,
		Timeline:   project.Timeline,
		CreatedAt:  project.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:  project.UpdatedAt.Format(time.RFC3339Nano),
	}
	return json.Marshal(p)
}

// deserialize converts JSON bytes to a Project.
func (c *RedisProjectCache) deserialize(data []byte) (*model.Project, error) {
	var p projectJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("parse project ID: %w", err)
	}

	ownerID, err := uuid.Parse(p.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("parse owner ID: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &model.Project{
		ID:         id,
		OwnerID:    ownerID,
		Title:      p.Title,
		SourceKey:  p.SourceKey,
		SourceName: p.SourceName,
		OutputKey:  p.OutputKey,
		Status:     model.Status(p.Status),
		Media: model.MediaInfo{
			Duration: p.Duration,
			Width:    p.Width,
			Height:   p.Height,
		},
		Timeline:  p.Timeline,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// Compile-time verification that RedisProjectCache implements ProjectCache.
var _ ProjectCache = (*RedisProjectCache)(nil)

// RedisProgressStore implements ProgressStore on Redis. Progress entries
// expire on their own so an abandoned run cannot leave a permanent key.
type RedisProgressStore struct {
	client *redis.Client
}

// NewRedisProgressStore creates a new Redis-backed export progress store.
func NewRedisProgressStore(client *redis.Client) *RedisProgressStore {
	return &RedisProgressStore{
		client: client,
	}
}

// SetExportProgress records the current progress of a project's export.
func (s *RedisProgressStore) SetExportProgress(ctx context.Context, projectID uuid.UUID, progress ExportProgress) error {
	progress.UpdatedAt = time.Now()

	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("serialize progress: %w", err)
	}

	key := s.buildKey(projectID)
	if err := s.client.Set(ctx, key, data, exportProgressTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// GetExportProgress returns the last recorded progress.
// Returns nil, nil when no export is being tracked for the project.
func (s *RedisProgressStore) GetExportProgress(ctx context.Context, projectID uuid.UUID) (*ExportProgress, error) {
	key := s.buildKey(projectID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var progress ExportProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("deserialize progress: %w", err)
	}

	return &progress, nil
}

// buildKey constructs the Redis key for a project's export progress.
func (s *RedisProgressStore) buildKey(projectID uuid.UUID) string {
	return projectCacheKeyPrefix + projectID.String() + exportProgressKeySuffix
}

// Compile-time verification that RedisProgressStore implements ProgressStore.
var _ ProgressStore = (*RedisProgressStore)(nil)
