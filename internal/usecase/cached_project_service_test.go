package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
)

func TestCachedProjectService_GetProject(t *testing.T) {
	t.Run("cache hit skips the repository", func(t *testing.T) {
		project := readyProject(t, 60)

		repo := &mockProjectRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
				t.Error("repository should not be hit on cache hit")
				return nil, nil
			},
		}
		projectCache := &mockProjectCache{
			getFn: func(ctx context.Context, projectID uuid.UUID) (*model.Project, error) {
				return project, nil
			},
		}

		inner := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())
		svc := NewCachedProjectService(inner, projectCache, DefaultCachedProjectServiceConfig())

		got, err := svc.GetProject(context.Background(), project.ID)
		if err != nil {
			t.Fatalf("GetProject failed: %v", err)
		}
		if got.ID != project.ID {
			t.Errorf("ID = %v, want %v", got.ID, project.ID)
		}
	})

	t.Run("cache miss loads and populates", func(t *testing.T) {
		project := readyProject(t, 60)

		repo := &mockProjectRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
				return project, nil
			},
		}
		var cached *model.Project
		var cachedTTL time.Duration
		projectCache := &mockProjectCache{
			setFn: func(ctx context.Context, p *model.Project, ttl time.Duration) error {
				cached = p
				cachedTTL = ttl
				return nil
			},
		}

		inner := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())
		svc := NewCachedProjectService(inner, projectCache, DefaultCachedProjectServiceConfig())

		got, err := svc.GetProject(context.Background(), project.ID)
		if err != nil {
			t.Fatalf("GetProject failed: %v", err)
		}
		if got.ID != project.ID {
			t.Errorf("ID = %v, want %v", got.ID, project.ID)
		}
		if cached == nil || cached.ID != project.ID {
			t.Error("project was not written back to the cache")
		}
		if cachedTTL != 5*time.Minute {
			t.Errorf("TTL = %v, want default 5m", cachedTTL)
		}
	})

	t.Run("cache error falls back to repository", func(t *testing.T) {
		project := readyProject(t, 60)

		repo := &mockProjectRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
				return project, nil
			},
		}
		projectCache := &mockProjectCache{
			getFn: func(ctx context.Context, projectID uuid.UUID) (*model.Project, error) {
				return nil, errors.New("connection refused")
			},
		}

		inner := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())
		svc := NewCachedProjectService(inner, projectCache, DefaultCachedProjectServiceConfig())

		got, err := svc.GetProject(context.Background(), project.ID)
		if err != nil {
			t.Fatalf("GetProject failed: %v", err)
		}
		if got.ID != project.ID {
			t.Errorf("ID = %v, want %v", got.ID, project.ID)
		}
	})

	t.Run("concurrent requests share one load", func(t *testing.T) {
		project := readyProject(t, 60)

		var mu sync.Mutex
		loads := 0
		release := make(chan struct{})
		repo := &mockProjectRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
				mu.Lock()
				loads++
				mu.Unlock()
				<-release
				return project, nil
			},
		}

		inner := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())
		svc := NewCachedProjectService(inner, &mockProjectCache{}, DefaultCachedProjectServiceConfig())

		const concurrency = 8
		var wg sync.WaitGroup
		started := make(chan struct{}, concurrency)
		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				started <- struct{}{}
				if _, err := svc.GetProject(context.Background(), project.ID); err != nil {
					t.Errorf("GetProject failed: %v", err)
				}
			}()
		}
		for i := 0; i < concurrency; i++ {
			<-started
		}
		// Give the goroutines a moment to pile onto the singleflight key.
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		mu.Lock()
		defer mu.Unlock()
		if loads >= concurrency {
			t.Errorf("loads = %d, want fewer than %d shared by singleflight", loads, concurrency)
		}
	})
}

func TestCachedProjectService_InvalidatesOnMutation(t *testing.T) {
	project := readyProject(t, 60)

	repo := &mockProjectRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
			return project, nil
		},
	}

	deletes := 0
	projectCache := &mockProjectCache{
		deleteFn: func(ctx context.Context, projectID uuid.UUID) error {
			deletes++
			return nil
		},
	}

	inner := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())
	svc := NewCachedProjectService(inner, projectCache, DefaultCachedProjectServiceConfig())
	ctx := context.Background()

	mutations := []struct {
		name string
		call func() error
	}{
		{"AddZoomEffect", func() error {
			_, err := svc.AddZoomEffect(ctx, project.ID, 5)
			return err
		}},
		{"UpdateZoomEffect", func() error {
			zoom := 200.0
			_, err := svc.UpdateZoomEffect(ctx, project.ID, project.Timeline.Effects[0].ID, model.ZoomEffectPatch{ZoomLevel: &zoom})
			return err
		}},
		{"AddTrimSegment", func() error {
			_, err := svc.AddTrimSegment(ctx, project.ID, 1, 10)
			return err
		}},
		{"AddCutPoint", func() error {
			_, err := svc.AddCutPoint(ctx, project.ID, 20)
			return err
		}},
		{"DeleteZoomEffect", func() error {
			_, err := svc.DeleteZoomEffect(ctx, project.ID, project.Timeline.Effects[0].ID)
			return err
		}},
		{"TriggerExport", func() error {
			return svc.TriggerExport(ctx, project.ID, "")
		}},
	}

	for i, m := range mutations {
		if err := m.call(); err != nil {
			t.Fatalf("%s failed: %v", m.name, err)
		}
		if deletes != i+1 {
			t.Errorf("after %s: deletes = %d, want %d", m.name, deletes, i+1)
		}
	}
}

func TestCachedProjectService_InvalidationFailureIsNonFatal(t *testing.T) {
	project := readyProject(t, 60)

	repo := &mockProjectRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
			return project, nil
		},
	}
	projectCache := &mockProjectCache{
		deleteFn: func(ctx context.Context, projectID uuid.UUID) error {
			return errors.New("connection refused")
		},
	}

	inner := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())
	svc := NewCachedProjectService(inner, projectCache, DefaultCachedProjectServiceConfig())

	if _, err := svc.AddZoomEffect(context.Background(), project.ID, 5); err != nil {
		t.Fatalf("mutation should survive cache invalidation failure: %v", err)
	}
}
