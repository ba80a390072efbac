package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zoomcut-dev/zoomcut/internal/domain/model"
	"github.com/zoomcut-dev/zoomcut/internal/domain/repository"
)

// readyProject builds a project with imported media for timeline tests.
func readyProject(t *testing.T, duration float64) *model.Project {
	t.Helper()

	project, err := model.NewProject(uuid.New(), "Demo Recording")
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}
	project.SetSource("sources/"+project.ID.String()+"/clip.mp4", "clip.mp4")
	project.ImportMedia(model.MediaInfo{Duration: duration, Width: 1920, Height: 1080})
	if err := project.TransitionTo(model.StatusReady); err != nil {
		t.Fatalf("TransitionTo failed: %v", err)
	}
	return project
}

func TestProjectService_CreateProject(t *testing.T) {
	tests := []struct {
		name      string
		input     CreateProjectInput
		setupMock func(repo *mockProjectRepository, storage *mockObjectStorage)
		wantErr   error
		checkFn   func(t *testing.T, output *CreateProjectOutput)
	}{
		{
			name: "successful creation",
			input: CreateProjectInput{
				OwnerID:  uuid.New(),
				Title:    "Demo Recording",
				FileName: "clip.mp4",
			},
			setupMock: func(repo *mockProjectRepository, storage *mockObjectStorage) {
				storage.generatePresignedUploadURLFn = func(ctx context.Context, key string, expiry time.Duration) (string, error) {
					if !strings.HasPrefix(key, "sources/") {
						t.Errorf("unexpected key prefix: %s", key)
					}
					if !strings.HasSuffix(key, "/clip.mp4") {
						t.Errorf("key should end with filename: %s", key)
					}
					return "http://minio:9000/bucket/upload?signature=xyz", nil
				}
				repo.createFn = func(ctx context.Context, project *model.Project) error {
					return nil
				}
			},
			wantErr: nil,
			checkFn: func(t *testing.T, output *CreateProjectOutput) {
				if output.Project == nil {
					t.Fatal("expected project to be non-nil")
				}
				if output.Project.Status != model.StatusPendingUpload {
					t.Errorf("expected status %s, got %s", model.StatusPendingUpload, output.Project.Status)
				}
				if output.Project.SourceName != "clip.mp4" {
					t.Errorf("SourceName = %s, want clip.mp4", output.Project.SourceName)
				}
				if output.UploadURL == "" {
					t.Error("expected upload URL to be non-empty")
				}
			},
		},
		{
			name: "invalid owner ID",
			input: CreateProjectInput{
				OwnerID:  uuid.Nil,
				Title:    "Demo Recording",
				FileName: "clip.mp4",
			},
			setupMock: func(repo *mockProjectRepository, storage *mockObjectStorage) {},
			wantErr:   model.ErrInvalidOwnerID,
		},
		{
			name: "empty title",
			input: CreateProjectInput{
				OwnerID:  uuid.New(),
				Title:    "",
				FileName: "clip.mp4",
			},
			setupMock: func(repo *mockProjectRepository, storage *mockObjectStorage) {},
			wantErr:   model.ErrEmptyTitle,
		},
		{
			name: "title too long",
			input: CreateProjectInput{
				OwnerID:  uuid.New(),
				Title:    strings.Repeat("a", 256),
				FileName: "clip.mp4",
			},
			setupMock: func(repo *mockProjectRepository, storage *mockObjectStorage) {},
			wantErr:   model.ErrTitleTooLong,
		},
		{
			name: "storage error",
			input: CreateProjectInput{
				OwnerID:  uuid.New(),
				Title:    "Demo Recording",
				FileName: "clip.mp4",
			},
			setupMock: func(repo *mockProjectRepository, storage *mockObjectStorage) {
				storage.generatePresignedUploadURLFn = func(ctx context.Context, key string, expiry time.Duration) (string, error) {
					return "", errors.New("storage unavailable")
				}
			},
			wantErr: errors.New("generate presigned upload URL"),
		},
		{
			name: "repository error",
			input: CreateProjectInput{
				OwnerID:  uuid.New(),
				Title:    "Demo Recording",
				FileName: "clip.mp4",
			},
			setupMock: func(repo *mockProjectRepository, storage *mockObjectStorage) {
				repo.createFn = func(ctx context.Context, project *model.Project) error {
					return errors.New("database error")
				}
			},
			wantErr: errors.New("create project"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockProjectRepository{}
			storage := &mockObjectStorage{}
			queue := &mockMessageQueue{}
			tt.setupMock(repo, storage)

			svc := NewProjectService(repo, storage, queue, DefaultProjectServiceConfig())
			output, err := svc.CreateProject(context.Background(), tt.input)

			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, tt.wantErr) && !strings.Contains(err.Error(), tt.wantErr.Error()) {
					t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error = %v", err)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, output)
			}
		})
	}
}

func TestProjectService_TriggerIngest(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(repo *mockProjectRepository, storage *mockObjectStorage, queue *mockMessageQueue)
		wantErr     error
		wantPublish bool
	}{
		{
			name: "publishes ingest task for pending project",
			setupMock: func(repo *mockProjectRepository, storage *mockObjectStorage, queue *mockMessageQueue) {
				project, _ := model.NewProject(uuid.New(), "Demo Recording")
				project.SetSource("sources/"+project.ID.String()+"/clip.mp4", "clip.mp4")
				repo.getByIDFn = func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
					return project, nil
				}
			},
			wantPublish: true,
		},
		{
			name: "idempotent for already ingested project",
			setupMock: func(repo *mockProjectRepository, storage *mockObjectStorage, queue *mockMessageQueue) {
				project := readyProject(t, 60)
				repo.getByIDFn = func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
					return project, nil
				}
			},
			wantPublish: false,
		},
		{
			name: "source not yet uploaded",
			setupMock: func(repo *mockProjectRepository, storage *mockObjectStorage, queue *mockMessageQueue) {
				project, _ := model.NewProject(uuid.New(), "Demo Recording")
				project.SetSource("sources/"+project.ID.String()+"/clip.mp4", "clip.mp4")
				repo.getByIDFn = func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
					return project, nil
				}
				storage.existsFn = func(ctx context.Context, key string) (bool, error) {
					return false, nil
				}
			},
			wantErr: ErrSourceNotUploaded,
		},
		{
			name: "project not found",
			setupMock: func(repo *mockProjectRepository, storage *mockObjectStorage, queue *mockMessageQueue) {
				repo.getByIDFn = func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
					return nil, repository.ErrProjectNotFound
				}
			},
			wantErr: repository.ErrProjectNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockProjectRepository{}
			storage := &mockObjectStorage{}
			queue := &mockMessageQueue{}

			var published *repository.EditTask
			queue.publishEditTaskFn = func(ctx context.Context, task repository.EditTask) error {
				published = &task
				return nil
			}

			tt.setupMock(repo, storage, queue)

			svc := NewProjectService(repo, storage, queue, DefaultProjectServiceConfig())
			err := svc.TriggerIngest(context.Background(), uuid.New())

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error = %v", err)
			}

			if tt.wantPublish != (published != nil) {
				t.Errorf("published = %v, want %v", published != nil, tt.wantPublish)
			}
			if published != nil && published.Kind != repository.TaskIngest {
				t.Errorf("task kind = %v, want %v", published.Kind, repository.TaskIngest)
			}
		})
	}
}

func TestProjectService_TimelineMutations(t *testing.T) {
	t.Run("add zoom effect persists timeline", func(t *testing.T) {
		project := readyProject(t, 60)
		repo := &mockProjectRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
				return project, nil
			},
		}
		var updated *model.Project
		repo.updateFn = func(ctx context.Context, p *model.Project) error {
			updated = p
			return nil
		}

		svc := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())
		got, err := svc.AddZoomEffect(context.Background(), project.ID, 12)
		if err != nil {
			t.Fatalf("AddZoomEffect failed: %v", err)
		}

		if len(got.Timeline.Effects) != 1 {
			t.Fatalf("Effects = %d, want 1", len(got.Timeline.Effects))
		}
		effect := got.Timeline.Effects[0]
		if effect.StartTime != 12 || effect.EndTime != 17 {
			t.Errorf("effect span = [%v,%v], want [12,17]", effect.StartTime, effect.EndTime)
		}
		if updated == nil {
			t.Error("mutation was not persisted")
		}
	})

	t.Run("update unknown effect is a no-op", func(t *testing.T) {
		project := readyProject(t, 60)
		project.Timeline.AddZoomEffect(5)
		before := project.Timeline.Effects[0]

		repo := &mockProjectRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
				return project, nil
			},
		}

		svc := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())
		zoom := 300.0
		got, err := svc.UpdateZoomEffect(context.Background(), project.ID, uuid.New(), model.ZoomEffectPatch{ZoomLevel: &zoom})
		if err != nil {
			t.Fatalf("UpdateZoomEffect failed: %v", err)
		}

		if got.Timeline.Effects[0] != before {
			t.Errorf("effect changed on unknown ID: %+v", got.Timeline.Effects[0])
		}
	})

	t.Run("delete then re-add yields default-length effect", func(t *testing.T) {
		project := readyProject(t, 60)
		effect := project.Timeline.AddZoomEffect(2)

		repo := &mockProjectRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
				return project, nil
			},
		}
		svc := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())

		if _, err := svc.DeleteZoomEffect(context.Background(), project.ID, effect.ID); err != nil {
			t.Fatalf("DeleteZoomEffect failed: %v", err)
		}
		got, err := svc.AddZoomEffect(context.Background(), project.ID, 2)
		if err != nil {
			t.Fatalf("AddZoomEffect failed: %v", err)
		}

		if len(got.Timeline.Effects) != 1 {
			t.Fatalf("Effects = %d, want 1", len(got.Timeline.Effects))
		}
		readded := got.Timeline.Effects[0]
		if readded.StartTime != 2 || readded.EndTime != 7 {
			t.Errorf("re-added span = [%v,%v], want [2,7]", readded.StartTime, readded.EndTime)
		}
	})

	t.Run("invalid trim range surfaces model error", func(t *testing.T) {
		project := readyProject(t, 60)
		repo := &mockProjectRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
				return project, nil
			},
		}
		svc := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())

		if _, err := svc.AddTrimSegment(context.Background(), project.ID, 30, 10); !errors.Is(err, model.ErrInvalidTrimRange) {
			t.Errorf("error = %v, want %v", err, model.ErrInvalidTrimRange)
		}
	})

	t.Run("mutations rejected before media import", func(t *testing.T) {
		project, _ := model.NewProject(uuid.New(), "Demo Recording")
		repo := &mockProjectRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
				return project, nil
			},
		}
		svc := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())

		if _, err := svc.AddZoomEffect(context.Background(), project.ID, 0); !errors.Is(err, ErrProjectNotReady) {
			t.Errorf("error = %v, want %v", err, ErrProjectNotReady)
		}
	})
}

func TestProjectService_Preview(t *testing.T) {
	project := readyProject(t, 60)
	project.Timeline.AddZoomEffect(10) // [10,15] at default zoom 150

	repo := &mockProjectRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
			return project, nil
		},
	}
	svc := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())

	view, err := svc.Preview(context.Background(), project.ID, 12)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if view.Scale != 1.5 {
		t.Errorf("Scale = %v, want 1.5", view.Scale)
	}

	view, err = svc.Preview(context.Background(), project.ID, 30)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if view.Scale != 1 {
		t.Errorf("Scale outside effects = %v, want 1", view.Scale)
	}
}

func TestProjectService_TriggerExport(t *testing.T) {
	tests := []struct {
		name      string
		project   func(t *testing.T) *model.Project
		backend   string
		wantErr   error
		checkTask func(t *testing.T, task *repository.EditTask)
	}{
		{
			name:    "successful trigger",
			project: func(t *testing.T) *model.Project { return readyProject(t, 60) },
			checkTask: func(t *testing.T, task *repository.EditTask) {
				if task == nil {
					t.Fatal("expected export task to be published")
				}
				if task.Kind != repository.TaskExport {
					t.Errorf("Kind = %v, want %v", task.Kind, repository.TaskExport)
				}
				if !strings.HasSuffix(task.OutputKey, "/edited_clip.mp4") {
					t.Errorf("OutputKey = %s, want edited_clip.mp4 suffix", task.OutputKey)
				}
				if task.Backend != "filtergraph" {
					t.Errorf("Backend = %s, want filtergraph default", task.Backend)
				}
			},
		},
		{
			name: "export already in progress",
			project: func(t *testing.T) *model.Project {
				p := readyProject(t, 60)
				if err := p.TransitionTo(model.StatusExporting); err != nil {
					t.Fatal(err)
				}
				return p
			},
			wantErr: ErrExportInProgress,
		},
		{
			name: "retry after failed export",
			project: func(t *testing.T) *model.Project {
				p := readyProject(t, 60)
				if err := p.TransitionTo(model.StatusExporting); err != nil {
					t.Fatal(err)
				}
				if err := p.TransitionTo(model.StatusExportFailed); err != nil {
					t.Fatal(err)
				}
				return p
			},
			checkTask: func(t *testing.T, task *repository.EditTask) {
				if task == nil {
					t.Fatal("expected export task to be published for retry")
				}
			},
		},
		{
			name: "pending project cannot export",
			project: func(t *testing.T) *model.Project {
				p, _ := model.NewProject(uuid.New(), "Demo Recording")
				return p
			},
			wantErr: ErrProjectNotReady,
		},
		{
			name:    "unknown backend rejected",
			project: func(t *testing.T) *model.Project { return readyProject(t, 60) },
			backend: "gpu",
			wantErr: errors.New("unknown export backend"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := tt.project(t)
			statusBefore := project.Status

			repo := &mockProjectRepository{
				getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
					return project, nil
				},
			}
			queue := &mockMessageQueue{}
			var published *repository.EditTask
			queue.publishEditTaskFn = func(ctx context.Context, task repository.EditTask) error {
				published = &task
				return nil
			}

			svc := NewProjectService(repo, &mockObjectStorage{}, queue, DefaultProjectServiceConfig())
			err := svc.TriggerExport(context.Background(), project.ID, tt.backend)

			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, tt.wantErr) && !strings.Contains(err.Error(), tt.wantErr.Error()) {
					t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
				}
				if project.Status != statusBefore {
					t.Errorf("status changed to %v on failed trigger", project.Status)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error = %v", err)
			}
			if project.Status != model.StatusExporting {
				t.Errorf("status = %v, want EXPORTING", project.Status)
			}
			if tt.checkTask != nil {
				tt.checkTask(t, published)
			}
		})
	}
}

func TestProjectService_GetExportDownloadURL(t *testing.T) {
	t.Run("returns presigned URL for exported project", func(t *testing.T) {
		project := readyProject(t, 60)
		if err := project.TransitionTo(model.StatusExporting); err != nil {
			t.Fatal(err)
		}
		project.SetOutputKey("exports/" + project.ID.String() + "/edited_clip.mp4")
		if err := project.TransitionTo(model.StatusExported); err != nil {
			t.Fatal(err)
		}

		repo := &mockProjectRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
				return project, nil
			},
		}
		storage := &mockObjectStorage{
			generatePresignedDownloadURLFn: func(ctx context.Context, key string, expiry time.Duration) (string, error) {
				if key != project.OutputKey {
					t.Errorf("key = %s, want %s", key, project.OutputKey)
				}
				return "http://minio:9000/bucket/download?signature=xyz", nil
			},
		}

		svc := NewProjectService(repo, storage, &mockMessageQueue{}, DefaultProjectServiceConfig())
		url, err := svc.GetExportDownloadURL(context.Background(), project.ID)
		if err != nil {
			t.Fatalf("GetExportDownloadURL failed: %v", err)
		}
		if url == "" {
			t.Error("expected URL to be non-empty")
		}
	})

	t.Run("no exported output", func(t *testing.T) {
		project := readyProject(t, 60)
		repo := &mockProjectRepository{
			getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Project, error) {
				return project, nil
			},
		}

		svc := NewProjectService(repo, &mockObjectStorage{}, &mockMessageQueue{}, DefaultProjectServiceConfig())
		if _, err := svc.GetExportDownloadURL(context.Background(), project.ID); !errors.Is(err, ErrNoExportedOutput) {
			t.Errorf("error = %v, want %v", err, ErrNoExportedOutput)
		}
	})
}
