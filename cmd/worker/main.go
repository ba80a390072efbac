package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/zoomcut-dev/zoomcut/internal/config"
	"github.com/zoomcut-dev/zoomcut/internal/domain/repository"
	"github.com/zoomcut-dev/zoomcut/internal/infrastructure/cache"
	"github.com/zoomcut-dev/zoomcut/internal/infrastructure/postgres"
	"github.com/zoomcut-dev/zoomcut/internal/infrastructure/queue"
	"github.com/zoomcut-dev/zoomcut/internal/infrastructure/storage"
	"github.com/zoomcut-dev/zoomcut/internal/plan"
	"github.com/zoomcut-dev/zoomcut/internal/render"
	"github.com/zoomcut-dev/zoomcut/internal/transcoder"
	"github.com/zoomcut-dev/zoomcut/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Ensure temp directory exists
	if err := os.MkdirAll(cfg.Worker.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	// Initialize infrastructure clients
	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	logger.Info("connected to MinIO")

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	// Initialize the transcoding engine. A missing ffmpeg installation is
	// fatal for the worker: every task needs it.
	engine, err := transcoder.NewFFmpegEngine(transcoder.FFmpegConfig{
		FFmpegPath:  cfg.FFmpeg.FFmpegPath,
		FFprobePath: cfg.FFmpeg.FFprobePath,
	})
	if err != nil {
		return fmt.Errorf("transcoding engine unavailable: %w", err)
	}

	backend, err := plan.ParseBackend(cfg.Export.Backend)
	if err != nil {
		return fmt.Errorf("invalid export backend: %w", err)
	}

	renderer := render.NewRenderer(engine, render.Config{
		VideoCodec: cfg.Export.VideoCodec,
		Preset:     cfg.Export.Preset,
		CRF:        cfg.Export.CRF,
	})

	// Initialize repository and service
	projectRepo := postgres.NewProjectRepository(pgClient.Pool())
	progressStore := cache.NewRedisProgressStore(redisClient)

	exportSvc := usecase.NewExportService(
		projectRepo,
		storageClient,
		engine,
		renderer,
		progressStore,
		usecase.ExportServiceConfig{
			TempDir:       cfg.Worker.TempDir,
			MaxRetries:    cfg.Worker.MaxRetries,
			ExportTimeout: cfg.Worker.ExportTimeout,
			Planner: plan.Config{
				Backend:    backend,
				FrameRate:  cfg.Export.FrameRate,
				VideoCodec: cfg.Export.VideoCodec,
				Preset:     cfg.Export.Preset,
				CRF:        cfg.Export.CRF,
			},
		},
	)

	// Setup signal handling for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// WaitGroup to track in-flight tasks
	var wg sync.WaitGroup

	// Start consuming messages in a goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming edit tasks")
		err := queueClient.ConsumeEditTasks(ctx, func(task repository.EditTask) error {
			wg.Add(1)
			defer wg.Done()

			logger.Info("processing task",
				slog.String("kind", string(task.Kind)),
				slog.String("project_id", task.ProjectID.String()),
				slog.Int("retry_count", task.RetryCount),
			)

			if err := exportSvc.ProcessTask(ctx, task); err != nil {
				logger.Error("task processing failed",
					slog.String("kind", string(task.Kind)),
					slog.String("project_id", task.ProjectID.String()),
					slog.Int("retry_count", task.RetryCount),
					slog.String("error", err.Error()),
				)
				return err
			}

			logger.Info("task completed",
				slog.String("kind", string(task.Kind)),
				slog.String("project_id", task.ProjectID.String()),
			)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Cancel the main context to stop consuming new messages
	cancel()

	// Wait for in-flight tasks to complete (or timeout)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}
