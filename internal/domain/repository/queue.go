package repository

import (
	"context"

	"github.com/google/uuid"
)

// TaskKind discriminates the work a queued task requests.
type TaskKind string

const (
	// TaskIngest probes an uploaded source and resets the timeline.
	TaskIngest TaskKind = "ingest"
	// TaskExport executes an export run over the project's timeline.
	TaskExport TaskKind = "export"
)

// EditTask represents one unit of asynchronous work on a project.
type EditTask struct {
	Kind       TaskKind  `json:"kind"`
	ProjectID  uuid.UUID `json:"project_id"`
	SourceKey  string    `json:"source_key"`
	OutputKey  string    `json:"output_key,omitempty"`
	Backend    string    `json:"backend,omitempty"`
	RetryCount int       `json:"retry_count"`
}

// MessageQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishEditTask sends an ingest or export task to the queue.
	// Used by the API server to trigger async processing.
	PublishEditTask(ctx context.Context, task EditTask) error

	// ConsumeEditTasks starts consuming tasks from the queue.
	// The handler function is called for each received task.
	// Used by the worker service.
	ConsumeEditTasks(ctx context.Context, handler func(task EditTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
