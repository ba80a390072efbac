package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an editing project.
type Status string

const (
	StatusPendingUpload Status = "PENDING_UPLOAD"
	StatusReady         Status = "READY"
	StatusExporting     Status = "EXPORTING"
	StatusExported      Status = "EXPORTED"
	StatusExportFailed  Status = "EXPORT_FAILED"
)

// Valid status transitions:
// PENDING_UPLOAD -> READY -> EXPORTING -> EXPORTED
//                                     \-> EXPORT_FAILED
// EXPORTED and EXPORT_FAILED allow re-export (back to EXPORTING).
var validTransitions = map[Status][]Status{
	StatusPendingUpload: {StatusReady},
	StatusReady:         {StatusExporting},
	StatusExporting:     {StatusExported, StatusExportFailed},
	StatusExported:      {StatusExporting},
	StatusExportFailed:  {StatusExporting},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPendingUpload, StatusReady, StatusExporting, StatusExported, StatusExportFailed:
		return true
	default:
		return false
	}
}

func (s Status) CanTransitionTo(next Status) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == next {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// MediaInfo holds the probed properties of the imported source media.
type MediaInfo struct {
	Duration float64
	Width    int
	Height   int
}

// Project represents one editing session over a single imported source video.
type Project struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	Title      string
	SourceKey  string
	SourceName string
	OutputKey  string
	Status     Status
	Media      MediaInfo
	Timeline   Timeline
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var (
	ErrEmptyTitle        = errors.New("title cannot be empty")
	ErrInvalidOwnerID    = errors.New("owner ID cannot be nil")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTitleTooLong      = errors.New("title exceeds maximum length of 255 characters")
)

const maxTitleLength = 255

// NewProject creates a new Project awaiting its source upload.
func NewProject(ownerID uuid.UUID, title string) (*Project, error) {
	if ownerID == uuid.Nil {
		return nil, ErrInvalidOwnerID
	}
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if len(title) > maxTitleLength {
		return nil, ErrTitleTooLong
	}

	now := time.Now()
	return &Project{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		Status:    StatusPendingUpload,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TransitionTo attempts to change the project status.
// Returns error if the transition is not allowed.
func (p *Project) TransitionTo(next Status) error {
	if !next.IsValid() {
		return ErrInvalidTransition
	}
	if !p.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	p.Status = next
	p.UpdatedAt = time.Now()
	return nil
}

// SetSource records the storage key and original filename of the upload.
func (p *Project) SetSource(key, name string) {
	p.SourceKey = key
	p.SourceName = name
	p.UpdatedAt = time.Now()
}

// ImportMedia records probed media properties and resets the timeline.
// Called when the uploaded source has been probed by the worker.
func (p *Project) ImportMedia(info MediaInfo) {
	p.Media = info
	p.Timeline.Reset(info.Duration)
	p.UpdatedAt = time.Now()
}

// SetOutputKey records the storage key of the exported result.
func (p *Project) SetOutputKey(key string) {
	p.OutputKey = key
	p.UpdatedAt = time.Now()
}

// IsExporting returns true while an export run is in flight.
func (p *Project) IsExporting() bool {
	return p.Status == StatusExporting
}

// CanExport returns true if an export run may be started.
func (p *Project) CanExport() bool {
	return p.Status.CanTransitionTo(StatusExporting)
}
