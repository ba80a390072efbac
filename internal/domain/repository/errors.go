package repository

import "errors"

var (
	// ErrProjectNotFound is returned when a project cannot be found.
	ErrProjectNotFound = errors.New("project not found")

	// ErrDuplicateProject is returned when attempting to create a project that already exists.
	ErrDuplicateProject = errors.New("project already exists")

	// ErrObjectNotFound is returned when a storage object does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured storage bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
)
