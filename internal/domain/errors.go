package domain

import (
	"errors"
	"fmt"
)

// ErrRepositoryNotFound indicates the requested repository name is not configured.
var ErrRepositoryNotFound = errors.New("repository not found")

// ConfigurationError reports settings that make construction impossible.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Message)
}

// NewConfigurationError creates a ConfigurationError for the given settings key.
func NewConfigurationError(key, message string) *ConfigurationError {
	return &ConfigurationError{Key: key, Message: message}
}

// RepositoryAccessError reports a failure reading from a repository.
type RepositoryAccessError struct {
	Repository string
	Path       string
	Op         string
	Err        error
}

func (e *RepositoryAccessError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("repository %s: %s: %v", e.Repository, e.Op, e.Err)
	}
	return fmt.Sprintf("repository %s: %s %s: %v", e.Repository, e.Op, e.Path, e.Err)
}

func (e *RepositoryAccessError) Unwrap() error {
	return e.Err
}

// BackendError reports a failed search backend call.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsRepositoryAccess reports whether err is, or wraps, a RepositoryAccessError.
func IsRepositoryAccess(err error) bool {
	var target *RepositoryAccessError
	return errors.As(err, &target)
}

// IsBackend reports whether err is, or wraps, a BackendError.
func IsBackend(err error) bool {
	var target *BackendError
	return errors.As(err, &target)
}

// IsConfiguration reports whether err is, or wraps, a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
