package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIO marks a file that could not be read.
	ErrIO = errors.New("io failure")
	// ErrFormat marks a corrupt or version-mismatched persisted file.
	ErrFormat = errors.New("format error")
	// ErrCompatibility marks digests or models built under different parameters.
	ErrCompatibility = errors.New("incompatible digests")
	// ErrEmptyCorpus is returned when no corpus file could be processed.
	ErrEmptyCorpus = errors.New("no corpus files processed")
	// ErrNotInitialized is returned by a digest store that was never bound to a model.
	ErrNotInitialized = errors.New("digest database not initialized")
)

// FileError records a per-file failure during a batch operation.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e *FileError) Unwrap() []error { return []error{ErrIO, e.Err} }

// CompatibilityError describes what differed between two inputs.
type CompatibilityError struct {
	Field string
	Want  string
	Got   string
}

func (e *CompatibilityError) Error() string {
	return fmt.Sprintf("incompatible %s: %q vs %q", e.Field, e.Want, e.Got)
}

func (e *CompatibilityError) Unwrap() error { return ErrCompatibility }

// Formatf wraps ErrFormat with a message.
func Formatf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}
