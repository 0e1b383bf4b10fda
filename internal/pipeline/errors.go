package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is the cause of every validation StageError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStagesFrozen is returned by AddStage once a job has started.
	ErrStagesFrozen = errors.New("stages cannot be added after the first job has started")
	// ErrManifestInvalid marks a persisted manifest missing required fields or
	// carrying values outside the schema.
	ErrManifestInvalid = errors.New("invalid manifest")
	// ErrUnsupportedVersion marks a manifest with an unknown major version.
	ErrUnsupportedVersion = errors.New("unsupported manifest version")
	// ErrManifestNotPersisted is returned by Process when every stage
	// completed but manifest.json could not be written.
	ErrManifestNotPersisted = errors.New("manifest not persisted")
)

// ErrorKind distinguishes why a stage stopped a job.
type ErrorKind string

const (
	// KindValidation means the stage rejected its input before running.
	KindValidation ErrorKind = "validation"
	// KindExecution means the stage ran and reported a failure.
	KindExecution ErrorKind = "execution"
)

// StageError is returned by Process when a stage stops the job.
type StageError struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Kind == KindValidation {
		return e.Message
	}
	return fmt.Sprintf("stage %s failed: %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func validationError(stage string) *StageError {
	return &StageError{
		Kind:    KindValidation,
		Stage:   stage,
		Message: fmt.Sprintf("invalid input for stage %s", stage),
		Err:     ErrInvalidInput,
	}
}

func executionError(stage string, err error) *StageError {
	return &StageError{
		Kind:    KindExecution,
		Stage:   stage,
		Message: err.Error(),
		Err:     err,
	}
}
