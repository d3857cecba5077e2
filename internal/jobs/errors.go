package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors for job operations.
// These can be checked with errors.Is().
var (
	ErrValidation = errors.New("invalid request")
	ErrNotFound   = errors.New("not found")
	ErrEngine     = errors.New("engine failure")
	ErrInternal   = errors.New("internal error")

	ErrJobNotFound       = fmt.Errorf("download %w", ErrNotFound)
	ErrArtifactMissing   = fmt.Errorf("file %w", ErrNotFound)
	ErrNotCompleted      = fmt.Errorf("%w: download not completed", ErrValidation)
	ErrFormatUnavailable = fmt.Errorf("%w: requested format is not available for this video, please select another format", ErrValidation)
	ErrInvalidAction     = fmt.Errorf("%w: invalid action", ErrValidation)
	ErrTitleInUse        = fmt.Errorf("%w: a download with this title is already running", ErrValidation)

	errShuttingDown = fmt.Errorf("%w: shutting down", ErrInternal)
)

// Kind classifies an error for callers at the boundary.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindEngine     Kind = "engine"
	KindInternal   Kind = "internal"
)

// KindOf maps any error onto the taxonomy. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrEngine):
		return KindEngine
	default:
		return KindInternal
	}
}

// EngineError is a probe or fetch failure reported by the engine. Its
// message is the engine's message, unchanged.
type EngineError struct {
	Op  string // "probe" or "fetch"
	Err error
}

func (e *EngineError) Error() string {
	return e.Err.Error()
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrEngine) hold for every EngineError.
func (e *EngineError) Is(target error) bool {
	return target == ErrEngine
}

// validationError returns a wrapped error for bad user input.
func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// jobNotFoundError returns a wrapped error for a missing job.
func jobNotFoundError(id string) error {
	return fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

// internalError wraps an unexpected failure.
func internalError(err error) error {
	return fmt.Errorf("%w: %v", ErrInternal, err)
}
