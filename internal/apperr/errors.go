// Package apperr defines the error taxonomy shared across the engine.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when a submission is blank after trimming.
	ErrEmptyInput = errors.New("empty input")
	// ErrModelUnavailable is returned when the model backend reports itself
	// absent or disabled. Callers recover by falling back to heuristics.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrNotFound is returned when a note id does not exist.
	ErrNotFound = errors.New("not found")
)

// ModelError wraps a transient failure during a model call with the
// operation that failed ("rewrite", "extract", "intent", "answer").
type ModelError struct {
	Op  string
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Op, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// NewModelError wraps err as a ModelError for op.
func NewModelError(op string, err error) error {
	return &ModelError{Op: op, Err: err}
}
