package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyProcessed is returned by the claim when the job exists but is no
// longer queued. It is an idempotent short-circuit, not a failure: the caller
// reports the stored status and performs no side effects.
var ErrAlreadyProcessed = errors.New("job already processed")

// ErrUnauthorized is returned when the shared-secret credential is missing or
// wrong. Rejected before any state mutation.
var ErrUnauthorized = errors.New("unauthorized")

// GenerationError wraps a model-capability failure. The job that triggered the
// call transitions to failed with the captured message; sibling jobs and the
// sweep are unaffected.
type GenerationError struct {
	Provider string
	Model    string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s/%s): %v", e.Provider, e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
