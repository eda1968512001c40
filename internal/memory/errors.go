package memory

import (
	"errors"
	"fmt"
)

// NotFoundError reports that a requested entity does not exist (or is not
// visible to the requesting user). It is expected and recoverable: callers
// typically respond by creating fresh state.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// IntegrityError reports a constraint violation (foreign key to a missing
// user, embedding dimensionality mismatch). The operation was aborted and
// nothing was partially written.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation in %s: %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// CorruptStateError reports that a persisted blob failed to deserialize.
// Callers treat it as absence of prior state, never silently coerce it.
type CorruptStateError struct {
	Entity string
	Key    string
	Err    error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt %s state for %s: %v", e.Entity, e.Key, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// CollaboratorError reports a failure in an external collaborator (embedder,
// extractor, merge synthesizer). It triggers the documented fallback for the
// step it occurred in; it never aborts a whole consolidation batch.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsCorruptState reports whether err is (or wraps) a CorruptStateError.
func IsCorruptState(err error) bool {
	var cs *CorruptStateError
	return errors.As(err, &cs)
}

// IsIntegrity reports whether err is (or wraps) an IntegrityError.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
