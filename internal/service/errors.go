package service

import (
	"errors"
	"fmt"
)

// PreconditionError marks a failure caused by caller input or missing
// configuration rather than a collaborator fault. HTTP handlers map it
// to a 400-class response and surface the message verbatim.
type PreconditionError struct {
	Message string
	Err     error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// Preconditionf builds a PreconditionError from a format string.
func Preconditionf(format string, args ...any) *PreconditionError {
	return &PreconditionError{Message: fmt.Sprintf(format, args...)}
}

// IsPrecondition reports whether any error in the chain is a
// PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// ErrMissingRepoTarget aborts workflows that need a code host
// repository target before any external write happens.
var ErrMissingRepoTarget = &PreconditionError{
	Message: "Missing GitHub repository target. Set LEADSYNC_GITHUB_REPO_OWNER and LEADSYNC_GITHUB_REPO_NAME.",
}
