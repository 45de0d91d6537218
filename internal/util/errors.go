package util

import (
	"errors"
	"fmt"
)

var (
	// Not-found family.
	ErrExamNotFound     = errors.New("exam not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrQuestionNotFound = errors.New("question not found")

	// Eligibility family.
	ErrExamUnavailable      = errors.New("exam not available")
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	ErrAttemptAlreadyActive = errors.New("an attempt is already in progress")
	ErrAttemptExpired       = errors.New("attempt time limit exceeded")

	// Conflict family.
	ErrAttemptAlreadyFinalized = errors.New("attempt already finalized")
	ErrAttemptNotActive        = errors.New("attempt is not in progress")
	ErrAttemptNotFinalized     = errors.New("attempt not finalized yet")

	ErrPermissionDenied = errors.New("permission denied")

	// ErrDependency marks a downstream collaborator failure (store timeout,
	// certificate issuer unreachable). Wrap the cause with %w.
	ErrDependency = errors.New("dependency unavailable")
)

// ActiveAttemptError carries the identifier of the attempt that blocks a new
// start request. errors.Is(err, ErrAttemptAlreadyActive) matches it.
type ActiveAttemptError struct {
	AttemptID uint
}

func (e *ActiveAttemptError) Error() string {
	return fmt.Sprintf("an attempt is already in progress (attempt %d)", e.AttemptID)
}

func (e *ActiveAttemptError) Unwrap() error {
	return ErrAttemptAlreadyActive
}

// DependencyError wraps err so callers can branch on ErrDependency while
// keeping the cause in the chain.
func DependencyError(err error) error {
	return fmt.Errorf("%w: %v", ErrDependency, err)
}
