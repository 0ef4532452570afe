package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("auth: not found")
	// ErrConflict is returned on unique-constraint collisions (duplicate
	// email, duplicate role name).
	ErrConflict = errors.New("auth: already exists")
	// ErrInvalidInput covers malformed requests and field validation failures.
	ErrInvalidInput = errors.New("auth: invalid input")
	// ErrInvalidCredentials is the single generic login failure. Unknown
	// email and wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	// ErrInvalidToken covers expired, revoked, malformed and forged tokens.
	ErrInvalidToken = errors.New("auth: invalid or expired token")
	// ErrDomainRule is returned when an operation violates an aggregate
	// invariant (mutating a system role, duplicate assignment).
	ErrDomainRule = errors.New("auth: domain rule violation")
	// ErrUnauthorized is returned when a principal lacks a required permission.
	ErrUnauthorized = errors.New("auth: unauthorized")
)

var (
	// ErrDuplicateAssignment is returned when a link that already exists is
	// assigned again. Classifies as ErrDomainRule.
	ErrDuplicateAssignment = fmt.Errorf("%w: duplicate assignment", ErrDomainRule)
	// ErrSystemRole is returned on any direct mutation of a system role.
	ErrSystemRole = fmt.Errorf("%w: system role is immutable", ErrDomainRule)
	// ErrMissingAssignment is returned when removing a link that does not exist.
	ErrMissingAssignment = fmt.Errorf("%w: assignment does not exist", ErrDomainRule)
)

// ValidationError reports per-field validation failures. It unwraps to
// ErrInvalidInput so callers can classify it with errors.Is.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("auth: validation failed for %d field(s)", len(e.Fields))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewFieldError builds a single-field ValidationError.
func NewFieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}
