// Package apierrors implements the error taxonomy classes from the
// coordination runtime's error handling design: sentinel errors that
// internal components wrap with context via fmt.Errorf("...: %w", err), and
// that the HTTP facade unwraps with errors.Is to choose a status code.
package apierrors

import "errors"

var (
	// ErrNotFound is returned by lookups by id with no match (agent, task,
	// vote, knowledge key). Maps to HTTP 404.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a slot is already occupied, an agent id
	// is reused, or a task id is submitted twice. Maps to HTTP 409.
	ErrConflict = errors.New("conflict")

	// ErrPolicy is returned when an operation is refused by policy: a
	// circuit breaker is OPEN, a vote is already finalised, a cast-vote
	// names an unknown option, or a section lock is denied. Maps to HTTP
	// 409/423 depending on the caller's preference; the facade uses 409.
	ErrPolicy = errors.New("policy violation")

	// ErrInput is returned for malformed client input: invalid JSON,
	// missing required fields, unknown enum values, out-of-range numbers.
	// Maps to HTTP 400.
	ErrInput = errors.New("invalid input")
)

// Is reports whether err wraps target anywhere in its chain.
func Is(err, target error) bool { return errors.Is(err, target) }
