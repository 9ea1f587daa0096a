// Package errdefs defines the sentinel errors shared by Bastion's entity
// packages, stores and engine. Errors are wrapped with fmt.Errorf("...: %w")
// and matched with errors.Is.
package errdefs

import "errors"

var (
	// ErrValidation is returned when a grant, policy, role or permission
	// spec is malformed. Rejected at write time.
	ErrValidation = errors.New("bastion: validation failed")

	// ErrConflict is returned when a uniquely named entity already exists.
	ErrConflict = errors.New("bastion: already exists")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("bastion: not found")

	// ErrCycle is returned when a role hierarchy edge would create a cycle.
	ErrCycle = errors.New("bastion: role hierarchy cycle")

	// ErrQuotaExceeded is returned when a temporal grant has no uses left.
	ErrQuotaExceeded = errors.New("bastion: grant quota exceeded")

	// ErrGrantInactive is returned when consuming a grant that was revoked
	// or is past its ValidUntil.
	ErrGrantInactive = errors.New("bastion: grant is not active")

	// ErrConfiguration is raised when a stored policy cannot be evaluated,
	// e.g. an unknown condition type. Such policies always fail.
	ErrConfiguration = errors.New("bastion: policy configuration error")

	// ErrResolution wraps infrastructure failures during a decision.
	ErrResolution = errors.New("bastion: resolution failed")

	// ErrTimeout is returned when a decision exceeds its deadline.
	ErrTimeout = errors.New("bastion: decision timed out")

	// ErrImmutable is returned when modifying a system entity or a
	// permission that is referenced by a grant.
	ErrImmutable = errors.New("bastion: entity is immutable")
)
