package bastion

import (
	"errors"

	"github.com/xraph/bastion/errdefs"
)

// Sentinel errors shared with the entity packages and stores.
var (
	ErrValidation    = errdefs.ErrValidation
	ErrConflict      = errdefs.ErrConflict
	ErrNotFound      = errdefs.ErrNotFound
	ErrCycle         = errdefs.ErrCycle
	ErrQuotaExceeded = errdefs.ErrQuotaExceeded
	ErrGrantInactive = errdefs.ErrGrantInactive
	ErrConfiguration = errdefs.ErrConfiguration
	ErrResolution    = errdefs.ErrResolution
	ErrTimeout       = errdefs.ErrTimeout
	ErrImmutable     = errdefs.ErrImmutable
)

// ErrAccessDenied is returned by Enforce when a decision denies.
var ErrAccessDenied = errors.New("bastion: access denied")
