package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
)

// mapError maps engine errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, bastion.ErrNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, bastion.ErrAccessDenied):
		return forge.Forbidden(err.Error())
	case errors.Is(err, bastion.ErrValidation),
		errors.Is(err, bastion.ErrConflict),
		errors.Is(err, bastion.ErrCycle),
		errors.Is(err, bastion.ErrImmutable),
		errors.Is(err, bastion.ErrQuotaExceeded),
		errors.Is(err, bastion.ErrGrantInactive):
		return forge.BadRequest(err.Error())
	}
	return err
}

// unavailable reports whether err means the engine could not reach a
// decision, which is answered with 503 rather than a denial.
func unavailable(err error) bool {
	return errors.Is(err, bastion.ErrResolution) || errors.Is(err, bastion.ErrTimeout)
}

func writeUnavailable(ctx forge.Context, err error) error {
	return ctx.JSON(http.StatusServiceUnavailable, &ErrorResponse{
		Error: err.Error(),
		Code:  http.StatusServiceUnavailable,
	})
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func parseBool(s string) *bool {
	switch s {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}
