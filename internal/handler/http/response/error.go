package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	case errors.Is(err, payroll.ErrNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, payroll.ErrForbidden):
		Forbidden(w, err.Error())
	case errors.Is(err, payroll.ErrInvalidTransition):
		InvalidTransition(w, err.Error())
	case errors.Is(err, payroll.ErrConflict):
		Conflict(w, err.Error())
	case errors.Is(err, payroll.ErrPreconditionFailed):
		PreconditionFailed(w, err.Error())
	case errors.Is(err, payroll.ErrInconsistentAggregate):
		slog.Error("payroll run aggregate mismatch", "error", err)
		InternalServerError(w, "Payroll run totals are inconsistent")

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
