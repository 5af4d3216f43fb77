package payroll

import (
	"errors"
	"fmt"
)

// Error kinds. Every specific error below wraps exactly one of these.
var (
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrConflict              = errors.New("conflict")
	ErrPreconditionFailed    = errors.New("precondition failed")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrInconsistentAggregate = errors.New("inconsistent aggregate")
)

var (
	ErrSiteNotFound      = fmt.Errorf("site %w", ErrNotFound)
	ErrRunNotFound       = fmt.Errorf("payroll run %w", ErrNotFound)
	ErrRunForbidden      = fmt.Errorf("%w: actor may not act on this site's payroll", ErrForbidden)
	ErrRunExists         = fmt.Errorf("%w: payroll run already exists for this site and period", ErrConflict)
	ErrRunStatusChanged  = fmt.Errorf("%w: payroll run status changed concurrently", ErrConflict)
	ErrNoAttendance      = fmt.Errorf("%w: no attendance for this site and period, import attendance first", ErrPreconditionFailed)
	ErrIllegalTransition = fmt.Errorf("%w: target is not the next status", ErrInvalidTransition)
	ErrRunLocked         = fmt.Errorf("%w: payroll run is locked", ErrInvalidTransition)
	ErrRunNotDraft       = fmt.Errorf("%w: only draft payroll runs can be deleted", ErrInvalidTransition)
	ErrTotalsMismatch    = fmt.Errorf("%w: run totals do not match the sum of results", ErrInconsistentAggregate)
	ErrRunLockTimeout    = fmt.Errorf("%w: another payroll run for this site and period is in progress", ErrConflict)
	ErrUnknownRunStatus  = errors.New("unknown payroll run status")
	ErrMissingActor      = fmt.Errorf("%w: missing actor", ErrForbidden)
)
