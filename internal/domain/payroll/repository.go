package payroll

import "context"

// SiteDirectory resolves the site a run is requested for.
type SiteDirectory interface {
	GetSite(ctx context.Context, siteID string) (Site, error)
}

// AttendanceProvider delivers imported attendance for a site and period,
// ordered by employee ID.
type AttendanceProvider interface {
	ListAttendance(ctx context.Context, siteID string, month, year int) ([]AttendanceRecord, error)
}

// EmployeeDirectory returns employees with their ordered skills and statutory profile.
// Unknown IDs are omitted from the result.
type EmployeeDirectory interface {
	ListEmployees(ctx context.Context, ids []string) ([]Employee, error)
}

// DeductionConfigProvider returns the flat deductions configured for a site and period.
type DeductionConfigProvider interface {
	GetFixedDeductions(ctx context.Context, siteID string, month, year int) (FixedDeductions, error)
}

// RunFilter - list criteria; zero values match everything
type RunFilter struct {
	SiteID       string
	PayrollMonth int
	PayrollYear  int
	Status       RunStatus
}

// RunStore persists runs. Create is atomic: the run and all its results become
// visible together or not at all, and a second active run for the same key fails
// with ErrRunExists. Transition only succeeds while the stored status still equals
// expected, otherwise it returns ErrRunStatusChanged.
type RunStore interface {
	Create(ctx context.Context, run PayrollRun) (PayrollRun, error)
	FindActive(ctx context.Context, key RunKey) (PayrollRun, error)
	GetByID(ctx context.Context, id string) (PayrollRun, error)
	List(ctx context.Context, filter RunFilter) ([]PayrollRun, error)
	Transition(ctx context.Context, id string, expected, next RunStatus, actorID string) (PayrollRun, error)
	DeleteDraft(ctx context.Context, id string) error
}

// Authorizer answers capability questions without exposing the role enumeration.
type Authorizer interface {
	CanRunPayroll(actor Actor, siteID string) bool
	CanTransition(actor Actor, siteID string, target RunStatus) bool
	Can(actor Actor, siteID string, action Action) bool
}

// RunLocker serializes run creation per key. The returned func releases the lock.
type RunLocker interface {
	Lock(ctx context.Context, key RunKey) (func(), error)
}
