package payroll

import "context"

// PayrollService defines the operations exposed to transports.
type PayrollService interface {
	// RunPayroll computes and persists a draft run for a site and period
	RunPayroll(ctx context.Context, actor Actor, req RunPayrollRequest) (RunPayrollResponse, error)

	// AdvanceStatus moves a run to the next lifecycle status
	AdvanceStatus(ctx context.Context, actor Actor, req AdvanceStatusRequest) (PayrollRunResponse, error)

	// GetRun returns a run with its results, without recomputation
	GetRun(ctx context.Context, actor Actor, id string) (PayrollRunResponse, error)

	// ListRuns returns runs without their results
	ListRuns(ctx context.Context, actor Actor, filter ListRunsRequest) ([]PayrollRunResponse, error)

	// DeleteDraftRun removes a draft run so the period can be run again
	DeleteDraftRun(ctx context.Context, actor Actor, id string) error

	// PreviewLine runs the calculator on caller-supplied inputs
	PreviewLine(ctx context.Context, req PreviewLineRequest) (PayrollResultResponse, error)
}
