package payroll

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/google/uuid"
)

const DefaultWorkers = 4

type PayrollServiceImpl struct {
	sites      payroll.SiteDirectory
	attendance payroll.AttendanceProvider
	employees  payroll.EmployeeDirectory
	deductions payroll.DeductionConfigProvider
	runs       payroll.RunStore
	authz      payroll.Authorizer
	locker     payroll.RunLocker

	resolver   RateResolver
	calculator Calculator
	detector   ExceptionDetector
	workers    int
	now        func() time.Time
}

func NewPayrollService(
	sites payroll.SiteDirectory,
	attendance payroll.AttendanceProvider,
	employees payroll.EmployeeDirectory,
	deductions payroll.DeductionConfigProvider,
	runs payroll.RunStore,
	authz payroll.Authorizer,
	locker payroll.RunLocker,
	rules DeductionRules,
	workers int,
) payroll.PayrollService {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &PayrollServiceImpl{
		sites:      sites,
		attendance: attendance,
		employees:  employees,
		deductions: deductions,
		runs:       runs,
		authz:      authz,
		locker:     locker,
		calculator: NewCalculator(rules),
		workers:    workers,
		now:        time.Now,
	}
}

func requireActor(actor payroll.Actor) error {
	if actor.UserID == "" || actor.Role == "" {
		return payroll.ErrMissingActor
	}
	return nil
}

// ========== READ ==========

func (s *PayrollServiceImpl) GetRun(ctx context.Context, actor payroll.Actor, id string) (payroll.PayrollRunResponse, error) {
	if err := requireActor(actor); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	if !s.authz.Can(actor, run.SiteID, payroll.ActionRead) {
		return payroll.PayrollRunResponse{}, payroll.ErrRunForbidden
	}
	if err := VerifyTotals(run); err != nil {
		slog.Error("stored payroll run failed aggregate check", "run_id", run.ID, "error", err)
		return payroll.PayrollRunResponse{}, err
	}

	return mapRunResponse(run, true), nil
}

func (s *PayrollServiceImpl) ListRuns(ctx context.Context, actor payroll.Actor, req payroll.ListRunsRequest) ([]payroll.PayrollRunResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runs, err := s.runs.List(ctx, payroll.RunFilter{
		SiteID:       req.SiteID,
		PayrollMonth: req.PayrollMonth,
		PayrollYear:  req.PayrollYear,
		Status:       payroll.RunStatus(req.Status),
	})
	if err != nil {
		return nil, err
	}

	responses := make([]payroll.PayrollRunResponse, 0, len(runs))
	for _, run := range runs {
		// Site-scoped actors only see their own site
		if !s.authz.Can(actor, run.SiteID, payroll.ActionRead) {
			continue
		}
		responses = append(responses, mapRunResponse(run, false))
	}
	return responses, nil
}

// ========== DELETE ==========

func (s *PayrollServiceImpl) DeleteDraftRun(ctx context.Context, actor payroll.Actor, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.authz.Can(actor, run.SiteID, payroll.ActionDelete) {
		return payroll.ErrRunForbidden
	}
	if run.Status != payroll.RunStatusDraft {
		return payroll.ErrRunNotDraft
	}

	if err := s.runs.DeleteDraft(ctx, id); err != nil {
		return err
	}

	slog.Info("payroll run deleted",
		"run_id", run.ID,
		"site_id", run.SiteID,
		"period", periodLabel(run.Key()),
		"actor_id", actor.UserID,
	)
	return nil
}

// ========== PREVIEW ==========

func (s *PayrollServiceImpl) PreviewLine(ctx context.Context, req payroll.PreviewLineRequest) (payroll.PayrollResultResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollResultResponse{}, err
	}

	attendance, rates, profile, fixed, settings := req.ToInputs()
	result := s.calculator.Compute(attendance, rates, profile, fixed, settings)
	return mapResultResponse(result), nil
}

func newRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, payroll.ErrNotFound)
}
