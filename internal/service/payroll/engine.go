package payroll

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// lineOutcome is the per-employee output of a run, kept at the attendance index
// so aggregation order never depends on goroutine scheduling.
type lineOutcome struct {
	employeeID string
	result     payroll.PayrollResult
	skipped    bool
	class      payroll.Classification
}

func (s *PayrollServiceImpl) RunPayroll(ctx context.Context, actor payroll.Actor, req payroll.RunPayrollRequest) (payroll.RunPayrollResponse, error) {
	if err := requireActor(actor); err != nil {
		return payroll.RunPayrollResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return payroll.RunPayrollResponse{}, err
	}

	site, err := s.sites.GetSite(ctx, req.SiteID)
	if err != nil {
		return payroll.RunPayrollResponse{}, err
	}
	if !s.authz.CanRunPayroll(actor, site.ID) {
		return payroll.RunPayrollResponse{}, payroll.ErrRunForbidden
	}

	key := payroll.RunKey{SiteID: site.ID, PayrollMonth: req.PayrollMonth, PayrollYear: req.PayrollYear}
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return payroll.RunPayrollResponse{}, err
	}
	defer unlock()

	if _, err := s.runs.FindActive(ctx, key); err == nil {
		return payroll.RunPayrollResponse{}, payroll.ErrRunExists
	} else if !isNotFound(err) {
		return payroll.RunPayrollResponse{}, err
	}

	records, err := s.attendance.ListAttendance(ctx, site.ID, key.PayrollMonth, key.PayrollYear)
	if err != nil {
		return payroll.RunPayrollResponse{}, fmt.Errorf("failed to load attendance: %w", err)
	}
	if len(records) == 0 {
		return payroll.RunPayrollResponse{}, payroll.ErrNoAttendance
	}

	settings := req.Settings.ToSettings()
	run, summary, err := s.compute(ctx, key, settings, records)
	if err != nil {
		return payroll.RunPayrollResponse{}, err
	}

	run.ID, err = newRunID()
	if err != nil {
		return payroll.RunPayrollResponse{}, fmt.Errorf("failed to generate run id: %w", err)
	}
	run.RunBy = actor.UserID
	run.RunAt = s.now().UTC()

	created, err := s.runs.Create(ctx, run)
	if err != nil {
		return payroll.RunPayrollResponse{}, err
	}

	slog.Info("payroll run created",
		"run_id", created.ID,
		"site_id", created.SiteID,
		"period", periodLabel(key),
		"processed", summary.Processed,
		"included", summary.Included,
		"exceptions", summary.Exceptions,
		"actor_id", actor.UserID,
	)

	return payroll.RunPayrollResponse{
		Message: fmt.Sprintf("Payroll processed for %d employees, %d exceptions", summary.Included, summary.Exceptions),
		Summary: payroll.RunSummaryResponse{
			Processed:  summary.Processed,
			Included:   summary.Included,
			Exceptions: summary.Exceptions,
		},
		Run: mapRunResponse(created, true),
	}, nil
}

// compute builds the draft run for one site and period. It performs no writes.
func (s *PayrollServiceImpl) compute(
	ctx context.Context,
	key payroll.RunKey,
	settings payroll.RunSettings,
	records []payroll.AttendanceRecord,
) (payroll.PayrollRun, payroll.RunSummary, error) {
	if err := validateRecords(key, records); err != nil {
		return payroll.PayrollRun{}, payroll.RunSummary{}, err
	}
	records = slices.Clone(records)
	slices.SortStableFunc(records, func(a, b payroll.AttendanceRecord) int {
		return cmp.Compare(a.EmployeeID, b.EmployeeID)
	})

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.EmployeeID
	}
	employees, err := s.employees.ListEmployees(ctx, ids)
	if err != nil {
		return payroll.PayrollRun{}, payroll.RunSummary{}, fmt.Errorf("failed to load employees: %w", err)
	}
	byID := make(map[string]payroll.Employee, len(employees))
	for _, emp := range employees {
		byID[emp.ID] = emp
	}

	var missing validator.ValidationErrors
	for _, rec := range records {
		if _, ok := byID[rec.EmployeeID]; !ok {
			missing = append(missing, validator.ValidationError{
				Field:   "attendance[" + rec.EmployeeID + "]",
				Message: "employee not found",
			})
		}
	}
	if len(missing) > 0 {
		return payroll.PayrollRun{}, payroll.RunSummary{}, missing
	}

	fixed, err := s.deductions.GetFixedDeductions(ctx, key.SiteID, key.PayrollMonth, key.PayrollYear)
	if err != nil {
		return payroll.PayrollRun{}, payroll.RunSummary{}, fmt.Errorf("failed to load deduction config: %w", err)
	}

	outcomes := make([]lineOutcome, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.computeLine(byID[records[i].EmployeeID], records[i], fixed, settings)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return payroll.PayrollRun{}, payroll.RunSummary{}, err
	}

	run := aggregate(key, settings, outcomes)
	if err := VerifyTotals(run); err != nil {
		slog.Error("computed payroll run failed aggregate check",
			"site_id", key.SiteID,
			"period", periodLabel(key),
			"error", err,
		)
		return payroll.PayrollRun{}, payroll.RunSummary{}, err
	}

	summary := payroll.RunSummary{
		Processed:  len(records),
		Included:   len(run.Results),
		Exceptions: run.ExceptionCount,
	}
	return run, summary, nil
}

func (s *PayrollServiceImpl) computeLine(
	emp payroll.Employee,
	rec payroll.AttendanceRecord,
	fixed payroll.FixedDeductions,
	settings payroll.RunSettings,
) lineOutcome {
	class := s.detector.Classify(emp, rec)
	if !s.detector.Include(class, settings) {
		return lineOutcome{employeeID: rec.EmployeeID, skipped: true, class: class}
	}

	rates := s.resolver.Resolve(emp)
	result := s.calculator.Compute(rec, rates, emp.Statutory, fixed, settings.Salary())
	result.EmployeeCode = emp.EmployeeCode
	result.EmployeeName = emp.FullName
	result.IsException = class.IsException
	result.ExceptionReasons = class.Reasons
	return lineOutcome{employeeID: rec.EmployeeID, result: result, class: class}
}

func aggregate(key payroll.RunKey, settings payroll.RunSettings, outcomes []lineOutcome) payroll.PayrollRun {
	run := payroll.PayrollRun{
		SiteID:          key.SiteID,
		PayrollMonth:    key.PayrollMonth,
		PayrollYear:     key.PayrollYear,
		Status:          payroll.RunStatusDraft,
		Settings:        settings,
		Results:         make([]payroll.PayrollResult, 0, len(outcomes)),
		TotalGross:      decimal.Zero,
		TotalDeductions: decimal.Zero,
		TotalNetPay:     decimal.Zero,
	}

	for _, o := range outcomes {
		if o.class.IsException {
			run.ExceptionCount++
		}
		if o.skipped {
			run.SkippedExceptions = append(run.SkippedExceptions, payroll.SkippedException{
				EmployeeID: o.employeeID,
				Reasons:    o.class.Reasons,
			})
			continue
		}
		run.Results = append(run.Results, o.result)
		run.TotalGross = run.TotalGross.Add(o.result.GrossEarning)
		run.TotalDeductions = run.TotalDeductions.Add(o.result.TotalDeductions)
		run.TotalNetPay = run.TotalNetPay.Add(o.result.NetPay)
	}
	run.TotalEmployees = len(run.Results)
	return run
}

// VerifyTotals checks that a run's stored aggregates equal the sum of its results.
func VerifyTotals(run payroll.PayrollRun) error {
	gross, deductions, net := decimal.Zero, decimal.Zero, decimal.Zero
	for _, r := range run.Results {
		gross = gross.Add(r.GrossEarning)
		deductions = deductions.Add(r.TotalDeductions)
		net = net.Add(r.NetPay)
	}

	switch {
	case run.TotalEmployees != len(run.Results):
		return fmt.Errorf("%w: total_employees %d, results %d", payroll.ErrTotalsMismatch, run.TotalEmployees, len(run.Results))
	case !run.TotalGross.Equal(gross):
		return fmt.Errorf("%w: total_gross %s, sum %s", payroll.ErrTotalsMismatch, run.TotalGross, gross)
	case !run.TotalDeductions.Equal(deductions):
		return fmt.Errorf("%w: total_deductions %s, sum %s", payroll.ErrTotalsMismatch, run.TotalDeductions, deductions)
	case !run.TotalNetPay.Equal(net):
		return fmt.Errorf("%w: total_net_pay %s, sum %s", payroll.ErrTotalsMismatch, run.TotalNetPay, net)
	}
	return nil
}

// validateRecords rejects malformed or duplicated attendance before any computation.
func validateRecords(key payroll.RunKey, records []payroll.AttendanceRecord) error {
	var errs validator.ValidationErrors
	seen := make(map[string]int, len(records))

	for i, rec := range records {
		errs = append(errs, payroll.ValidateAttendance(rec, i)...)

		prefix := "attendance[" + validator.Itoa(i) + "]"
		if rec.SiteID != "" && rec.SiteID != key.SiteID {
			errs = append(errs, validator.ValidationError{Field: prefix + ".site_id", Message: "does not match the run's site"})
		}
		if (rec.PayrollMonth != 0 && rec.PayrollMonth != key.PayrollMonth) ||
			(rec.PayrollYear != 0 && rec.PayrollYear != key.PayrollYear) {
			errs = append(errs, validator.ValidationError{Field: prefix + ".period", Message: "does not match the run's period"})
		}
		if first, dup := seen[rec.EmployeeID]; dup && rec.EmployeeID != "" {
			errs = append(errs, validator.ValidationError{
				Field:   prefix + ".employee_id",
				Message: "duplicates attendance[" + validator.Itoa(first) + "]",
			})
			continue
		}
		seen[rec.EmployeeID] = i
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
