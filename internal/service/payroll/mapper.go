package payroll

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
)

func mapResultResponse(r payroll.PayrollResult) payroll.PayrollResultResponse {
	return payroll.PayrollResultResponse{
		EmployeeID:       r.EmployeeID,
		EmployeeCode:     r.EmployeeCode,
		EmployeeName:     r.EmployeeName,
		PayableDays:      r.PayableDays,
		OTHours:          r.OTHours,
		BasicEarned:      r.BasicEarned,
		HRAEarned:        r.HRAEarned,
		OtherEarned:      r.OtherEarned,
		OTAmount:         r.OTAmount,
		Incentive:        r.Incentive,
		Arrear:           r.Arrear,
		GrossEarning:     r.GrossEarning,
		PFDeduction:      r.PFDeduction,
		ESIDeduction:     r.ESIDeduction,
		FixedDeductions:  r.FixedDeductions,
		TotalDeductions:  r.TotalDeductions,
		NetPay:           r.NetPay,
		IsException:      r.IsException,
		ExceptionReasons: r.ExceptionReasons,
	}
}

// mapRunResponse converts a run; results are only attached on detail reads.
func mapRunResponse(run payroll.PayrollRun, withResults bool) payroll.PayrollRunResponse {
	resp := payroll.PayrollRunResponse{
		ID:              run.ID,
		SiteID:          run.SiteID,
		PayrollMonth:    run.PayrollMonth,
		PayrollYear:     run.PayrollYear,
		Status:          string(run.Status),
		Settings:        run.Settings,
		TotalEmployees:  run.TotalEmployees,
		TotalGross:      run.TotalGross,
		TotalDeductions: run.TotalDeductions,
		TotalNetPay:     run.TotalNetPay,
		ExceptionCount:  run.ExceptionCount,
		RunBy:           run.RunBy,
		RunAt:           run.RunAt.Format(time.RFC3339),
		ReviewedBy:      run.ReviewedBy,
		ReviewedAt:      formatTime(run.ReviewedAt),
		ApprovedBy:      run.ApprovedBy,
		ApprovedAt:      formatTime(run.ApprovedAt),
		LockedBy:        run.LockedBy,
		LockedAt:        formatTime(run.LockedAt),
	}

	if withResults {
		resp.Results = make([]payroll.PayrollResultResponse, 0, len(run.Results))
		for _, r := range run.Results {
			resp.Results = append(resp.Results, mapResultResponse(r))
		}
		for _, sk := range run.SkippedExceptions {
			resp.SkippedExceptions = append(resp.SkippedExceptions, payroll.SkippedExceptionResponse{
				EmployeeID: sk.EmployeeID,
				Reasons:    sk.Reasons,
			})
		}
	}
	return resp
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func periodLabel(key payroll.RunKey) string {
	return fmt.Sprintf("%04d-%02d", key.PayrollYear, key.PayrollMonth)
}
