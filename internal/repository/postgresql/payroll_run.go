package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const runSitePeriodConstraint = "uk_payroll_runs_site_period"

const runColumns = `
	id, site_id, payroll_month, payroll_year, status, skip_exceptions, apply_rounding,
	total_employees, total_gross, total_deductions, total_net_pay, exception_count, skipped_exceptions,
	run_by, run_at, reviewed_by, reviewed_at, approved_by, approved_at, locked_by, locked_at,
	created_at, updated_at
`

// stampColumns names the actor and time columns written when a run enters a status.
var stampColumns = map[payroll.RunStatus][2]string{
	payroll.RunStatusReviewed: {"reviewed_by", "reviewed_at"},
	payroll.RunStatusApproved: {"approved_by", "approved_at"},
	payroll.RunStatusLocked:   {"locked_by", "locked_at"},
}

type skippedJSON struct {
	EmployeeID string   `json:"employee_id"`
	Reasons    []string `json:"reasons"`
}

type payrollRunRepository struct {
	db *database.DB
}

func NewPayrollRunRepository(db *database.DB) payroll.RunStore {
	return &payrollRunRepository{db: db}
}

// ========== CREATE ==========

// Create inserts the run header and every result line in one transaction.
func (r *payrollRunRepository) Create(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	skipped := make([]skippedJSON, 0, len(run.SkippedExceptions))
	for _, sk := range run.SkippedExceptions {
		skipped = append(skipped, skippedJSON{EmployeeID: sk.EmployeeID, Reasons: sk.Reasons})
	}
	skippedBytes, err := json.Marshal(skipped)
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to encode skipped exceptions: %w", err)
	}

	err = WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			INSERT INTO payroll_runs (
				id, site_id, payroll_month, payroll_year, status, skip_exceptions, apply_rounding,
				total_employees, total_gross, total_deductions, total_net_pay, exception_count,
				skipped_exceptions, run_by, run_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			run.ID, run.SiteID, run.PayrollMonth, run.PayrollYear, string(run.Status),
			run.Settings.SkipExceptions, run.Settings.ApplyRounding,
			run.TotalEmployees, run.TotalGross, run.TotalDeductions, run.TotalNetPay, run.ExceptionCount,
			skippedBytes, run.RunBy, run.RunAt,
		).Scan(&run.CreatedAt, &run.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err, runSitePeriodConstraint) || isUniqueViolation(err, "payroll_runs_pkey") {
				return payroll.ErrRunExists
			}
			return fmt.Errorf("failed to create payroll run: %w", err)
		}

		return insertResults(ctx, tx, run.ID, run.Results)
	})
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	return run, nil
}

func insertResults(ctx context.Context, tx pgx.Tx, runID string, results []payroll.PayrollResult) error {
	if len(results) == 0 {
		return nil
	}

	query := `
		INSERT INTO payroll_results (
			run_id, employee_id, employee_code, employee_name, payable_days, ot_hours,
			basic_earned, hra_earned, other_earned, ot_amount, incentive, arrear,
			gross_earning, pf_deduction, esi_deduction, fixed_deductions, total_deductions, net_pay,
			is_exception, exception_reasons
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	batch := &pgx.Batch{}
	for _, res := range results {
		reasons := res.ExceptionReasons
		if reasons == nil {
			reasons = []string{}
		}
		batch.Queue(query,
			runID, res.EmployeeID, res.EmployeeCode, res.EmployeeName, res.PayableDays, res.OTHours,
			res.BasicEarned, res.HRAEarned, res.OtherEarned, res.OTAmount, res.Incentive, res.Arrear,
			res.GrossEarning, res.PFDeduction, res.ESIDeduction, res.FixedDeductions, res.TotalDeductions, res.NetPay,
			res.IsException, reasons,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range results {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to insert payroll result %s: %w", results[i].EmployeeID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert payroll results: %w", err)
	}
	return nil
}

// ========== READ ==========

func scanRun(row pgx.Row) (payroll.PayrollRun, error) {
	var (
		run          payroll.PayrollRun
		status       string
		skippedBytes []byte
	)
	err := row.Scan(
		&run.ID, &run.SiteID, &run.PayrollMonth, &run.PayrollYear, &status,
		&run.Settings.SkipExceptions, &run.Settings.ApplyRounding,
		&run.TotalEmployees, &run.TotalGross, &run.TotalDeductions, &run.TotalNetPay, &run.ExceptionCount,
		&skippedBytes,
		&run.RunBy, &run.RunAt, &run.ReviewedBy, &run.ReviewedAt,
		&run.ApprovedBy, &run.ApprovedAt, &run.LockedBy, &run.LockedAt,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	run.Status = payroll.RunStatus(status)
	if !run.Status.IsValid() {
		return payroll.PayrollRun{}, fmt.Errorf("%w: %q", payroll.ErrUnknownRunStatus, status)
	}

	var skipped []skippedJSON
	if err := json.Unmarshal(skippedBytes, &skipped); err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to decode skipped exceptions: %w", err)
	}
	for _, sk := range skipped {
		run.SkippedExceptions = append(run.SkippedExceptions, payroll.SkippedException{EmployeeID: sk.EmployeeID, Reasons: sk.Reasons})
	}
	return run, nil
}

func (r *payrollRunRepository) FindActive(ctx context.Context, key payroll.RunKey) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE site_id = $1 AND payroll_month = $2 AND payroll_year = $3`

	run, err := scanRun(q.QueryRow(ctx, query, key.SiteID, key.PayrollMonth, key.PayrollYear))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, payroll.ErrRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to find payroll run: %w", err)
	}
	return run, nil
}

func (r *payrollRunRepository) GetByID(ctx context.Context, id string) (payroll.PayrollRun, error) {
	run, err := r.getHeader(ctx, id)
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	run.Results, err = r.listResults(ctx, id)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	return run, nil
}

// getHeader loads a run without its results.
func (r *payrollRunRepository) getHeader(ctx context.Context, id string) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE id = $1`

	run, err := scanRun(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, payroll.ErrRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run: %w", err)
	}
	return run, nil
}

func (r *payrollRunRepository) listResults(ctx context.Context, runID string) ([]payroll.PayrollResult, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT employee_id, employee_code, employee_name, payable_days, ot_hours,
			   basic_earned, hra_earned, other_earned, ot_amount, incentive, arrear,
			   gross_earning, pf_deduction, esi_deduction, fixed_deductions, total_deductions, net_pay,
			   is_exception, exception_reasons
		FROM payroll_results
		WHERE run_id = $1
		ORDER BY employee_id
	`

	rows, err := q.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll results: %w", err)
	}
	defer rows.Close()

	results := []payroll.PayrollResult{}
	for rows.Next() {
		var res payroll.PayrollResult
		if err := rows.Scan(
			&res.EmployeeID, &res.EmployeeCode, &res.EmployeeName, &res.PayableDays, &res.OTHours,
			&res.BasicEarned, &res.HRAEarned, &res.OtherEarned, &res.OTAmount, &res.Incentive, &res.Arrear,
			&res.GrossEarning, &res.PFDeduction, &res.ESIDeduction, &res.FixedDeductions, &res.TotalDeductions, &res.NetPay,
			&res.IsException, &res.ExceptionReasons,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payroll result: %w", err)
		}
		if len(res.ExceptionReasons) == 0 {
			res.ExceptionReasons = nil
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll results: %w", err)
	}
	return results, nil
}

func (r *payrollRunRepository) List(ctx context.Context, filter payroll.RunFilter) ([]payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE 1 = 1`
	args := []interface{}{}
	argIdx := 1

	if filter.SiteID != "" {
		query += fmt.Sprintf(" AND site_id = $%d", argIdx)
		args = append(args, filter.SiteID)
		argIdx++
	}
	if filter.PayrollMonth != 0 {
		query += fmt.Sprintf(" AND payroll_month = $%d", argIdx)
		args = append(args, filter.PayrollMonth)
		argIdx++
	}
	if filter.PayrollYear != 0 {
		query += fmt.Sprintf(" AND payroll_year = $%d", argIdx)
		args = append(args, filter.PayrollYear)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY payroll_year DESC, payroll_month DESC, site_id, id"

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.PayrollRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll runs: %w", err)
	}
	return runs, nil
}

// ========== LIFECYCLE ==========

// Transition is a compare-and-set on status; the row only changes while it
// still holds expected.
func (r *payrollRunRepository) Transition(ctx context.Context, id string, expected, next payroll.RunStatus, actorID string) (payroll.PayrollRun, error) {
	cols, ok := stampColumns[next]
	if !ok {
		return payroll.PayrollRun{}, payroll.ErrIllegalTransition
	}
	q := GetQuerier(ctx, r.db)

	query := fmt.Sprintf(`
		UPDATE payroll_runs
		SET status = $1, %s = $2, %s = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, cols[0], cols[1])

	tag, err := q.Exec(ctx, query, string(next), actorID, id, string(expected))
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to update payroll run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.getHeader(ctx, id); err != nil {
			return payroll.PayrollRun{}, err
		}
		return payroll.PayrollRun{}, payroll.ErrRunStatusChanged
	}

	return r.GetByID(ctx, id)
}

// DeleteDraft removes a draft run; its results go with it through the cascade.
func (r *payrollRunRepository) DeleteDraft(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	query := `DELETE FROM payroll_runs WHERE id = $1 AND status = $2 RETURNING id`

	var deletedID string
	err := q.QueryRow(ctx, query, id, string(payroll.RunStatusDraft)).Scan(&deletedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := r.getHeader(ctx, id); err != nil {
				return err
			}
			return payroll.ErrRunNotDraft
		}
		return fmt.Errorf("failed to delete payroll run: %w", err)
	}

	return nil
}
