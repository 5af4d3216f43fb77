package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/shopspring/decimal"
)

type employeeRepository struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) payroll.EmployeeDirectory {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) ListEmployees(ctx context.Context, ids []string) ([]payroll.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_code, full_name, site_id,
			   pf_applicable, esi_applicable, pf_percentage_override, esi_percentage_override,
			   bank_name, bank_account_number, ifsc_code, uan, pf_number, esi_code
		FROM payroll_employees
		WHERE id = ANY($1)
		ORDER BY id
	`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []payroll.Employee
	index := make(map[string]int, len(ids))
	for rows.Next() {
		var (
			e           payroll.Employee
			pfOverride  decimal.NullDecimal
			esiOverride decimal.NullDecimal
		)
		st := &e.Statutory
		if err := rows.Scan(
			&e.ID, &e.EmployeeCode, &e.FullName, &e.SiteID,
			&st.PFApplicable, &st.ESIApplicable, &pfOverride, &esiOverride,
			&st.BankName, &st.BankAccountNumber, &st.IFSCCode, &st.UAN, &st.PFNumber, &st.ESICode,
		); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		if pfOverride.Valid {
			st.PFPercentageOverride = &pfOverride.Decimal
		}
		if esiOverride.Valid {
			st.ESIPercentageOverride = &esiOverride.Decimal
		}
		index[e.ID] = len(employees)
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}

	if err := r.attachSkills(ctx, ids, employees, index); err != nil {
		return nil, err
	}
	return employees, nil
}

func (r *employeeRepository) attachSkills(ctx context.Context, ids []string, employees []payroll.Employee, index map[string]int) error {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT es.employee_id, s.id, s.basic_monthly, s.hra_monthly, s.other_allowance_monthly
		FROM employee_skills es
		JOIN skills s ON s.id = es.skill_id
		WHERE es.employee_id = ANY($1)
		ORDER BY es.employee_id, es.position
	`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to list employee skills: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			employeeID string
			card       payroll.RateCard
		)
		if err := rows.Scan(&employeeID, &card.SkillID, &card.BasicMonthly, &card.HRAMonthly, &card.OtherAllowanceMonthly); err != nil {
			return fmt.Errorf("failed to scan employee skill: %w", err)
		}
		if i, ok := index[employeeID]; ok {
			employees[i].Skills = append(employees[i].Skills, card)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate employee skills: %w", err)
	}
	return nil
}
