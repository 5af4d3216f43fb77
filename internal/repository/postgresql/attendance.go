package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
)

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) payroll.AttendanceProvider {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) ListAttendance(ctx context.Context, siteID string, month, year int) ([]payroll.AttendanceRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT employee_id, site_id, payroll_month, payroll_year,
			   payable_days, ot_hours, incentive, arrear
		FROM attendance_imports
		WHERE site_id = $1 AND payroll_month = $2 AND payroll_year = $3
		ORDER BY employee_id
	`

	rows, err := q.Query(ctx, query, siteID, month, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	var records []payroll.AttendanceRecord
	for rows.Next() {
		var a payroll.AttendanceRecord
		if err := rows.Scan(
			&a.EmployeeID, &a.SiteID, &a.PayrollMonth, &a.PayrollYear,
			&a.PayableDays, &a.OTHours, &a.Incentive, &a.Arrear,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance: %w", err)
	}

	return records, nil
}
