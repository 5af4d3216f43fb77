package postgresql

import (
	"context"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/shopspring/decimal"
)

// LWFDeductionName marks the labour welfare fund row in site_deductions.
const LWFDeductionName = "LWF"

type deductionConfigRepository struct {
	db *database.DB
}

func NewDeductionConfigRepository(db *database.DB) payroll.DeductionConfigProvider {
	return &deductionConfigRepository{db: db}
}

// GetFixedDeductions prefers rows for the exact period and falls back to the
// site's default rows (month and year zero).
func (r *deductionConfigRepository) GetFixedDeductions(ctx context.Context, siteID string, month, year int) (payroll.FixedDeductions, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT payroll_month, name, amount
		FROM site_deductions
		WHERE site_id = $1
		  AND ((payroll_month = $2 AND payroll_year = $3) OR (payroll_month = 0 AND payroll_year = 0))
		ORDER BY name
	`

	rows, err := q.Query(ctx, query, siteID, month, year)
	if err != nil {
		return payroll.FixedDeductions{}, fmt.Errorf("failed to get site deductions: %w", err)
	}
	defer rows.Close()

	var exact, fallback payroll.FixedDeductions
	var haveExact bool
	for rows.Next() {
		var (
			rowMonth int
			name     string
			amount   decimal.Decimal
		)
		if err := rows.Scan(&rowMonth, &name, &amount); err != nil {
			return payroll.FixedDeductions{}, fmt.Errorf("failed to scan site deduction: %w", err)
		}

		target := &fallback
		if rowMonth != 0 {
			target = &exact
			haveExact = true
		}
		if strings.EqualFold(name, LWFDeductionName) {
			target.LWF = amount
			continue
		}
		target.Other = append(target.Other, payroll.FlatDeduction{Name: name, Amount: amount})
	}
	if err := rows.Err(); err != nil {
		return payroll.FixedDeductions{}, fmt.Errorf("failed to iterate site deductions: %w", err)
	}

	if haveExact {
		return exact, nil
	}
	return fallback, nil
}
